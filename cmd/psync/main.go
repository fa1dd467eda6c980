// Command psync keeps local process records in step with projects in the
// tracker.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
