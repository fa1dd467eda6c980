// Package daemon imports process files into the local store.
//
// An Importer reads one process file (JSON or YAML) and upserts its content
// fields and journal entries. Sync fields (remote project id, task ids,
// journal remote links) are never touched by an import.
//
// A Daemon keeps a directory of process files imported:
//
//	fsnotify event ──► changeQueue[path] = now
//	                        │ ticker (DebounceInterval)
//	                        ▼
//	        quiet for DebounceInterval? ──► Importer.ImportFile
//	                                              │
//	                                              ▼
//	                                 Notifier(process_imported)
//
// The daemon never talks to the tracker. Remote sync stays an explicit
// operation (psync sync or the HTTP trigger).
//
// Removing a file does not delete the local record, since the record may
// carry a remote link that would otherwise be lost.
package daemon
