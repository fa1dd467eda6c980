// Package condense fits outbound text into the tracker's length limit.
//
// Fitting is a chain of fallbacks:
//
//	text fits            → unchanged
//	condenser available  → condensed to ~90% of the limit
//	anything else        → deterministic truncation + marker
//
// The last step cannot fail, so Fit always returns text within the limit.
// Lengths are counted in Unicode code points, which is how the tracker
// counts characters.
package condense

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"unicode/utf8"
)

const (
	// TruncationMarker is appended to hard-truncated text.
	TruncationMarker = "\n\n[Truncated - see source for full text]"

	// SafetyMargin is kept free below the limit when truncating.
	SafetyMargin = 100

	// TargetRatio is the share of the limit requested from the condenser,
	// leaving room for framing text.
	TargetRatio = 0.9
)

// Instructions is sent to the condenser with every request.
const Instructions = "Condense the text to at most %d characters. " +
	"Preserve every distinct fact, name, date, and number. " +
	"Compress prose into short bullet lists. " +
	"Return only the condensed text, with no preamble."

// Condenser shortens text. Its output is advisory: it may fail, return
// nothing, or return text that is still too long.
type Condenser interface {
	Condense(ctx context.Context, text string, targetLength int, instructions string) (string, error)
}

// Result describes the fitted text.
type Result struct {
	Text           string
	Condensed      bool // condenser output was used
	Truncated      bool // deterministic truncation was applied
	OriginalLength int
}

// Degraded reports whether the text was altered to fit.
func (r Result) Degraded() bool {
	return r.Condensed || r.Truncated
}

// Fitter applies the fitting policy.
type Fitter struct {
	condenser Condenser
	logger    *log.Logger
}

// NewFitter creates a Fitter. condenser may be nil, in which case oversized
// text is truncated directly. If logger is nil, a default stderr logger is used.
func NewFitter(condenser Condenser, logger *log.Logger) *Fitter {
	if logger == nil {
		logger = log.New(os.Stderr, "[condense] ", log.LstdFlags)
	}
	return &Fitter{condenser: condenser, logger: logger}
}

// Length returns the length of s as the tracker counts it.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

// Fit returns text no longer than limit.
func (f *Fitter) Fit(ctx context.Context, text string, limit int) Result {
	res := Result{Text: text, OriginalLength: Length(text)}
	if limit < 0 {
		limit = 0
	}
	if res.OriginalLength <= limit {
		return res
	}

	if f.condenser != nil {
		target := int(float64(limit) * TargetRatio)
		condensed, err := f.condenser.Condense(ctx, text, target, fmt.Sprintf(Instructions, target))
		switch {
		case err != nil:
			f.logger.Printf("WARNING: condensation failed, truncating instead: %v", err)
		case strings.TrimSpace(condensed) == "":
			f.logger.Printf("WARNING: condensation returned empty text, truncating instead")
		case Length(condensed) > limit:
			f.logger.Printf("WARNING: condensed text still too long (%d > %d), truncating instead", Length(condensed), limit)
		default:
			f.logger.Printf("Condensed text from %d to %d characters", res.OriginalLength, Length(condensed))
			res.Text = condensed
			res.Condensed = true
			return res
		}
	}

	res.Text = Truncate(text, limit)
	res.Truncated = true
	return res
}

// Truncate cuts text deterministically so the result, marker included, is no
// longer than limit. Short limits that cannot hold the marker get a plain cut.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if Length(text) <= limit {
		return text
	}

	markerLen := Length(TruncationMarker)
	keep := limit - SafetyMargin - markerLen
	if keep <= 0 {
		return prefix(text, limit)
	}
	return strings.TrimRight(prefix(text, keep), " \t\r\n") + TruncationMarker
}

// prefix returns the first n code points of s.
func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// CheckStored compares what was sent with what the tracker stored and
// returns a warning if the tracker silently shortened it.
func CheckStored(what, sent, stored string) (string, bool) {
	sentLen, storedLen := Length(sent), Length(stored)
	if storedLen >= sentLen {
		return "", false
	}
	return fmt.Sprintf("tracker truncated %s to %d of %d characters", what, storedLen, sentLen), true
}
