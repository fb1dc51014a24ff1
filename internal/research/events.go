// Package research drives the iterative deep-research loop: query
// generation, web search, reflection on sufficiency and final answer
// synthesis, plus the open-ended tool-calling variant.
package research

import "time"

// EventKind tags a progress event.
type EventKind int

const (
	// EventNotify is a phase progress notification.
	EventNotify EventKind = iota
	// EventContent is a fragment of the final streamed answer.
	EventContent
	// EventError carries the run's failure message. At most one per run.
	EventError
	// EventDone terminates every run, error or not.
	EventDone
)

// Event is one progress update from a research run.
type Event struct {
	Kind EventKind
	Text string
}

// CurrentDate formats the date the way the prompt templates expect,
// e.g. "January 05, 2025".
func CurrentDate() string {
	return time.Now().Format("January 02, 2006")
}
