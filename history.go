package safeguards

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// A HistoryRecord describes a single command that was applied to an element.
type HistoryRecord struct {
	// The ID of the command, as assigned by the Monitor.
	Command ID
	// The kind of the command (e.g. transport).
	Kind CommandKind
	// The ID of the element the command was ultimately directed at. For a
	// transport this is the moved container, even in the histories of the
	// facilities, rooms and holding areas the transport passed through.
	Target ID
	// The time, in UTC, the command was executed.
	At time.Time
}

func newHistoryRecord(cmd Command) HistoryRecord {
	return HistoryRecord{
		Command: cmd.CommandID(),
		Kind:    cmd.CommandKind(),
		Target:  cmd.Target().ElementID(),
		At:      time.Now().UTC(),
	}
}

// A history is an ordered, append-only log of the commands applied to a
// single element.
//
// The zero value is an empty log, ready for use.
//
// A history is safe for concurrent use.
type history struct {
	mu  sync.Mutex
	log []HistoryRecord
}

func (h *history) append(r HistoryRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.log = append(h.log, r)
}

// records returns a copy of the log, oldest record first. Callers may modify
// the returned slice freely.
func (h *history) records() []HistoryRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HistoryRecord, len(h.log))
	copy(out, h.log)
	return out
}

// FormatHistory returns a human-readable rendition of the element's command
// log. The indent string is prepended to each line.
func FormatHistory(e Element, indent string) string {
	records := e.History()
	if len(records) == 0 {
		return indent + "history is empty\n"
	}
	var b strings.Builder
	for _, r := range records {
		fmt.Fprintf(&b, indent+"command %v: %s -> %v\n", r.Command, r.Kind, r.Target)
	}
	return b.String()
}
