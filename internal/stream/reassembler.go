// Package stream turns a newline-delimited JSON response, delivered in
// arbitrary text chunks, into discrete events.
package stream

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/comigor/ollamachat/internal/logger"
)

// EventMessage is the message object carried by a chat stream record.
type EventMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Event is one parsed record of a chat stream.
type Event struct {
	Message *EventMessage `json:"message,omitempty"`
	Done    bool          `json:"done,omitempty"`
	// Error is set when the server reports a failure in-band.
	Error string `json:"error,omitempty"`
}

// Fragment returns the text fragment carried by the event, if any.
func (e Event) Fragment() string {
	if e.Message == nil {
		return ""
	}
	return e.Message.Content
}

// Reassembler buffers partial records between Feed calls.
// It is not safe for concurrent use; one Reassembler serves one response.
type Reassembler struct {
	buf strings.Builder
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed appends chunk to the buffer and returns every record completed by it.
// The text after the last newline stays buffered until more data arrives.
func (r *Reassembler) Feed(chunk string) []Event {
	r.buf.WriteString(chunk)
	if !strings.Contains(chunk, "\n") {
		return nil
	}

	lines := strings.Split(r.buf.String(), "\n")
	r.buf.Reset()
	r.buf.WriteString(lines[len(lines)-1])

	var events []Event
	for _, line := range lines[:len(lines)-1] {
		if ev, ok := parseRecord(line); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Finish drains the buffer, parsing whatever remains as a final record.
func (r *Reassembler) Finish() []Event {
	rest := r.buf.String()
	r.buf.Reset()
	if ev, ok := parseRecord(rest); ok {
		return []Event{ev}
	}
	return nil
}

// Pending returns the buffered text not yet resolved into a record.
func (r *Reassembler) Pending() string {
	return r.buf.String()
}

// parseRecord decodes one line. Blank lines are skipped and malformed ones
// are logged and dropped so a single bad record cannot end the stream.
func parseRecord(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}
	if !gjson.Valid(line) {
		logger.L.Warn("discarding malformed stream record", "record", truncate(line, 200))
		return Event{}, false
	}

	parsed := gjson.Parse(line)
	if !parsed.IsObject() {
		logger.L.Warn("discarding non-object stream record", "record", truncate(line, 200))
		return Event{}, false
	}

	var ev Event
	if msg := parsed.Get("message"); msg.IsObject() {
		ev.Message = &EventMessage{
			Role:    msg.Get("role").String(),
			Content: msg.Get("content").String(),
		}
	}
	ev.Done = parsed.Get("done").Bool()
	ev.Error = parsed.Get("error").String()
	return ev, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
