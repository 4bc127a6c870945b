package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names one semantic step kind. The wire and blob representation is
// the upper-case name.
type EventType string

const (
	EventProgramStarted  EventType = "PROGRAM_STARTED"
	EventProgramFinished EventType = "PROGRAM_FINISHED"
	EventLLMQuery        EventType = "LLM_QUERY"
	EventToolInvocation  EventType = "TOOL_INVOCATION"
	EventDebugMessage    EventType = "DEBUG_MESSAGE"
)

// MaxBreakpoints returns how many breakpoints an event of this type may carry.
func (t EventType) MaxBreakpoints() int {
	switch t {
	case EventLLMQuery, EventToolInvocation:
		return 2
	case EventProgramStarted, EventProgramFinished:
		return 1
	default:
		return 0
	}
}

func (t EventType) valid() bool {
	switch t {
	case EventProgramStarted, EventProgramFinished, EventLLMQuery,
		EventToolInvocation, EventDebugMessage:
		return true
	}
	return false
}

// Event is one semantic step in agent execution. Breakpoints arrive in
// begin-then-end order; the first is the begin breakpoint, the last the end.
type Event struct {
	ID          uuid.UUID
	Type        EventType
	Time        time.Time
	Data        json.RawMessage
	Breakpoints []*Breakpoint
}

// NewEvent creates an event with a fresh id, stamped now.
func NewEvent(t EventType) *Event {
	return &Event{ID: uuid.New(), Type: t, Time: time.Now()}
}

func (e *Event) HasBeginBreakpoint() bool { return len(e.Breakpoints) > 0 }
func (e *Event) HasEndBreakpoint() bool   { return len(e.Breakpoints) > 1 }

// BeginBreakpoint returns the first breakpoint, or nil.
func (e *Event) BeginBreakpoint() *Breakpoint {
	if !e.HasBeginBreakpoint() {
		return nil
	}
	return e.Breakpoints[0]
}

// EndBreakpoint returns the last breakpoint when at least two exist, or nil.
func (e *Event) EndBreakpoint() *Breakpoint {
	if !e.HasEndBreakpoint() {
		return nil
	}
	return e.Breakpoints[len(e.Breakpoints)-1]
}

// AddBreakpoint appends bp, enforcing the per-type breakpoint budget and the
// event association.
func (e *Event) AddBreakpoint(bp *Breakpoint) error {
	if bp.EventID != e.ID {
		return fmt.Errorf("%w: breakpoint %s does not belong to event %s", ErrProtocolViolation, bp.ID, e.ID)
	}
	if len(e.Breakpoints) >= e.Type.MaxBreakpoints() {
		return fmt.Errorf("%w: event %s (%s) cannot take another breakpoint", ErrProtocolViolation, e.ID, e.Type)
	}
	e.Breakpoints = append(e.Breakpoints, bp)
	return nil
}

// DataString decodes the event payload as a string, falling back to the raw
// JSON text. Used for debug messages and the program name.
func (e *Event) DataString() string {
	var s string
	if err := json.Unmarshal(e.Data, &s); err == nil {
		return s
	}
	return string(e.Data)
}

type eventWire struct {
	UUID        string          `json:"uuid"`
	Type        string          `json:"type"`
	Time        float64         `json:"time"`
	Data        json.RawMessage `json:"data"`
	Breakpoints []*Breakpoint   `json:"breakpoints"`
}

func (e *Event) MarshalJSON() ([]byte, error) {
	bps := e.Breakpoints
	if bps == nil {
		bps = []*Breakpoint{}
	}
	return json.Marshal(eventWire{
		UUID:        e.ID.String(),
		Type:        string(e.Type),
		Time:        float64(e.Time.Unix()),
		Data:        e.Data,
		Breakpoints: bps,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, err := uuid.Parse(w.UUID)
	if err != nil {
		return err
	}
	t := EventType(w.Type)
	if !t.valid() {
		return fmt.Errorf("unknown event type %q", w.Type)
	}
	e.ID = id
	e.Type = t
	e.Time = time.Unix(int64(w.Time), 0)
	e.Data = normalizeNull(w.Data)
	e.Breakpoints = w.Breakpoints
	return nil
}
