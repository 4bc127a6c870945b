package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Breakpoint is one suspension point within an event. The agent blocks after
// sending it until the coordinator sends the (possibly modified) breakpoint
// back as a release. Identity is the id; payloads are opaque JSON values.
type Breakpoint struct {
	ID           uuid.UUID
	Agent        string
	EventID      uuid.UUID
	Time         time.Time
	Summary      string
	OriginalData json.RawMessage
	ModifiedData json.RawMessage
}

// NewBreakpoint creates a breakpoint with a fresh id, stamped now.
func NewBreakpoint(agent string, data json.RawMessage, eventID uuid.UUID) *Breakpoint {
	return &Breakpoint{
		ID:           uuid.New(),
		Agent:        agent,
		EventID:      eventID,
		Time:         time.Now(),
		OriginalData: data,
	}
}

// Data returns the effective payload: modified if set, original otherwise.
func (b *Breakpoint) Data() json.RawMessage {
	if b.ModifiedData != nil {
		return b.ModifiedData
	}
	return b.OriginalData
}

type breakpointWire struct {
	UUID         string          `json:"uuid"`
	Agent        string          `json:"agent"`
	EventID      string          `json:"event_id"`
	Time         float64         `json:"time"`
	OriginalData json.RawMessage `json:"original_data"`
	ModifiedData json.RawMessage `json:"modified_data"`
	Summary      *string         `json:"summary"`
}

// MarshalJSON emits the wire/blob shape: uuid strings, unix-second time,
// explicit nulls for unset modified_data and summary.
func (b *Breakpoint) MarshalJSON() ([]byte, error) {
	w := breakpointWire{
		UUID:         b.ID.String(),
		Agent:        b.Agent,
		EventID:      b.EventID.String(),
		Time:         float64(b.Time.Unix()),
		OriginalData: b.OriginalData,
		ModifiedData: b.ModifiedData,
	}
	if b.Summary != "" {
		w.Summary = &b.Summary
	}
	return json.Marshal(w)
}

func (b *Breakpoint) UnmarshalJSON(data []byte) error {
	var w breakpointWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, err := uuid.Parse(w.UUID)
	if err != nil {
		return err
	}
	eventID, err := uuid.Parse(w.EventID)
	if err != nil {
		return err
	}
	b.ID = id
	b.Agent = w.Agent
	b.EventID = eventID
	b.Time = time.Unix(int64(w.Time), 0)
	b.OriginalData = normalizeNull(w.OriginalData)
	b.ModifiedData = normalizeNull(w.ModifiedData)
	if w.Summary != nil {
		b.Summary = *w.Summary
	} else {
		b.Summary = ""
	}
	return nil
}

// normalizeNull maps a JSON null payload to an unset one so that "modified
// data present" can be tested with a nil check.
func normalizeNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return raw
}
