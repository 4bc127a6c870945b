package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Run is one start-to-finish execution of an agent program. Events keep their
// arrival order, which the coordinator guarantees to be chronological.
type Run struct {
	ID            uuid.UUID
	Name          string
	ProgramName   string
	StartTime     time.Time
	ServerVersion string

	events []*Event
	byID   map[uuid.UUID]*Event

	Commits []*Commit
}

// NewRun creates a run with a fresh id, stamped with the given server version.
func NewRun(name, programName string, start time.Time, serverVersion string) *Run {
	return &Run{
		ID:            uuid.New(),
		Name:          name,
		ProgramName:   programName,
		StartTime:     start,
		ServerVersion: serverVersion,
		byID:          make(map[uuid.UUID]*Event),
	}
}

// AddEvent appends the event to the run history.
func (r *Run) AddEvent(e *Event) {
	if r.byID == nil {
		r.byID = make(map[uuid.UUID]*Event)
	}
	if _, ok := r.byID[e.ID]; ok {
		return
	}
	r.byID[e.ID] = e
	r.events = append(r.events, e)
}

// AddCommit appends the commit to the run commit history.
func (r *Run) AddCommit(c *Commit) {
	r.Commits = append(r.Commits, c)
}

// Event returns the event with the given id.
func (r *Run) Event(id uuid.UUID) (*Event, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// Events returns all events in insertion order.
func (r *Run) Events() []*Event {
	return r.events
}

// EventsByTime returns all events sorted ascending by creation time.
func (r *Run) EventsByTime() []*Event {
	sorted := make([]*Event, len(r.events))
	copy(sorted, r.events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return sorted
}

// PreviousLLMQueries returns the llm_query events that happened strictly
// before the given event, oldest first. A nil reference returns all queries.
// Used by the summarizer to build context.
func (r *Run) PreviousLLMQueries(before *Event) []*Event {
	var queries []*Event
	for _, e := range r.events {
		if e.Type != EventLLMQuery {
			continue
		}
		if before != nil && !e.Time.Before(before.Time) {
			continue
		}
		queries = append(queries, e)
	}
	sort.SliceStable(queries, func(i, j int) bool {
		return queries[i].Time.Before(queries[j].Time)
	})
	return queries
}

type runWire struct {
	UUID          string          `json:"uuid"`
	Name          string          `json:"name"`
	ProgramName   string          `json:"program_name"`
	StartTime     float64         `json:"start_time"`
	Events        []*Event        `json:"events"`
	Commits       []*Commit       `json:"commits"`
	ServerVersion string          `json:"server_version"`
}

// ToBytes returns the self-describing JSON blob of the run, events sorted by
// creation time.
func (r *Run) ToBytes() ([]byte, error) {
	commits := r.Commits
	if commits == nil {
		commits = []*Commit{}
	}
	events := r.EventsByTime()
	if events == nil {
		events = []*Event{}
	}
	return json.Marshal(runWire{
		UUID:          r.ID.String(),
		Name:          r.Name,
		ProgramName:   r.ProgramName,
		StartTime:     float64(r.StartTime.Unix()),
		Events:        events,
		Commits:       commits,
		ServerVersion: r.ServerVersion,
	})
}

// RunFromBytes parses a run blob produced by ToBytes. The returned run gets a
// fresh id; everything else, including the recorded server version, is kept.
func RunFromBytes(data []byte) (*Run, error) {
	var w runWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse run blob: %w", err)
	}
	run := NewRun(w.Name, w.ProgramName, time.Unix(int64(w.StartTime), 0), w.ServerVersion)
	for _, e := range w.Events {
		run.AddEvent(e)
	}
	for _, c := range w.Commits {
		run.AddCommit(c)
	}
	return run, nil
}
