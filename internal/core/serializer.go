package core

import (
	"encoding/json"
	"time"

	"github.com/agentstepper/agentstepper/internal/domain"
)

// uiTimeLayout is the timestamp format the UI expects, ISO 8601 with a
// numeric zone offset.
const uiTimeLayout = "2006-01-02T15:04:05-0700"

// serializedMessage is the UI projection of a domain.Message. Content stays
// raw JSON; text payloads arrive as JSON strings and pass through unchanged.
type serializedMessage struct {
	UUID        string          `json:"uuid"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Content     json.RawMessage `json:"content"`
	ContentType string          `json:"contentType"`
	Summary     *string         `json:"summary"`
	SentAt      string          `json:"sentAt"`
}

type serializedChange struct {
	Path            string `json:"path"`
	ChangeType      string `json:"changeType"`
	Content         string `json:"content"`
	PreviousContent string `json:"previousContent"`
}

type serializedCommit struct {
	ID      string             `json:"id"`
	Date    string             `json:"date"`
	Title   string             `json:"title"`
	Changes []serializedChange `json:"changes"`
}

type serializedRun struct {
	UUID        string              `json:"uuid"`
	Name        string              `json:"name"`
	ProgramName string              `json:"programName"`
	StartTime   string              `json:"startTime"`
	State       ExecutionState      `json:"state"`
	AgentState  AgentState          `json:"agentState"`
	Commits     []serializedCommit  `json:"commits"`
	Messages    []serializedMessage `json:"messages"`
	HaltedAt    *string             `json:"haltedAt"`
}

func serializeMessage(m domain.Message) serializedMessage {
	var summary *string
	if m.Summary != "" {
		s := m.Summary
		summary = &s
	}
	content := m.Content
	if content == nil {
		content = json.RawMessage("null")
	}
	return serializedMessage{
		UUID:        m.ID.String(),
		From:        string(m.From),
		To:          string(m.To),
		Content:     content,
		ContentType: string(m.ContentType),
		Summary:     summary,
		SentAt:      m.SentAt.Format(uiTimeLayout),
	}
}

// serializeCommit renders a commit for the UI. The diff stays server-side;
// the UI recomputes it from the two content versions.
func serializeCommit(c *domain.Commit) serializedCommit {
	changes := make([]serializedChange, 0, len(c.Changes))
	for _, ch := range c.Changes {
		changes = append(changes, serializedChange{
			Path:            ch.Path,
			ChangeType:      string(ch.ChangeType),
			Content:         ch.Content,
			PreviousContent: ch.PreviousContent,
		})
	}
	return serializedCommit{
		ID:      c.ID,
		Date:    c.Date.Format(uiTimeLayout),
		Title:   c.Title,
		Changes: changes,
	}
}

// serializeRun renders a run snapshot with the given states. Messages come
// from the run's events in event and breakpoint order.
func serializeRun(run *domain.Run, state ExecutionState, agentState AgentState) serializedRun {
	messages := make([]serializedMessage, 0)
	for _, e := range run.Events() {
		for _, m := range domain.MessagesFromEvent(e) {
			messages = append(messages, serializeMessage(m))
		}
	}
	commits := make([]serializedCommit, 0, len(run.Commits))
	for _, c := range run.Commits {
		commits = append(commits, serializeCommit(c))
	}
	return serializedRun{
		UUID:        run.ID.String(),
		Name:        run.Name,
		ProgramName: run.ProgramName,
		StartTime:   run.StartTime.Format(uiTimeLayout),
		State:       state,
		AgentState:  agentState,
		Commits:     commits,
		Messages:    messages,
		HaltedAt:    nil,
	}
}

// formatUITime is used by tests to assert on serialized timestamps.
func formatUITime(t time.Time) string { return t.Format(uiTimeLayout) }
