package domain

import (
	"encoding/json"
	"time"
)

// ChangeType classifies a file-level modification within a commit.
type ChangeType string

const (
	ChangeModified ChangeType = "change"
	ChangeNewFile  ChangeType = "new file"
	ChangeDeleted  ChangeType = "deleted file"
)

// Change is a single file modification. New files carry empty previous
// content and no diff; deletions carry empty content and no diff.
type Change struct {
	Path            string     `json:"path"`
	ChangeType      ChangeType `json:"change_type"`
	Diff            string     `json:"diff"`
	Content         string     `json:"content"`
	PreviousContent string     `json:"previous_content"`
}

// Commit is a snapshot of agent-authored changes. Identity is the hash id.
type Commit struct {
	ID      string
	Date    time.Time
	Title   string
	Changes []Change
}

type commitWire struct {
	ID      string   `json:"id"`
	Date    float64  `json:"date"`
	Title   string   `json:"title"`
	Changes []Change `json:"changes"`
}

func (c *Commit) MarshalJSON() ([]byte, error) {
	changes := c.Changes
	if changes == nil {
		changes = []Change{}
	}
	return json.Marshal(commitWire{
		ID:      c.ID,
		Date:    float64(c.Date.Unix()),
		Title:   c.Title,
		Changes: changes,
	})
}

func (c *Commit) UnmarshalJSON(data []byte) error {
	var w commitWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.ID = w.ID
	c.Date = time.Unix(int64(w.Date), 0)
	c.Title = w.Title
	c.Changes = w.Changes
	return nil
}
