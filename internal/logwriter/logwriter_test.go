package logwriter

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/agentstepper/agentstepper/internal/domain"
)

func TestWriteRun(t *testing.T) {
	run := domain.NewRun("Run #1 of demo", "demo", time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), "v1.0.0-beta.pre-2")

	started := domain.NewEvent(domain.EventProgramStarted)
	bp := domain.NewBreakpoint("demo", json.RawMessage(`{}`), started.ID)
	if err := started.AddBreakpoint(bp); err != nil {
		t.Fatal(err)
	}
	run.AddEvent(started)

	query := domain.NewEvent(domain.EventLLMQuery)
	qbp := domain.NewBreakpoint("demo", json.RawMessage(`{"prompt":"list files"}`), query.ID)
	qbp.Summary = "Asks the model to list files"
	if err := query.AddBreakpoint(qbp); err != nil {
		t.Fatal(err)
	}
	run.AddEvent(query)

	run.AddCommit(&domain.Commit{
		ID:    "ab12cd",
		Date:  time.Date(2026, 3, 14, 9, 31, 0, 0, time.UTC),
		Title: "add greeting",
		Changes: []domain.Change{{
			Path:            "hello.txt",
			ChangeType:      domain.ChangeModified,
			PreviousContent: "hi\n",
			Content:         "hello\n",
		}},
	})

	dir := t.TempDir()
	path, err := WriteRun(dir, run)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, ".log") {
		t.Errorf("path = %q", path)
	}
	if !strings.Contains(path, "Run_#1_of_demo_2026-03-14_09-30-00") {
		t.Errorf("path must encode name and start time, got %q", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(raw)

	for _, want := range []string{
		"Program:  demo",
		"PROGRAM_STARTED",
		"LLM_QUERY",
		"Asks the model to list files",
		"commit ab12cd",
		"add greeting",
		"change: hello.txt",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("log missing %q:\n%s", want, content)
		}
	}
	// The change carried no diff, so one is computed from the contents.
	if !strings.Contains(content, "@@") {
		t.Errorf("log missing computed diff:\n%s", content)
	}
}

func TestWriteRunKeepsSuppliedDiff(t *testing.T) {
	run := domain.NewRun("r", "demo", time.Now(), "v1.0.0-beta.pre-2")
	run.AddCommit(&domain.Commit{
		ID:    "ff00aa",
		Date:  time.Now(),
		Title: "tweak",
		Changes: []domain.Change{{
			Path:       "a.txt",
			ChangeType: domain.ChangeModified,
			Diff:       "+already provided",
			Content:    "x",
		}},
	})

	path, err := WriteRun(t.TempDir(), run)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "+already provided") {
		t.Error("supplied diff must be written verbatim")
	}
}
