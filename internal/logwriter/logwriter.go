// Package logwriter renders a finished run into a plain-text log file under
// <dir>/logs. The file is append-only evidence of what the agent did; it is
// never read back by the coordinator.
package logwriter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/agentstepper/agentstepper/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// WriteRun writes the run log into dir/logs, creating the directory if
// needed, and returns the path of the file written.
func WriteRun(dir string, run *domain.Run) (string, error) {
	logDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.log", sanitize(run.Name), run.StartTime.Format("2006-01-02_15-04-05"))
	path := filepath.Join(logDir, name)

	if err := os.WriteFile(path, []byte(render(run)), 0o644); err != nil {
		return "", fmt.Errorf("write run log: %w", err)
	}
	return path, nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
}

func render(run *domain.Run) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run:      %s (%s)\n", run.Name, run.ID)
	fmt.Fprintf(&b, "Program:  %s\n", run.ProgramName)
	fmt.Fprintf(&b, "Started:  %s\n", run.StartTime.Format(timeLayout))
	fmt.Fprintf(&b, "Server:   %s\n", run.ServerVersion)
	b.WriteString("\n")

	for _, e := range run.EventsByTime() {
		fmt.Fprintf(&b, "=== %s  %s\n", e.Time.Format(timeLayout), e.Type)
		if data := e.DataString(); data != "" {
			writeIndented(&b, data)
		}
		for _, bp := range e.Breakpoints {
			label := bp.Summary
			if label == "" {
				label = string(bp.Data())
			}
			fmt.Fprintf(&b, "  [%s] %s\n", bp.Time.Format(timeLayout), label)
		}
		b.WriteString("\n")
	}

	for _, c := range run.Commits {
		fmt.Fprintf(&b, "--- commit %s  %s\n", c.ID, c.Date.Format(timeLayout))
		fmt.Fprintf(&b, "    %s\n", c.Title)
		for _, ch := range c.Changes {
			fmt.Fprintf(&b, "    %s: %s\n", ch.ChangeType, ch.Path)
			if diff := changeDiff(ch); diff != "" {
				writeIndented(&b, diff)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

// changeDiff returns the textual diff for a change, computing one from the
// before and after contents when the agent did not supply it.
func changeDiff(ch domain.Change) string {
	if ch.Diff != "" {
		return ch.Diff
	}
	if ch.ChangeType != domain.ChangeModified {
		return ""
	}
	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(ch.PreviousContent, ch.Content)
	if len(patches) == 0 {
		return ""
	}
	return dmp.PatchToText(patches)
}

func writeIndented(b *strings.Builder, text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(b, "    %s\n", line)
	}
}
