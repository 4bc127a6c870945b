// Package summary turns breakpoint payloads into short human labels using an
// external language model. Failures never propagate: a breakpoint without a
// summary is merely unlabeled.
package summary

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/agentstepper/agentstepper/internal/domain"
)

// Summarizer produces a short label for a breakpoint payload. Implementations
// must be safe for concurrent use.
type Summarizer interface {
	Summarize(ctx context.Context, run *domain.Run, bp *domain.Breakpoint) (string, error)
}

//go:embed prompts/*.prompt
var promptFS embed.FS

var promptFiles = map[string]string{
	"query_request":  "prompts/summarize_query_request.prompt",
	"query_response": "prompts/summarize_query_response.prompt",
	"tool_call":      "prompts/summarize_tool_call.prompt",
	"tool_result":    "prompts/summarize_tool_result.prompt",
}

func loadPrompt(kind string) (string, error) {
	path, ok := promptFiles[kind]
	if !ok {
		return "", fmt.Errorf("no prompt template %q", kind)
	}
	data, err := promptFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// buildPrompt selects the template for the breakpoint's position within its
// event and assembles the full instruction. The second return is false when
// the event kind has nothing to summarize (program start/finish, debug).
func buildPrompt(run *domain.Run, bp *domain.Breakpoint) (string, bool, error) {
	event, ok := run.Event(bp.EventID)
	if !ok {
		return "", false, fmt.Errorf("breakpoint %s references unknown event %s", bp.ID, bp.EventID)
	}

	isBegin := event.HasBeginBreakpoint() && event.BeginBreakpoint().ID == bp.ID

	var kind string
	switch event.Type {
	case domain.EventLLMQuery:
		if isBegin {
			kind = "query_request"
		} else {
			kind = "query_response"
		}
	case domain.EventToolInvocation:
		if isBegin {
			kind = "tool_call"
		} else {
			kind = "tool_result"
		}
	default:
		return "", false, nil
	}

	prompt, err := loadPrompt(kind)
	if err != nil {
		return "", false, err
	}

	// A query request is summarized against the previous query so the label
	// describes what changed, not the whole conversation.
	if kind == "query_request" {
		previous := ""
		if queries := run.PreviousLLMQueries(event); len(queries) > 0 {
			if prev := queries[len(queries)-1].BeginBreakpoint(); prev != nil {
				previous = string(prev.Data())
			}
		}
		prompt += fmt.Sprintf("\n\n\"%s\"\n\nBelow is the message to summarize:", previous)
	}

	prompt += fmt.Sprintf("\n\n\"%s\"", string(bp.OriginalData))
	return prompt, true, nil
}
