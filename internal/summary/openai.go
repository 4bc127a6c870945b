package summary

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/agentstepper/agentstepper/internal/domain"
)

// OpenAISummarizer labels breakpoints with a chat completion call.
type OpenAISummarizer struct {
	client openai.Client
	model  string
}

// NewOpenAI builds a summarizer backed by the OpenAI API. The key comes from
// the OPENAI_API_KEY environment variable.
func NewOpenAI(model string) (*OpenAISummarizer, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", domain.ErrSummarizerUnavailable)
	}
	return &OpenAISummarizer{
		client: openai.NewClient(option.WithAPIKey(key)),
		model:  model,
	}, nil
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, run *domain.Run, bp *domain.Breakpoint) (string, error) {
	prompt, ok, err := buildPrompt(run, bp)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize breakpoint %s: %w", bp.ID, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarize breakpoint %s: empty completion", bp.ID)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
