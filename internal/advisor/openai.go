// Package advisor wraps the LLM that drafts schedule proposals. Its
// output is an untrusted blob; the patch engine validates everything.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are a running coach revising a training schedule.
You receive the athlete's message and their current plan, with day and
activity ids. Respond with a single JSON object and nothing else:

{
  "coachReply": "what you would say to the athlete",
  "summary": "one-line summary of the edits",
  "confidence": "low|medium|high",
  "riskFlags": ["optional warnings"],
  "followUpQuestion": "optional question for the athlete",
  "changes": [
    {"op": "move_activity", "reason": "...", "activityId": "...", "targetDayId": "..."},
    {"op": "edit_activity", "reason": "...", "activityId": "...", "title": "...", "durationMin": 45},
    {"op": "add_activity", "reason": "...", "dayId": "...", "type": "RUN", "title": "..."},
    {"op": "delete_activity", "reason": "...", "activityId": "..."},
    {"op": "extend_plan", "reason": "...", "newStartDate": "2026-01-05"},
    {"op": "reanchor_subtype_weekly", "reason": "...", "subtype": "lrl", "targetDayOfWeek": 6}
  ]
}

Only reference ids that appear in the plan. Never touch days marked
[LOCKED]. Keep the change list small and explain each change.`

// Client calls an OpenAI-compatible chat completion API.
type Client struct {
	api   *openai.Client
	model string
	log   *slog.Logger
}

// New creates an advisor client. baseURL may be empty for the default
// OpenAI endpoint, or point at any compatible server.
func New(apiKey, model, baseURL string, log *slog.Logger) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model, log: log}
}

// Propose asks the advisor for a candidate proposal. The returned bytes
// are raw model output with any markdown fencing stripped, nothing more.
func (c *Client) Propose(ctx context.Context, message, planContext string) ([]byte, error) {
	c.log.Debug("calling advisor", "model", c.model)
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: planContext + "\n\nAthlete message:\n" + message},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("advisor: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("advisor: empty response")
	}
	return []byte(StripFences(resp.Choices[0].Message.Content)), nil
}

// StripFences removes a surrounding markdown code fence from model output,
// if present.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
