package refine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

const refinePrompt = `You are a project planning assistant. Given raw notes from a daily log, extract distinct project ideas and produce a full project specification for the primary (most important) idea.

Output a single JSON object with this exact structure (no markdown, no code fences):
{
  "ideas": [
    {
      "id": "string (unique)",
      "category": "ENGINEERING | OPS | DESIGN | PRODUCT | OTHER",
      "title": "string",
      "description": "string",
      "status": "string (e.g. 'Needs Input' or 'N tasks')",
      "taskCount": number (optional)
    }
  ],
  "project": {
    "name": "string (project name)",
    "sourceNote": {
      "title": "string",
      "date": "string (ISO date or readable)",
      "recordedBy": "string (or 'User')",
      "highlights": ["string"],
      "aiNote": "string (optional)"
    },
    "specSections": [
      {
        "id": "string",
        "title": "string (e.g. FUNCTIONAL REQUIREMENTS)",
        "icon": "blue | orange | red",
        "items": [
          {
            "id": "string (e.g. REQ-101)",
            "title": "string",
            "description": "string",
            "status": "verified | pending",
            "linkedNote": number (optional),
            "inferred": boolean (optional),
            "notExplicitlyMentioned": boolean (optional)
          }
        ]
      }
    ],
    "milestones": [
      {
        "id": "string",
        "title": "string",
        "time": "string (e.g. 'Saturday • 4h est.')",
        "tasks": [
          {
            "id": "string",
            "title": "string",
            "description": "string",
            "icon": "folder | database | shield | form | api | terminal | login",
            "badge": "AI | AG",
            "time": "string (optional)",
            "status": "ready (optional)",
            "priority": "high (optional)"
          }
        ]
      }
    ],
    "generatedIssues": [
      {
        "id": "string",
        "title": "string",
        "description": "string",
        "tags": ["string"]
      }
    ]
  }
}

Extract all distinct ideas from the notes. For the project, focus on the primary idea (first or most prominent). Infer categories, create traceable requirements, and produce realistic milestones with tasks.`

// Engine is the model-backed refiner.
type Engine struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func newEngine(apiKey, baseURL, model string, timeout time.Duration) *Engine {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Engine{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

// Refine sends the notes to the chat model and decodes the structured reply.
func (e *Engine) Refine(ctx context.Context, content string) (*Result, error) {
	plain := StripHTML(content)
	if plain == "" {
		return nil, errors.New("refine: content is required")
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: refinePrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Notes:\n" + plain},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("refine: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("refine: no response from model")
	}

	var result Result
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("refine: decode response: %w", err)
	}
	if result.Ideas == nil {
		return nil, errors.New("refine: invalid response: missing ideas")
	}
	if result.Project.Name == "" {
		return nil, errors.New("refine: invalid response: missing project name")
	}

	sanitize(&result)
	return &result, nil
}
