package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// maxInputChars keeps the prompt inside the provider's token limit
const maxInputChars = 3000

const completionModel = "gpt-3.5-turbo-instruct"

// Summarizer produces a short summary of article text. Implementations
// never fail: a broken provider degrades to explanatory placeholder text,
// so summary generation can never abort the surrounding read flow.
type Summarizer interface {
	Summarize(ctx context.Context, text string) string
}

// OpenAISummarizer asks an OpenAI completion endpoint for a 3-5 sentence
// summary of the article.
type OpenAISummarizer struct {
	client  *openai.Client
	enabled bool
}

// NewOpenAISummarizer builds the client. An empty apiKey disables summary
// generation; baseURL overrides the endpoint (used by tests and proxies).
func NewOpenAISummarizer(apiKey, baseURL string) *OpenAISummarizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAISummarizer{
		client:  openai.NewClientWithConfig(cfg),
		enabled: apiKey != "",
	}
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, text string) string {
	if !s.enabled {
		return "Unable to generate summary: no API key configured"
	}

	if runes := []rune(text); len(runes) > maxInputChars {
		text = string(runes[:maxInputChars])
	}

	request := openai.CompletionRequest{
		Model:       completionModel,
		Prompt:      fmt.Sprintf("Summarize this Wikipedia article in 3-5 sentences:\n\n%s", text),
		MaxTokens:   150,
		Temperature: 0.5,
	}

	resp, err := s.client.CreateCompletion(ctx, request)
	if err != nil {
		return fmt.Sprintf("Unable to generate summary: %v", err)
	}
	if len(resp.Choices) == 0 {
		return "Unable to generate summary: empty response"
	}

	return strings.TrimSpace(resp.Choices[0].Text)
}
