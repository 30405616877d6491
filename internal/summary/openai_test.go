package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionFixture = `{
	"id": "cmpl-1",
	"object": "text_completion",
	"created": 1,
	"model": "gpt-3.5-turbo-instruct",
	"choices": [{"text": "  Einstein developed relativity. He won the Nobel Prize.  ", "index": 0, "finish_reason": "stop"}]
}`

type capturedRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

func fakeOpenAI(t *testing.T) (*httptest.Server, *capturedRequest) {
	t.Helper()

	var captured capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		fmt.Fprint(w, completionFixture)
	}))
	t.Cleanup(srv.Close)

	return srv, &captured
}

func TestOpenAISummarizer_TrimsResponse(t *testing.T) {
	srv, captured := fakeOpenAI(t)
	s := NewOpenAISummarizer("test-key", srv.URL)

	got := s.Summarize(context.Background(), "Albert Einstein was a theoretical physicist.")

	assert.Equal(t, "Einstein developed relativity. He won the Nobel Prize.", got)
	assert.Equal(t, "gpt-3.5-turbo-instruct", captured.Model)
	assert.Equal(t, 150, captured.MaxTokens)
	assert.InDelta(t, 0.5, captured.Temperature, 0.001)
	assert.True(t, strings.HasPrefix(captured.Prompt, "Summarize this Wikipedia article in 3-5 sentences:\n\n"))
}

func TestOpenAISummarizer_TruncatesLongInput(t *testing.T) {
	srv, captured := fakeOpenAI(t)
	s := NewOpenAISummarizer("test-key", srv.URL)

	s.Summarize(context.Background(), strings.Repeat("x", 5000))

	// The prompt template carries no 'x', so every x came from the article
	assert.Equal(t, 3000, strings.Count(captured.Prompt, "x"))
}

func TestOpenAISummarizer_FailSoft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewOpenAISummarizer("test-key", srv.URL)

	got := s.Summarize(context.Background(), "Some article text")

	// A broken provider yields placeholder text, never an error
	assert.True(t, strings.HasPrefix(got, "Unable to generate summary:"), got)
}

func TestOpenAISummarizer_DisabledWithoutKey(t *testing.T) {
	s := NewOpenAISummarizer("", "")

	got := s.Summarize(context.Background(), "Some article text")

	assert.Equal(t, "Unable to generate summary: no API key configured", got)
}
