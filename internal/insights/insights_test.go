package insights

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"acta-transcript-engine/internal/models"
)

func completionServer(t *testing.T, content string, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if gotBody != nil {
			_ = json.NewDecoder(r.Body).Decode(gotBody)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testSummary() models.Summary {
	return models.Summary{
		SessionID:      "m1",
		FullTranscript: "We agreed to ship on Friday. Ana will update the docs.",
		Config:         models.SessionConfig{Language: "en-US"},
		Metadata:       models.Metadata{TotalSentences: 2, TotalWords: 11},
	}
}

func TestExtract(t *testing.T) {
	var body map[string]any
	content := `{"title":"Release planning","summary":["Ship on Friday"],"action_items":["Ana updates docs"],"key_points":[]}`
	srv := completionServer(t, content, &body)

	e := New(Config{APIKey: "sk-test", Model: "test-model", BaseURL: srv.URL + "/v1"})
	got, err := e.Extract(context.Background(), testSummary())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Title != "Release planning" {
		t.Errorf("unexpected title %q", got.Title)
	}
	if len(got.Summary) != 1 || len(got.ActionItems) != 1 || got.ActionItems[0] != "Ana updates docs" {
		t.Errorf("unexpected insights %+v", got)
	}
	if got.KeyPoints == nil {
		t.Error("expected empty key points, not nil")
	}

	if body["model"] != "test-model" {
		t.Errorf("expected configured model, got %v", body["model"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(msgs))
	}
	user, _ := msgs[1].(map[string]any)
	if content, _ := user["content"].(string); !strings.Contains(content, "ship on Friday") {
		t.Errorf("expected transcript in user prompt, got %q", content)
	}
}

func TestExtract_CodeFencedResponse(t *testing.T) {
	srv := completionServer(t, "```json\n{\"title\":\"Fenced\"}\n```", nil)

	e := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	got, err := e.Extract(context.Background(), testSummary())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Fenced" {
		t.Errorf("unexpected title %q", got.Title)
	}
	if got.Summary == nil || got.ActionItems == nil {
		t.Error("expected missing lists to be empty")
	}
}

func TestExtract_InvalidJSON(t *testing.T) {
	srv := completionServer(t, "not json at all", nil)

	e := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if _, err := e.Extract(context.Background(), testSummary()); err == nil {
		t.Error("expected parse error")
	}
}

func TestExtract_EmptyTranscript(t *testing.T) {
	e := New(Config{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1/v1"})

	_, err := e.Extract(context.Background(), models.Summary{FullTranscript: "   "})
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("expected ErrEmptyTranscript, got %v", err)
	}
}

func TestExtract_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	e := New(Config{APIKey: "sk-bad", BaseURL: srv.URL + "/v1"})
	if _, err := e.Extract(context.Background(), testSummary()); err == nil {
		t.Error("expected API error")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct{ in, want string }{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}```", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripCodeFence(tt.in); got != tt.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
