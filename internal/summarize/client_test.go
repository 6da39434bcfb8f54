package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func chatReply(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestSummarizeParsesJSONPayload(t *testing.T) {
	content := `{"summary": "We agreed to ship Friday.", "action_items": ["Alex: update the changelog"], "topics": ["release planning"]}`
	srv := httptest.NewServer(chatReply(t, content))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", WithModel("test-model"))
	summary, err := c.Summarize(context.Background(), "we talked about the release")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Text != "We agreed to ship Friday." {
		t.Errorf("text = %q", summary.Text)
	}
	if len(summary.ActionItems) != 1 || summary.ActionItems[0] != "Alex: update the changelog" {
		t.Errorf("action items = %v", summary.ActionItems)
	}
	if len(summary.Topics) != 1 || summary.Topics[0] != "release planning" {
		t.Errorf("topics = %v", summary.Topics)
	}
	if summary.Model != "test-model" {
		t.Errorf("model = %q, want test-model", summary.Model)
	}
	if summary.GeneratedAt == "" {
		t.Error("generated_at empty")
	}
}

func TestSummarizeFallsBackToPlainText(t *testing.T) {
	srv := httptest.NewServer(chatReply(t, "The team discussed the quarterly roadmap."))
	defer srv.Close()

	summary, err := NewClient(srv.URL, "test-key").Summarize(context.Background(), "roadmap talk")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Text != "The team discussed the quarterly roadmap." {
		t.Errorf("text = %q", summary.Text)
	}
	if len(summary.ActionItems) != 0 || len(summary.Topics) != 0 {
		t.Errorf("expected empty lists, got %v / %v", summary.ActionItems, summary.Topics)
	}
}

func TestSummarizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "bad-key").Summarize(context.Background(), "transcript")
	if err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestSummarizeValidation(t *testing.T) {
	if _, err := NewClient("", "key").Summarize(context.Background(), "text"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("empty endpoint = %v, want ErrNotConfigured", err)
	}
	if _, err := NewClient("http://localhost:1", "key").Summarize(context.Background(), "   "); !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("blank transcript = %v, want ErrEmptyTranscript", err)
	}
}
