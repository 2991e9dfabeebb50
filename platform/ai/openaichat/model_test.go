package openaichat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newCompletionServer(t *testing.T, reply string, captured *capturedRequest, auth *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		*auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":`+mustQuote(reply)+`}}]}`)
	}))
}

func mustQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func collect(t *testing.T, m *ChatModel, req *model.LLMRequest) (*model.LLMResponse, error) {
	t.Helper()
	var (
		resp *model.LLMResponse
		err  error
	)
	for r, e := range m.GenerateContent(context.Background(), req, false) {
		resp, err = r, e
	}
	return resp, err
}

func TestGenerateContentMapsRolesAndSystemInstruction(t *testing.T) {
	var captured capturedRequest
	var auth string
	srv := newCompletionServer(t, "Hi Jane!", &captured, &auth)
	defer srv.Close()

	m := NewModel(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4"})
	req := &model.LLMRequest{
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("You are Ava.", "system"),
		},
		Contents: []*genai.Content{
			genai.NewContentFromText("hello", genai.RoleUser),
			genai.NewContentFromText("hey there", genai.RoleModel),
			genai.NewContentFromText("how much?", genai.RoleUser),
		},
	}

	resp, err := collect(t, m, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := contentText(resp.Content); got != "Hi Jane!" {
		t.Fatalf("expected reply text, got %q", got)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("expected bearer auth, got %q", auth)
	}
	if captured.Model != "gpt-4" {
		t.Fatalf("expected model gpt-4, got %q", captured.Model)
	}

	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(captured.Messages) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(captured.Messages))
	}
	for i, role := range wantRoles {
		if captured.Messages[i].Role != role {
			t.Fatalf("message %d: expected role %s, got %s", i, role, captured.Messages[i].Role)
		}
	}
	if captured.Messages[0].Content != "You are Ava." {
		t.Fatalf("expected system prompt first, got %q", captured.Messages[0].Content)
	}
}

func TestGenerateContentEmptyReplyHasNoParts(t *testing.T) {
	var captured capturedRequest
	var auth string
	srv := newCompletionServer(t, "   ", &captured, &auth)
	defer srv.Close()

	m := NewModel(Config{APIKey: "sk-test", BaseURL: srv.URL})
	resp, err := collect(t, m, &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText("hi", genai.RoleUser)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Content.Parts) != 0 {
		t.Fatalf("expected no parts for blank reply, got %d", len(resp.Content.Parts))
	}
	if captured.Model != DefaultModel {
		t.Fatalf("expected default model, got %q", captured.Model)
	}
}

func TestGenerateContentProviderErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	}))
	defer srv.Close()

	m := NewModel(Config{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := collect(t, m, &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText("hi", genai.RoleUser)},
	})
	if err == nil {
		t.Fatal("expected provider error")
	}
}
