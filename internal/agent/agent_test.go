package agent

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/instadmio/instadm-appointment-setter/internal/memory"
	"github.com/instadmio/instadm-appointment-setter/platform/logger"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

type testLLM struct {
	reply    string
	err      error
	requests []*model.LLMRequest
}

func (m *testLLM) Name() string { return "gpt-4" }

func (m *testLLM) GenerateContent(_ context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	m.requests = append(m.requests, req)
	return func(yield func(*model.LLMResponse, error) bool) {
		if m.err != nil {
			yield(nil, m.err)
			return
		}
		var parts []*genai.Part
		if m.reply != "" {
			parts = append(parts, genai.NewPartFromText(m.reply))
		}
		yield(&model.LLMResponse{Content: &genai.Content{Role: genai.RoleModel, Parts: parts}}, nil)
	}
}

type testStore struct {
	threads     map[string][]memory.Message
	ensureErr   error
	historyErr  error
	appendErr   error
	created     []string
	ensureCalls int
}

func newTestStore() *testStore {
	return &testStore{threads: map[string][]memory.Message{}}
}

func (s *testStore) EnsureSession(context.Context, string, memory.Participant) error {
	s.ensureCalls++
	return s.ensureErr
}

func (s *testStore) History(_ context.Context, id string) ([]memory.Message, error) {
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	msgs, ok := s.threads[id]
	if !ok {
		return nil, memory.ErrThreadNotFound
	}
	return append([]memory.Message(nil), msgs...), nil
}

func (s *testStore) CreateThread(_ context.Context, id string) error {
	s.created = append(s.created, id)
	if _, ok := s.threads[id]; !ok {
		s.threads[id] = nil
	}
	return nil
}

func (s *testStore) Append(_ context.Context, id string, msgs ...memory.Message) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.threads[id] = append(s.threads[id], msgs...)
	return nil
}

func TestGenerateReplyAppendsPairAfterHistory(t *testing.T) {
	llm := &testLLM{reply: "Happy to help!"}
	store := newTestStore()
	store.threads["jdoe"] = []memory.Message{
		{Role: memory.RoleUser, Content: "hi"},
		{Role: memory.RoleAssistant, Content: "hello"},
	}
	a := New(llm, store, map[string]string{SlotAgentName: "Ava"}, logger.Discard())

	reply, err := a.GenerateReply(context.Background(), "tenant", "jdoe", "what do you sell?", memory.Participant{Username: "jdoe"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Happy to help!" {
		t.Fatalf("unexpected reply %q", reply)
	}

	got := store.threads["jdoe"]
	if len(got) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(got))
	}
	if got[2].Role != memory.RoleUser || got[2].Content != "what do you sell?" {
		t.Fatalf("expected user message third, got %+v", got[2])
	}
	if got[3].Role != memory.RoleAssistant || got[3].Content != "Happy to help!" {
		t.Fatalf("expected assistant reply last, got %+v", got[3])
	}

	req := llm.requests[0]
	if len(req.Contents) != 3 {
		t.Fatalf("expected history plus new message, got %d contents", len(req.Contents))
	}
	if req.Contents[1].Role != string(genai.RoleModel) {
		t.Fatalf("expected assistant history mapped to model role, got %s", req.Contents[1].Role)
	}
	system := req.Config.SystemInstruction.Parts[0].Text
	if !strings.HasPrefix(system, "You are Ava.") {
		t.Fatalf("expected persona in system prompt, got %q", system)
	}
}

func TestGenerateReplyMissingThreadCreatesIt(t *testing.T) {
	llm := &testLLM{reply: "hey"}
	store := newTestStore()
	a := New(llm, store, nil, logger.Discard())

	if _, err := a.GenerateReply(context.Background(), "tenant", "123", "hi", memory.Participant{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.created) != 1 || store.created[0] != "123" {
		t.Fatalf("expected thread creation for 123, got %v", store.created)
	}
	if len(llm.requests[0].Contents) != 1 {
		t.Fatalf("expected only the new message, got %d", len(llm.requests[0].Contents))
	}
}

func TestGenerateReplyToleratesMemoryOutage(t *testing.T) {
	llm := &testLLM{reply: "still here"}
	store := newTestStore()
	store.ensureErr = errors.New("zep down")
	store.historyErr = errors.New("zep down")
	store.appendErr = errors.New("zep down")
	a := New(llm, store, nil, logger.Discard())

	reply, err := a.GenerateReply(context.Background(), "tenant", "123", "hi", memory.Participant{})
	if err != nil {
		t.Fatalf("expected memory failures to be tolerated, got %v", err)
	}
	if reply != "still here" {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestGenerateReplyEmptyReplyLeavesMemoryUntouched(t *testing.T) {
	llm := &testLLM{}
	store := newTestStore()
	store.threads["123"] = nil
	a := New(llm, store, nil, logger.Discard())

	reply, err := a.GenerateReply(context.Background(), "tenant", "123", "hi", memory.Participant{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "" {
		t.Fatalf("expected no reply, got %q", reply)
	}
	if len(store.threads["123"]) != 0 {
		t.Fatal("expected nothing appended without a reply")
	}
}

func TestGenerateReplyProviderError(t *testing.T) {
	llm := &testLLM{err: errors.New("rate limited")}
	a := New(llm, newTestStore(), nil, logger.Discard())

	if _, err := a.GenerateReply(context.Background(), "tenant", "123", "hi", memory.Participant{}); err == nil {
		t.Fatal("expected provider error to surface")
	}
}

func TestScoreLeadSendsRubricAndProfile(t *testing.T) {
	llm := &testLLM{reply: "First Name: Jane\nICP: Yes"}
	a := New(llm, newTestStore(), nil, logger.Discard())

	analysis, err := a.ScoreLead(context.Background(), json.RawMessage(`{"biography":"Founder of Acme"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsQualified(analysis) {
		t.Fatalf("expected qualified analysis, got %q", analysis)
	}

	req := llm.requests[0]
	if len(req.Contents) != 0 {
		t.Fatalf("expected a single system prompt, got %d contents", len(req.Contents))
	}
	prompt := req.Config.SystemInstruction.Parts[0].Text
	if !strings.Contains(prompt, "ICP CRITERIA") {
		t.Fatal("expected rubric in prompt")
	}
	if !strings.Contains(prompt, "\"biography\": \"Founder of Acme\"") {
		t.Fatalf("expected indented profile JSON in prompt, got %q", prompt)
	}
}

func TestScoreLeadRejectsEmptyProfile(t *testing.T) {
	a := New(&testLLM{}, newTestStore(), nil, logger.Discard())
	if _, err := a.ScoreLead(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty profile")
	}
}

func TestGenerateReplyKeepsSystemHistoryRole(t *testing.T) {
	llm := &testLLM{reply: "Sure."}
	store := newTestStore()
	store.threads["jdoe"] = []memory.Message{
		{Role: memory.RoleSystem, Content: "Lead prefers evenings."},
		{Role: memory.RoleUser, Content: "hi"},
	}
	a := New(llm, store, nil, logger.Discard())

	if _, err := a.GenerateReply(context.Background(), "tenant", "jdoe", "book me", memory.Participant{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	contents := llm.requests[0].Contents
	want := []string{"system", string(genai.RoleUser), string(genai.RoleUser)}
	if len(contents) != len(want) {
		t.Fatalf("expected %d contents, got %d", len(want), len(contents))
	}
	for i, role := range want {
		if contents[i].Role != role {
			t.Fatalf("content %d: expected role %s, got %s", i, role, contents[i].Role)
		}
	}
}
