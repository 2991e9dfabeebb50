package webhook

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/instadmio/instadm-appointment-setter/internal/activitylog"
	"github.com/instadmio/instadm-appointment-setter/internal/agentconfig"
	"github.com/instadmio/instadm-appointment-setter/internal/manychat"
	"github.com/instadmio/instadm-appointment-setter/internal/memory"
	"github.com/instadmio/instadm-appointment-setter/platform/logger"

	"github.com/google/uuid"
)

type testResolver struct {
	cfg   agentconfig.TenantConfig
	err   error
	calls int
}

func (r *testResolver) Resolve(_ context.Context, tenantID uuid.UUID) (agentconfig.TenantConfig, error) {
	r.calls++
	cfg := r.cfg
	cfg.TenantID = tenantID
	return cfg, r.err
}

type fieldWrite struct {
	subscriberID string
	fields       []manychat.Field
}

type testDirectory struct {
	mu          sync.Mutex
	subscriber  *manychat.Subscriber
	getErr      error
	setErr      error
	sendErr     error
	getCalls    int
	writes      []fieldWrite
	sent        map[string][]string
	addedTags   []int64
	removedTags []int64
	apiKeys     []string
}

func newTestDirectory() *testDirectory {
	return &testDirectory{sent: map[string][]string{}}
}

func (d *testDirectory) GetSubscriber(context.Context, string) (*manychat.Subscriber, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.getCalls++
	return d.subscriber, d.getErr
}

func (d *testDirectory) SetCustomFields(_ context.Context, id string, fields ...manychat.Field) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, fieldWrite{subscriberID: id, fields: fields})
	return d.setErr
}

func (d *testDirectory) AddTag(_ context.Context, _ string, tagID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addedTags = append(d.addedTags, tagID)
	return nil
}

func (d *testDirectory) RemoveTag(_ context.Context, _ string, tagID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removedTags = append(d.removedTags, tagID)
	return nil
}

func (d *testDirectory) SendContent(_ context.Context, id string, messages ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sendErr != nil {
		return d.sendErr
	}
	d.sent[id] = append(d.sent[id], messages...)
	return nil
}

func (d *testDirectory) field(name string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range d.writes {
		for _, f := range w.fields {
			if f.Name == name {
				return f.Value, true
			}
		}
	}
	return nil, false
}

type replyCall struct {
	tenantID    string
	sessionID   string
	message     string
	participant memory.Participant
}

type testAgent struct {
	mu          sync.Mutex
	reply       string
	replyErr    error
	analysis    string
	scoreErr    error
	replyCalls  []replyCall
	scoreCalls  int
	scoredInput json.RawMessage
}

func (a *testAgent) GenerateReply(_ context.Context, tenantID, sessionID, message string, p memory.Participant) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replyCalls = append(a.replyCalls, replyCall{tenantID: tenantID, sessionID: sessionID, message: message, participant: p})
	return a.reply, a.replyErr
}

func (a *testAgent) ScoreLead(_ context.Context, profile json.RawMessage) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scoreCalls++
	a.scoredInput = profile
	return a.analysis, a.scoreErr
}

type testScraper struct {
	data  json.RawMessage
	err   error
	calls []string
}

func (s *testScraper) ScrapeProfile(_ context.Context, username string) (json.RawMessage, error) {
	s.calls = append(s.calls, username)
	return s.data, s.err
}

type recordedEntry struct {
	level   activitylog.Level
	event   string
	details map[string]any
}

type testActivity struct {
	mu      sync.Mutex
	entries []recordedEntry
}

func (a *testActivity) Record(_ context.Context, _ uuid.UUID, level activitylog.Level, event string, details map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, recordedEntry{level: level, event: event, details: details})
}

func (a *testActivity) has(event string) bool {
	_, ok := a.find(event)
	return ok
}

func (a *testActivity) find(event string) (recordedEntry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if e.event == event {
			return e, true
		}
	}
	return recordedEntry{}, false
}

// harness wires a Service to fakes. Async work runs inline.
type harness struct {
	resolver  *testResolver
	directory *testDirectory
	agent     *testAgent
	scraper   *testScraper
	activity  *testActivity
	service   *Service
	agentCfgs []agentconfig.TenantConfig
}

func newHarness(mode string) *harness {
	h := &harness{
		resolver: &testResolver{cfg: agentconfig.TenantConfig{
			PromptData:      agentconfig.DefaultPromptData(),
			ChatAPIKey:      "sk-test",
			MessagingAPIKey: "mc-test",
		}},
		directory: newTestDirectory(),
		agent:     &testAgent{reply: "Hey! Thanks for reaching out."},
		scraper:   &testScraper{},
		activity:  &testActivity{},
	}
	h.service = NewService(ServiceDeps{
		Resolver: h.resolver,
		Scraper:  h.scraper,
		NewDirectory: func(apiKey string) SubscriberDirectory {
			h.directory.apiKeys = append(h.directory.apiKeys, apiKey)
			return h.directory
		},
		NewAgent: func(cfg agentconfig.TenantConfig) Agent {
			h.agentCfgs = append(h.agentCfgs, cfg)
			return h.agent
		},
		Activity: h.activity,
		Mode:     mode,
		Log:      logger.Discard(),
	})
	h.service.spawn = func(fn func()) { fn() }
	return h
}

func (h *harness) downstreamCalls() int {
	return h.directoryCalls() + len(h.scraper.calls) + h.agent.scoreCalls + len(h.agent.replyCalls)
}

func (h *harness) directoryCalls() int {
	return h.directory.getCalls + len(h.directory.writes) + len(h.directory.sent)
}
