package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/instadmio/instadm-appointment-setter/platform/logger"
)

type testConfig struct {
	url    string
	apiKey string
}

func (c testConfig) GetDataPrismAPIKey() string            { return c.apiKey }
func (c testConfig) GetDataPrismURL() string               { return c.url }
func (c testConfig) GetScrapePostCount() int               { return 0 }
func (c testConfig) GetOutboundHTTPTimeout() time.Duration { return 5 * time.Second }

func TestScrapeProfileSendsHandleAndKey(t *testing.T) {
	var gotKey string
	var gotBody scrapeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"username":"jdoe","biography":"Founder @ Acme"}`)
	}))
	defer srv.Close()

	client := NewClient(testConfig{url: srv.URL, apiKey: "dp-key"}, logger.Discard())
	data, err := client.ScrapeProfile(context.Background(), "jdoe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "dp-key" {
		t.Fatalf("expected X-API-KEY header, got %q", gotKey)
	}
	if gotBody.Username != "jdoe" || gotBody.Posts != 3 || gotBody.Comments != 0 {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
	if len(data) == 0 {
		t.Fatal("expected profile data")
	}
}

func TestScrapeProfileWithoutKeyReturnsNoData(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := NewClient(testConfig{url: srv.URL}, logger.Discard())
	data, err := client.ScrapeProfile(context.Background(), "jdoe")
	if err != nil || data != nil {
		t.Fatalf("expected no data and no error, got %s, %v", data, err)
	}
	if called {
		t.Fatal("expected no outbound call without an API key")
	}
}

func TestScrapeProfileErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(testConfig{url: srv.URL, apiKey: "dp-key"}, logger.Discard())
	if _, err := client.ScrapeProfile(context.Background(), "jdoe"); err == nil {
		t.Fatal("expected error on 502")
	}
}

type stubScraper struct {
	data json.RawMessage
	err  error
}

func (s stubScraper) ScrapeProfile(context.Context, string) (json.RawMessage, error) {
	return s.data, s.err
}

type memoryObjectStore struct {
	keys []string
	err  error
}

func (m *memoryObjectStore) PutBytes(_ context.Context, _, key, _ string, _ []byte) error {
	m.keys = append(m.keys, key)
	return m.err
}

func TestArchivingScraperStoresSnapshot(t *testing.T) {
	store := &memoryObjectStore{}
	archiver := NewArchivingScraper(stubScraper{data: json.RawMessage(`{"a":1}`)}, store, "profile-snapshots", logger.Discard())
	archiver.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	ctx := context.WithValue(context.Background(), logger.TenantIDKey, "tenant-1")
	data, err := archiver.ScrapeProfile(ctx, "jdoe")
	if err != nil || string(data) != `{"a":1}` {
		t.Fatalf("unexpected result: %s, %v", data, err)
	}
	want := "tenant-1/jdoe/20260102T030405.000000000Z.json"
	if len(store.keys) != 1 || store.keys[0] != want {
		t.Fatalf("expected key %s, got %v", want, store.keys)
	}
}

func TestArchivingScraperIgnoresStoreFailure(t *testing.T) {
	store := &memoryObjectStore{err: errors.New("bucket offline")}
	archiver := NewArchivingScraper(stubScraper{data: json.RawMessage(`{}`)}, store, "b", logger.Discard())

	data, err := archiver.ScrapeProfile(context.Background(), "jdoe")
	if err != nil || data == nil {
		t.Fatalf("expected data despite archive failure, got %s, %v", data, err)
	}
}

func TestArchivingScraperSkipsEmptyResult(t *testing.T) {
	store := &memoryObjectStore{}
	archiver := NewArchivingScraper(stubScraper{}, store, "b", logger.Discard())

	if _, err := archiver.ScrapeProfile(context.Background(), "jdoe"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.keys) != 0 {
		t.Fatal("expected nothing archived for empty result")
	}
}
