// Package scraper fetches Instagram profile snapshots from DataPrism.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/instadmio/instadm-appointment-setter/platform/config"
	"github.com/instadmio/instadm-appointment-setter/platform/logger"
)

const (
	defaultURL       = "https://platform.dataprism.dev/api/v1/tools/instagram/scrape"
	defaultPostCount = 3
	defaultTimeout   = 60 * time.Second
)

// Scraper returns a profile snapshot for a handle. A nil result with a nil
// error means no data is available.
type Scraper interface {
	ScrapeProfile(ctx context.Context, username string) (json.RawMessage, error)
}

type Client struct {
	url       string
	apiKey    string
	postCount int
	http      *http.Client
	log       *logger.Logger
}

type scrapeRequest struct {
	Username string `json:"username"`
	Posts    int    `json:"posts"`
	Comments int    `json:"comments"`
}

func NewClient(cfg config.ScraperConfig, log *logger.Logger) *Client {
	url := cfg.GetDataPrismURL()
	if url == "" {
		url = defaultURL
	}
	posts := cfg.GetScrapePostCount()
	if posts <= 0 {
		posts = defaultPostCount
	}
	timeout := cfg.GetOutboundHTTPTimeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:       url,
		apiKey:    cfg.GetDataPrismAPIKey(),
		postCount: posts,
		http:      &http.Client{Timeout: timeout},
		log:       log,
	}
}

// ScrapeProfile posts the handle to DataPrism and returns the raw response
// body. Without an API key it warns and returns no data.
func (c *Client) ScrapeProfile(ctx context.Context, username string) (json.RawMessage, error) {
	if c.apiKey == "" {
		c.log.Warn("scraper: DataPrism API key missing, skipping scrape", "username", username)
		return nil, nil
	}

	body, err := json.Marshal(scrapeRequest{Username: username, Posts: c.postCount, Comments: 0})
	if err != nil {
		return nil, fmt.Errorf("marshal scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		err = fmt.Errorf("dataprism request failed: %w", err)
		c.log.OutboundError("dataprism", "scrape", err)
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read dataprism response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		err = fmt.Errorf("dataprism returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		c.log.OutboundError("dataprism", "scrape", err)
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		err = fmt.Errorf("dataprism returned non-JSON body")
		c.log.OutboundError("dataprism", "scrape", err)
		return nil, err
	}

	c.log.Info("scraper: profile fetched", "username", username, "bytes", len(trimmed))
	return json.RawMessage(trimmed), nil
}
