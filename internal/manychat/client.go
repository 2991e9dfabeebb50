// Package manychat is the subscriber directory client for the ManyChat
// Instagram messaging API.
package manychat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/instadmio/instadm-appointment-setter/platform/config"
	"github.com/instadmio/instadm-appointment-setter/platform/logger"
)

const (
	defaultBaseURL = "https://api.manychat.com/fb"
	defaultTimeout = 60 * time.Second
	serviceName    = "manychat"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates a client bound to one tenant's API key.
func NewClient(cfg config.ManyChatConfig, apiKey string, log *logger.Logger) *Client {
	baseURL := strings.TrimRight(cfg.GetManyChatBaseURL(), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.GetOutboundHTTPTimeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Field is a single custom field write.
type Field struct {
	Name  string
	Value any
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type setFieldRequest struct {
	SubscriberID string `json:"subscriber_id"`
	FieldName    string `json:"field_name"`
	FieldValue   any    `json:"field_value"`
}

type tagRequest struct {
	SubscriberID string `json:"subscriber_id"`
	TagID        int64  `json:"tag_id"`
}

type sendContentRequest struct {
	SubscriberID string      `json:"subscriber_id"`
	Data         sendContent `json:"data"`
}

type sendContent struct {
	Version string         `json:"version"`
	Content contentPayload `json:"content"`
}

type contentPayload struct {
	Type     string        `json:"type"`
	Messages []textMessage `json:"messages"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// GetSubscriber fetches subscriber info including custom fields.
func (c *Client) GetSubscriber(ctx context.Context, subscriberID string) (*Subscriber, error) {
	query := url.Values{"subscriber_id": {subscriberID}}
	data, err := c.do(ctx, http.MethodGet, "/subscriber/getInfo?"+query.Encode(), nil)
	if err != nil {
		c.log.OutboundError(serviceName, "getInfo", err)
		return nil, err
	}

	var sub Subscriber
	if err := json.Unmarshal(data, &sub); err != nil {
		err = fmt.Errorf("decode manychat subscriber: %w", err)
		c.log.OutboundError(serviceName, "getInfo", err)
		return nil, err
	}
	return &sub, nil
}

// SetCustomFields writes each field with its own call, in order, and stops at
// the first failure.
func (c *Client) SetCustomFields(ctx context.Context, subscriberID string, fields ...Field) error {
	for _, field := range fields {
		payload := setFieldRequest{
			SubscriberID: subscriberID,
			FieldName:    field.Name,
			FieldValue:   field.Value,
		}
		if _, err := c.do(ctx, http.MethodPost, "/subscriber/setCustomFieldByName", payload); err != nil {
			err = fmt.Errorf("set field %s: %w", field.Name, err)
			c.log.OutboundError(serviceName, "setCustomFieldByName", err)
			return err
		}
	}
	return nil
}

// AddTag attaches a tag to the subscriber.
func (c *Client) AddTag(ctx context.Context, subscriberID string, tagID int64) error {
	if _, err := c.do(ctx, http.MethodPost, "/subscriber/addTag", tagRequest{SubscriberID: subscriberID, TagID: tagID}); err != nil {
		c.log.OutboundError(serviceName, "addTag", err)
		return err
	}
	return nil
}

// RemoveTag detaches a tag from the subscriber.
func (c *Client) RemoveTag(ctx context.Context, subscriberID string, tagID int64) error {
	if _, err := c.do(ctx, http.MethodPost, "/subscriber/removeTag", tagRequest{SubscriberID: subscriberID, TagID: tagID}); err != nil {
		c.log.OutboundError(serviceName, "removeTag", err)
		return err
	}
	return nil
}

// SendContent delivers each message as its own Instagram text block,
// sequentially so ordering is preserved.
func (c *Client) SendContent(ctx context.Context, subscriberID string, messages ...string) error {
	for _, msg := range messages {
		payload := sendContentRequest{
			SubscriberID: subscriberID,
			Data: sendContent{
				Version: "v2",
				Content: contentPayload{
					Type:     "instagram",
					Messages: []textMessage{{Type: "text", Text: msg}},
				},
			},
		}
		if _, err := c.do(ctx, http.MethodPost, "/sending/sendContent", payload); err != nil {
			c.log.OutboundError(serviceName, "sendContent", err)
			return err
		}
		c.log.Info("manychat: content sent", "subscriberId", subscriberID, "chars", len(msg))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal manychat payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("manychat request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read manychat response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("manychat returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode manychat response: %w", err)
	}
	if env.Status != "" && env.Status != "success" {
		return nil, fmt.Errorf("manychat status %s: %s", env.Status, env.Message)
	}
	return env.Data, nil
}
