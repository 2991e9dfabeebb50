package webhook

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/instadmio/instadm-appointment-setter/platform/apperr"
	"github.com/instadmio/instadm-appointment-setter/platform/validator"
)

// Alias lists are tried in order; the first non-empty value wins.
var (
	subscriberIDKeys = []string{"subscriber_id", "subscriberId", "sessionId", "id"}
	messageKeys      = []string{"message", "last_input_text", "lastInputText"}
	firstNameKeys    = []string{"first_name", "firstName", "name"}
	usernameKeys     = []string{"username"}
)

// InboundEvent is a normalized webhook payload.
type InboundEvent struct {
	SubscriberID string `json:"subscriberId" validate:"required"`
	Message      string `json:"message" validate:"required"`
	FirstName    string `json:"firstName,omitempty"`
	Username     string `json:"username,omitempty"`
}

// SessionID addresses the memory thread: the handle when known, else the
// subscriber id.
func (e InboundEvent) SessionID() string {
	if e.Username != "" {
		return e.Username
	}
	return e.SubscriberID
}

// InvalidPayloadDetails is attached to InvalidPayload errors.
type InvalidPayloadDetails struct {
	Reason  string   `json:"reason"`
	Missing []string `json:"missing,omitempty"`
}

func invalidPayload(missing ...string) *apperr.Error {
	return apperr.BadRequest("Invalid Payload").
		WithOp("webhook.ParseInboundEvent").
		WithDetails(InvalidPayloadDetails{Reason: "invalid_payload", Missing: missing})
}

// ParseInboundEvent decodes body and resolves field aliases. Numeric ids are
// kept as their decimal text.
func ParseInboundEvent(body []byte, val *validator.Validator) (InboundEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return InboundEvent{}, invalidPayload()
	}

	event := InboundEvent{
		SubscriberID: firstValue(raw, subscriberIDKeys),
		Message:      firstValue(raw, messageKeys),
		FirstName:    firstValue(raw, firstNameKeys),
		Username:     firstValue(raw, usernameKeys),
	}

	if err := val.Struct(event); err != nil {
		return InboundEvent{}, invalidPayload(validator.MissingFields(err)...)
	}
	return event, nil
}

// firstValue returns the first usable alias value. Empty strings and zero
// numbers count as absent; whitespace is kept as sent.
func firstValue(raw map[string]any, keys []string) string {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			if f, err := strconv.ParseFloat(v.String(), 64); err == nil && f == 0 {
				continue
			}
			return v.String()
		}
	}
	return ""
}
