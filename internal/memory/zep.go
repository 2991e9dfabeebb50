package memory

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/instadmio/instadm-appointment-setter/platform/config"
	"github.com/instadmio/instadm-appointment-setter/platform/logger"

	zep "github.com/getzep/zep-go/v3"
	zepclient "github.com/getzep/zep-go/v3/client"
	"github.com/getzep/zep-go/v3/core"
	"github.com/getzep/zep-go/v3/option"
)

const (
	defaultGuestName = "Guest"
	defaultTimeout   = 60 * time.Second
)

// ZepStore keeps threads in Zep Cloud. Each session owns a Zep user and a
// thread that share the session id.
type ZepStore struct {
	client *zepclient.Client
	log    *logger.Logger
}

func NewZepStore(cfg config.MemoryConfig, log *logger.Logger) *ZepStore {
	timeout := cfg.GetOutboundHTTPTimeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.GetZepAPIKey()),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxAttempts(1),
	}
	if baseURL := strings.TrimRight(cfg.GetZepBaseURL(), "/"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &ZepStore{
		client: zepclient.NewClient(opts...),
		log:    log,
	}
}

// EnsureSession looks the user up and, when missing, creates the user and
// its thread. Thread creation failure is logged only.
func (z *ZepStore) EnsureSession(ctx context.Context, sessionID string, p Participant) error {
	if _, err := z.client.User.Get(ctx, sessionID); err == nil {
		return nil
	}

	firstName := p.FirstName
	if firstName == "" {
		firstName = defaultGuestName
	}
	metadata := map[string]interface{}{}
	if p.FirstName != "" {
		metadata["first_name"] = p.FirstName
	}
	if p.Username != "" {
		metadata["username"] = p.Username
	}
	if _, err := z.client.User.Add(ctx, &zep.CreateUserRequest{
		UserID:    sessionID,
		FirstName: &firstName,
		Metadata:  metadata,
	}); err != nil {
		z.log.OutboundError("zep", "addUser", err)
		return err
	}

	if err := z.CreateThread(ctx, sessionID); err != nil {
		z.log.WithContext(ctx).Info("memory: thread exists or could not be created", "sessionId", sessionID, "error", err)
	}
	return nil
}

// History returns the thread's messages. A missing thread is ErrThreadNotFound.
func (z *ZepStore) History(ctx context.Context, sessionID string) ([]Message, error) {
	resp, err := z.client.Thread.Get(ctx, sessionID, &zep.ThreadGetRequest{})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	msgs := make([]Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m == nil {
			continue
		}
		msgs = append(msgs, Message{Role: NormalizeRole(string(m.Role)), Content: m.Content})
	}
	return msgs, nil
}

// CreateThread creates a thread owned by the user of the same id.
func (z *ZepStore) CreateThread(ctx context.Context, sessionID string) error {
	_, err := z.client.Thread.Create(ctx, &zep.CreateThreadRequest{
		ThreadID: sessionID,
		UserID:   sessionID,
	})
	return err
}

// Append adds messages in one call, preserving order.
func (z *ZepStore) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	payload := make([]*zep.Message, 0, len(msgs))
	for _, m := range msgs {
		payload = append(payload, &zep.Message{Role: zepRole(m.Role), Content: m.Content})
	}
	_, err := z.client.Thread.AddMessages(ctx, sessionID, &zep.AddThreadMessagesRequest{Messages: payload})
	return err
}

func zepRole(role string) zep.RoleType {
	switch role {
	case RoleAssistant:
		return zep.RoleTypeAssistantRole
	case RoleSystem:
		return zep.RoleTypeSystemRole
	default:
		return zep.RoleTypeUserRole
	}
}

func isNotFound(err error) bool {
	var apiErr *core.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

var _ Store = (*ZepStore)(nil)
