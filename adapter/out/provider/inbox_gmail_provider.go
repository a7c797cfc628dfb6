// Package provider implements mailbox provider adapters.
package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"inbox_server/core/domain"
	"inbox_server/core/port/out"
	"inbox_server/pkg/apperr"
	"inbox_server/pkg/logger"
)

const gmailUser = "me"

// GmailConfig holds Gmail configuration.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenFile    string
}

// GmailProvider implements out.MailboxProvider and out.MailboxAccount for a
// single authorized Gmail account.
type GmailProvider struct {
	svc *gmail.Service
	cb  *gobreaker.CircuitBreaker
	log *logger.Logger
}

var (
	_ out.MailboxProvider = (*GmailProvider)(nil)
	_ out.MailboxAccount  = (*GmailProvider)(nil)
)

// NewGmailProvider builds a Gmail client from a stored token file. Obtaining
// the token is outside this service.
func NewGmailProvider(ctx context.Context, cfg GmailConfig) (*GmailProvider, error) {
	tok, clientID, clientSecret, err := loadTokenFile(cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	if cfg.ClientID != "" {
		clientID = cfg.ClientID
	}
	if cfg.ClientSecret != "" {
		clientSecret = cfg.ClientSecret
	}

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes: []string{
			gmail.GmailReadonlyScope,
			gmail.GmailSendScope,
		},
		Endpoint: google.Endpoint,
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(oauthCfg.TokenSource(context.Background(), tok)))
	if err != nil {
		return nil, apperr.ExternalError("gmail", err)
	}
	return NewGmailProviderWithService(svc), nil
}

// NewGmailProviderWithService wraps an existing client.
func NewGmailProviderWithService(svc *gmail.Service) *GmailProvider {
	log := logger.WithField("component", "gmail")

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			var nce *nonCircuitError
			return err == nil || errors.As(err, &nce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &GmailProvider{
		svc: svc,
		cb:  gobreaker.NewCircuitBreaker(cbSettings),
		log: log,
	}
}

// =============================================================================
// Token file
// =============================================================================

// tokenFile accepts both the oauth2.Token layout and the authorized-user
// layout written by Google's client libraries.
type tokenFile struct {
	AccessToken  string    `json:"access_token"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
}

func loadTokenFile(path string) (*oauth2.Token, string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", "", apperr.ConfigError(fmt.Sprintf("cannot read gmail token file %q: %v", path, err))
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, "", "", apperr.ConfigError(fmt.Sprintf("invalid gmail token file %q: %v", path, err))
	}

	access := tf.AccessToken
	if access == "" {
		access = tf.Token
	}
	if access == "" && tf.RefreshToken == "" {
		return nil, "", "", apperr.ConfigError(fmt.Sprintf("gmail token file %q has no token", path))
	}

	tok := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: tf.RefreshToken,
		TokenType:    tf.TokenType,
		Expiry:       tf.Expiry,
	}
	return tok, tf.ClientID, tf.ClientSecret, nil
}

// =============================================================================
// MailboxProvider
// =============================================================================

// ListMessageIDs lists a single page of ids received after the given instant.
func (p *GmailProvider) ListMessageIDs(ctx context.Context, after time.Time, max int) ([]string, error) {
	query := fmt.Sprintf("after:%d", after.Unix())

	var resp *gmail.ListMessagesResponse
	err := p.executeWithCircuitBreaker(ctx, "ListMessageIDs", func() error {
		var apiErr error
		resp, apiErr = p.svc.Users.Messages.List(gmailUser).
			Q(query).
			MaxResults(int64(max)).
			Context(ctx).
			Do()
		return apiErr
	})
	if err != nil {
		return nil, p.wrapError(err, "failed to list messages")
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	p.log.Debug("[GmailProvider.ListMessageIDs] %s returned %d ids", query, len(ids))
	return ids, nil
}

// GetMessage fetches the full message and converts its payload tree.
func (p *GmailProvider) GetMessage(ctx context.Context, id string) (*domain.RawMessage, error) {
	var msg *gmail.Message
	err := p.executeWithCircuitBreaker(ctx, "GetMessage", func() error {
		var apiErr error
		msg, apiErr = p.svc.Users.Messages.Get(gmailUser, id).Format("full").Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return nil, p.wrapError(err, "failed to get message")
	}
	return convertMessage(msg), nil
}

func convertMessage(msg *gmail.Message) *domain.RawMessage {
	raw := &domain.RawMessage{
		ID:      msg.Id,
		Snippet: msg.Snippet,
	}
	if msg.Payload == nil {
		return raw
	}
	for _, h := range msg.Payload.Headers {
		raw.Headers = append(raw.Headers, domain.Header{Name: h.Name, Value: h.Value})
	}
	raw.Payload = convertPart(msg.Payload)
	return raw
}

// convertPart maps a Gmail part to the content tree: a part with children is
// a container, anything else is a leaf.
func convertPart(part *gmail.MessagePart) domain.MimePart {
	if len(part.Parts) > 0 {
		children := make([]domain.MimePart, 0, len(part.Parts))
		for _, child := range part.Parts {
			if child == nil {
				continue
			}
			children = append(children, convertPart(child))
		}
		return domain.NewContainer(part.MimeType, children...)
	}

	data := ""
	if part.Body != nil {
		data = part.Body.Data
	}
	return domain.NewLeaf(part.MimeType, data)
}

// =============================================================================
// MailboxAccount
// =============================================================================

func (p *GmailProvider) GetProfile(ctx context.Context) (*out.MailboxProfile, error) {
	var profile *gmail.Profile
	err := p.executeWithCircuitBreaker(ctx, "GetProfile", func() error {
		var apiErr error
		profile, apiErr = p.svc.Users.GetProfile(gmailUser).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return nil, p.wrapError(err, "failed to get profile")
	}
	return &out.MailboxProfile{
		EmailAddress:  profile.EmailAddress,
		MessagesTotal: profile.MessagesTotal,
		HistoryID:     profile.HistoryId,
	}, nil
}

// Send delivers a text/plain message and returns its Gmail id.
func (p *GmailProvider) Send(ctx context.Context, msg *out.OutgoingMail) (string, error) {
	gmailMsg := &gmail.Message{Raw: encodeRaw(buildRawMessage(msg))}

	var sent *gmail.Message
	err := p.executeWithCircuitBreaker(ctx, "Send", func() error {
		var apiErr error
		sent, apiErr = p.svc.Users.Messages.Send(gmailUser, gmailMsg).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return "", p.wrapError(err, "failed to send message")
	}
	return sent.Id, nil
}

func encodeRaw(raw string) string {
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func buildRawMessage(msg *out.OutgoingMail) string {
	var buf strings.Builder
	buf.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.Body)
	return buf.String()
}

// =============================================================================
// Circuit breaker & errors
// =============================================================================

// CircuitState returns the breaker state for readiness reporting.
func (p *GmailProvider) CircuitState() string {
	return p.cb.State().String()
}

func (p *GmailProvider) executeWithCircuitBreaker(ctx context.Context, operation string, fn func() error) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
				return nil, &nonCircuitError{err: err}
			}
			return nil, err
		}
		return nil, nil
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		return nce.err
	}
	if err != nil {
		p.log.WithError(err).Warn("[GmailProvider] %s failed: circuit=%s", operation, p.cb.State().String())
	}
	return err
}

// nonCircuitError marks client errors that must not trip the breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

func (p *GmailProvider) wrapError(err error, msg string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return apperr.Wrap(err, apperr.CodeUnauthorized, "gmail token rejected", http.StatusUnauthorized)
		case http.StatusNotFound:
			return apperr.Wrap(err, apperr.CodeNotFound, msg, http.StatusNotFound)
		}
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.Wrap(err, apperr.CodeExternalError, "gmail temporarily unavailable", http.StatusServiceUnavailable)
	}
	return apperr.ExternalError("gmail", fmt.Errorf("%s: %w", msg, err))
}
