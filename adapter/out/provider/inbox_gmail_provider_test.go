package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"inbox_server/core/domain"
	"inbox_server/core/port/out"
	"inbox_server/pkg/apperr"
)

func newTestProvider(t *testing.T, mux *http.ServeMux) *GmailProvider {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return NewGmailProviderWithService(svc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListMessageIDs(t *testing.T) {
	after := time.Unix(1717200000, 0)

	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "after:1717200000", r.URL.Query().Get("q"))
		assert.Equal(t, "25", r.URL.Query().Get("maxResults"))
		writeJSON(w, http.StatusOK, map[string]any{
			"messages": []map[string]string{{"id": "m1"}, {"id": "m2"}},
		})
	})

	ids, err := newTestProvider(t, mux).ListMessageIDs(context.Background(), after, 25)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids)
}

func TestGetMessageConvertsPayload(t *testing.T) {
	plain := base64.RawURLEncoding.EncodeToString([]byte("hello"))

	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "full", r.URL.Query().Get("format"))
		writeJSON(w, http.StatusOK, map[string]any{
			"id":      "m1",
			"snippet": "hello",
			"payload": map[string]any{
				"mimeType": "multipart/mixed",
				"headers":  []map[string]string{{"name": "Subject", "value": "Hi"}},
				"parts": []map[string]any{
					{
						"mimeType": "multipart/alternative",
						"parts": []map[string]any{
							{"mimeType": "text/plain", "body": map[string]any{"data": plain}},
							{"mimeType": "text/html", "body": map[string]any{}},
						},
					},
					{"mimeType": "application/pdf", "body": map[string]any{"attachmentId": "att"}},
				},
			},
		})
	})

	msg, err := newTestProvider(t, mux).GetMessage(context.Background(), "m1")
	require.NoError(t, err)

	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, []domain.Header{{Name: "Subject", Value: "Hi"}}, msg.Headers)

	root, ok := msg.Payload.(*domain.Container)
	require.True(t, ok)
	require.Len(t, root.Children, 2)

	alt, ok := root.Children[0].(*domain.Container)
	require.True(t, ok)
	require.Len(t, alt.Children, 2)

	text := alt.Children[0].(*domain.Leaf)
	assert.Equal(t, plain, text.Data)
	assert.True(t, text.HasData)

	html := alt.Children[1].(*domain.Leaf)
	assert.False(t, html.HasData)

	pdf := root.Children[1].(*domain.Leaf)
	assert.Equal(t, "application/pdf", pdf.MimeType)
	assert.False(t, pdf.HasData)
}

func TestGetMessageNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": 404, "message": "Not Found"}})
	})
	p := newTestProvider(t, mux)

	for i := 0; i < 10; i++ {
		_, err := p.GetMessage(context.Background(), "gone")
		require.Error(t, err)
		assert.Equal(t, apperr.CodeNotFound, apperr.AsAppError(err).Code)
	}
	assert.Equal(t, "closed", p.CircuitState(), "client errors must not trip the breaker")
}

func TestServerErrorsTripBreaker(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]any{"code": 500, "message": "backend"}})
	})
	p := newTestProvider(t, mux)

	var err error
	for i := 0; i < 7; i++ {
		_, err = p.ListMessageIDs(context.Background(), time.Now(), 10)
	}
	require.Error(t, err)
	assert.Equal(t, "open", p.CircuitState())
	assert.Equal(t, http.StatusServiceUnavailable, apperr.GetHTTPStatus(err))
}

func TestGetProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"emailAddress":  "me@example.com",
			"messagesTotal": 120,
			"historyId":     "98765",
		})
	})

	profile, err := newTestProvider(t, mux).GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &out.MailboxProfile{EmailAddress: "me@example.com", MessagesTotal: 120, HistoryID: 98765}, profile)
}

func TestSendEncodesRawMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		var msg struct {
			Raw string `json:"raw"`
		}
		assert.NoError(t, json.Unmarshal(body, &msg))
		raw, err := base64.URLEncoding.DecodeString(msg.Raw)
		assert.NoError(t, err)

		assert.Contains(t, string(raw), "To: you@example.com\r\n")
		assert.Contains(t, string(raw), "Content-Type: text/plain; charset=UTF-8\r\n")
		assert.True(t, strings.HasSuffix(string(raw), "\r\n\r\nSee you"))
		writeJSON(w, http.StatusOK, map[string]any{"id": "sent-1"})
	})

	id, err := newTestProvider(t, mux).Send(context.Background(), &out.OutgoingMail{
		To:      "you@example.com",
		Subject: "Toplantı",
		Body:    "See you",
	})
	require.NoError(t, err)
	assert.Equal(t, "sent-1", id)
}

func TestBuildRawMessageEncodesSubject(t *testing.T) {
	raw := buildRawMessage(&out.OutgoingMail{To: "a@b.c", Subject: "Toplantı", Body: "x"})
	assert.Contains(t, raw, "Subject: =?utf-8?q?Toplant=C4=B1?=\r\n")

	ascii := buildRawMessage(&out.OutgoingMail{To: "a@b.c", Subject: "Plain", Body: "x"})
	assert.Contains(t, ascii, "Subject: Plain\r\n")
}

func TestLoadTokenFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("authorized user layout", func(t *testing.T) {
		path := filepath.Join(dir, "user.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"token":"at","refresh_token":"rt","client_id":"cid","client_secret":"cs"}`), 0o600))

		tok, id, secret, err := loadTokenFile(path)
		require.NoError(t, err)
		assert.Equal(t, "at", tok.AccessToken)
		assert.Equal(t, "rt", tok.RefreshToken)
		assert.Equal(t, "cid", id)
		assert.Equal(t, "cs", secret)
	})

	t.Run("oauth2 token layout", func(t *testing.T) {
		path := filepath.Join(dir, "oauth.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"at2","token_type":"Bearer"}`), 0o600))

		tok, _, _, err := loadTokenFile(path)
		require.NoError(t, err)
		assert.Equal(t, "at2", tok.AccessToken)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, _, err := loadTokenFile(filepath.Join(dir, "nope.json"))
		assert.Equal(t, apperr.CodeConfigError, apperr.AsAppError(err).Code)
	})

	t.Run("empty token", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))
		_, _, _, err := loadTokenFile(path)
		assert.True(t, errors.Is(err, apperr.New(apperr.CodeConfigError, "", 0)))
	})
}
