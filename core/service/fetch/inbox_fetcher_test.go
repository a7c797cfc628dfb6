package fetch

import (
	"context"
	"encoding/base64"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"inbox_server/core/domain"
	"inbox_server/core/service/extract"
	"inbox_server/pkg/apperr"
	"inbox_server/pkg/logger"
)

var fixedNow = time.Date(2024, 6, 8, 10, 0, 0, 0, time.UTC)

type mockProvider struct{ mock.Mock }

func (m *mockProvider) ListMessageIDs(ctx context.Context, after time.Time, max int) ([]string, error) {
	args := m.Called(ctx, after, max)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *mockProvider) GetMessage(ctx context.Context, id string) (*domain.RawMessage, error) {
	args := m.Called(ctx, id)
	msg, _ := args.Get(0).(*domain.RawMessage)
	return msg, args.Error(1)
}

func newTestFetcher(p *mockProvider, opts ...Option) *Fetcher {
	ex := extract.NewExtractor(extract.WithLogger(logger.Nop()))
	base := []Option{WithClock(func() time.Time { return fixedNow }), WithLogger(logger.Nop())}
	return NewFetcher(p, ex, append(base, opts...)...)
}

func message(id string, headers ...domain.Header) *domain.RawMessage {
	return &domain.RawMessage{
		ID:      id,
		Snippet: "snippet " + id,
		Headers: headers,
		Payload: domain.NewLeaf("text/plain", base64.URLEncoding.EncodeToString([]byte("body "+id))),
	}
}

func TestFetchRecent(t *testing.T) {
	ctx := context.Background()
	p := &mockProvider{}
	f := newTestFetcher(p, WithMaxResults(50))

	after := fixedNow.AddDate(0, 0, -7)
	p.On("ListMessageIDs", ctx, after, 50).Return([]string{"m1", "m2", "m3"}, nil)
	p.On("GetMessage", mock.Anything, "m1").Return(message("m1",
		domain.Header{Name: "From", Value: "Alice <alice@example.com>"},
		domain.Header{Name: "Subject", Value: "Hello"},
		domain.Header{Name: "Date", Value: "Mon, 03 Jun 2024 09:30:00 +0200"},
	), nil)
	p.On("GetMessage", mock.Anything, "m2").Return(nil, errors.New("500 backend error"))
	p.On("GetMessage", mock.Anything, "m3").Return(message("m3"), nil)

	mails, report, err := f.FetchRecent(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, domain.FetchReport{Listed: 3, Fetched: 2, Failed: 1}, report)
	require.Len(t, mails, 2)
	assert.Equal(t, "m1", mails[0].ID)
	assert.Equal(t, "m3", mails[1].ID)

	assert.Equal(t, "Alice <alice@example.com>", mails[0].Sender)
	assert.Equal(t, "Hello", mails[0].Subject)
	assert.Equal(t, "body m1", mails[0].Body)
	assert.Equal(t, time.Date(2024, 6, 3, 7, 30, 0, 0, time.UTC), mails[0].Date)
	p.AssertExpectations(t)
}

func TestFetchRecentListingFailure(t *testing.T) {
	p := &mockProvider{}
	f := newTestFetcher(p)
	p.On("ListMessageIDs", mock.Anything, mock.Anything, DefaultMaxResults).Return(nil, errors.New("quota exceeded"))

	mails, _, err := f.FetchRecent(context.Background(), 3)
	require.Error(t, err)
	assert.Nil(t, mails)
	assert.True(t, errors.Is(err, apperr.ErrFetch))
}

func TestFetchRecentEmptyWindow(t *testing.T) {
	p := &mockProvider{}
	f := newTestFetcher(p)
	p.On("ListMessageIDs", mock.Anything, fixedNow.AddDate(0, 0, -2), DefaultMaxResults).Return([]string{}, nil)

	mails, report, err := f.FetchRecent(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, mails)
	assert.Zero(t, report.Listed)
	p.AssertNotCalled(t, "GetMessage", mock.Anything, mock.Anything)
}

func TestFetchRecentConcurrentKeepsOrder(t *testing.T) {
	p := &mockProvider{}
	f := newTestFetcher(p, WithConcurrency(4))

	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	p.On("ListMessageIDs", mock.Anything, mock.Anything, mock.Anything).Return(ids, nil)

	var inFlight, peak int32
	for i, id := range ids {
		delay := time.Duration(len(ids)-i) * time.Millisecond
		p.On("GetMessage", mock.Anything, id).Run(func(mock.Arguments) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(delay)
			atomic.AddInt32(&inFlight, -1)
		}).Return(message(id), nil)
	}

	mails, report, err := f.FetchRecent(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, len(ids), report.Fetched)

	got := make([]string, len(mails))
	for i, m := range mails {
		got[i] = m.ID
	}
	assert.Equal(t, ids, got)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
}

func TestFetchRecentCancelled(t *testing.T) {
	p := &mockProvider{}
	f := newTestFetcher(p)
	ctx, cancel := context.WithCancel(context.Background())

	p.On("ListMessageIDs", mock.Anything, mock.Anything, mock.Anything).Return([]string{"a"}, nil)
	p.On("GetMessage", mock.Anything, "a").Run(func(mock.Arguments) { cancel() }).Return(nil, context.Canceled)

	_, _, err := f.FetchRecent(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeHeaders(t *testing.T) {
	f := newTestFetcher(&mockProvider{})

	tests := []struct {
		name        string
		snippet     string
		headers     []domain.Header
		wantSender  string
		wantSubject string
		wantDate    time.Time
	}{
		{
			name:        "no headers",
			snippet:     "",
			wantSender:  domain.DefaultSender,
			wantSubject: domain.DefaultSubject,
			wantDate:    fixedNow,
		},
		{
			name:        "subject falls back to snippet",
			snippet:     "Your order has shipped",
			headers:     []domain.Header{{Name: "Subject", Value: "  "}},
			wantSender:  domain.DefaultSender,
			wantSubject: "Your order has shipped",
			wantDate:    fixedNow,
		},
		{
			name:    "case insensitive names, last one wins",
			snippet: "s",
			headers: []domain.Header{
				{Name: "from", Value: "first@example.com"},
				{Name: "FROM", Value: "second@example.com"},
				{Name: "sUbJeCt", Value: "Mixed"},
			},
			wantSender:  "second@example.com",
			wantSubject: "Mixed",
			wantDate:    fixedNow,
		},
		{
			name:        "unparseable date uses now",
			headers:     []domain.Header{{Name: "Date", Value: "yesterday-ish"}},
			wantSender:  domain.DefaultSender,
			wantSubject: domain.DefaultSubject,
			wantDate:    fixedNow,
		},
		{
			name:        "date with zone comment",
			headers:     []domain.Header{{Name: "Date", Value: "Tue, 4 Jun 2024 12:00:00 +0000 (UTC)"}},
			wantSender:  domain.DefaultSender,
			wantSubject: domain.DefaultSubject,
			wantDate:    time.Date(2024, 6, 4, 12, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Normalize(&domain.RawMessage{ID: "x", Snippet: tt.snippet, Headers: tt.headers})
			assert.Equal(t, tt.wantSender, got.Sender)
			assert.Equal(t, tt.wantSubject, got.Subject)
			assert.Equal(t, tt.wantDate, got.Date)
			assert.Equal(t, domain.ContentUnavailable, got.Body)
		})
	}
}
