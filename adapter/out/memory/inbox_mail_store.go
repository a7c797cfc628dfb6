// Package memory provides in-process implementations of the store ports for
// development runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"inbox_server/core/domain"
	"inbox_server/pkg/apperr"
)

// MailStore implements out.MailRepository on a map.
type MailStore struct {
	mu    sync.RWMutex
	mails map[string]*domain.MailRecord
}

func NewMailStore() *MailStore {
	return &MailStore{mails: make(map[string]*domain.MailRecord)}
}

func (s *MailStore) FindByID(ctx context.Context, id string) (*domain.MailRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.mails[id]
	if !ok {
		return nil, nil
	}
	return cloneMail(m), nil
}

func (s *MailStore) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.mails[id]; ok {
			found[id] = struct{}{}
		}
	}
	return found, nil
}

func (s *MailStore) Insert(ctx context.Context, mail *domain.MailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mails[mail.ID]; ok {
		return apperr.StoreError("insert mail", fmt.Errorf("duplicate id %s", mail.ID))
	}
	s.mails[mail.ID] = cloneMail(mail)
	return nil
}

func (s *MailStore) Update(ctx context.Context, mail *domain.MailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mails[mail.ID]; !ok {
		return apperr.NotFound("mail " + mail.ID)
	}
	s.mails[mail.ID] = cloneMail(mail)
	return nil
}

func (s *MailStore) Delete(ctx context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mails[id]; !ok {
		return 0, nil
	}
	delete(s.mails, id)
	return 1, nil
}

func (s *MailStore) List(ctx context.Context, category string) ([]*domain.MailRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.MailRecord, 0, len(s.mails))
	for _, m := range s.mails {
		if category != "" && !strings.EqualFold(m.PredictedClass, category) {
			continue
		}
		result = append(result, cloneMail(m))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].ID < result[j].ID
		}
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

// Len returns the number of stored mails.
func (s *MailStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mails)
}

func cloneMail(m *domain.MailRecord) *domain.MailRecord {
	c := *m
	if m.AllScores != nil {
		c.AllScores = make(map[string]float64, len(m.AllScores))
		for k, v := range m.AllScores {
			c.AllScores[k] = v
		}
	}
	return &c
}

// TombstoneStore implements out.TombstoneRepository.
type TombstoneStore struct {
	mu      sync.RWMutex
	deleted map[string]time.Time
}

func NewTombstoneStore() *TombstoneStore {
	return &TombstoneStore{deleted: make(map[string]time.Time)}
}

func (s *TombstoneStore) IDs(ctx context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]struct{}, len(s.deleted))
	for id := range s.deleted {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (s *TombstoneStore) Upsert(ctx context.Context, mailID string, deletedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleted[mailID] = deletedAt
	return nil
}

// DeletedAt returns the tombstone time for id.
func (s *TombstoneStore) DeletedAt(id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	at, ok := s.deleted[id]
	return at, ok
}

// SessionStore implements out.SessionRepository for a single mailbox.
type SessionStore struct {
	mu      sync.RWMutex
	current *domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *session
	s.current = &c
	return nil
}

func (s *SessionStore) Current(ctx context.Context) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil, nil
	}
	c := *s.current
	return &c, nil
}
