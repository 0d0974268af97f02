package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-magiclink-api/internal/domain"
)

type entry struct {
	email     string
	expiresAt time.Time
}

// MagicLinkStore is a process-local magic-link store. Mappings are lost on
// restart, which is acceptable for a single-instance deployment; multi-
// instance deployments should use the DynamoDB-backed store instead.
type MagicLinkStore struct {
	mu      sync.Mutex
	entries map[string]entry
	done    chan struct{}
}

func NewMagicLinkStore() *MagicLinkStore {
	s := &MagicLinkStore{
		entries: make(map[string]entry),
		done:    make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *MagicLinkStore) Save(_ context.Context, digest, email string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[digest] = entry{email: email, expiresAt: expiresAt}
	return nil
}

// Consume looks up and removes the mapping under one lock acquisition, so
// concurrent consumes of the same digest see exactly one winner. Expired
// entries behave as absent.
func (s *MagicLinkStore) Consume(_ context.Context, digest string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[digest]
	if !ok {
		return "", fmt.Errorf("magic link not found: %w", domain.ErrNotFound)
	}
	delete(s.entries, digest)
	if time.Now().After(e.expiresAt) {
		return "", fmt.Errorf("magic link expired: %w", domain.ErrNotFound)
	}
	return e.email, nil
}

// sweep drops expired entries every minute so abandoned links don't
// accumulate between logins.
func (s *MagicLinkStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for digest, e := range s.entries {
				if now.After(e.expiresAt) {
					delete(s.entries, digest)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Close stops the sweep goroutine.
func (s *MagicLinkStore) Close() {
	close(s.done)
}
