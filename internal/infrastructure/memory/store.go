// Package memory holds the process-local stores used when no durable backend
// is configured. Contents are lost on restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mactrac-proxy/internal/domain"
)

// table is a mutex-guarded map of copied values.
type table[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func newTable[T any]() *table[T] {
	return &table[T]{items: make(map[string]T)}
}

func (t *table[T]) put(key string, v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[key] = v
}

func (t *table[T]) get(key string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.items[key]
	return v, ok
}

func (t *table[T]) delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, key)
}

// deleteIf removes key only when match accepts the stored value.
func (t *table[T]) deleteIf(key string, match func(T) bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[key]
	if !ok || !match(v) {
		return false
	}
	delete(t.items, key)
	return true
}

func (t *table[T]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// CodeRepo stores pending sign-in codes keyed by normalized email.
type CodeRepo struct {
	codes *table[domain.PendingCode]
}

func NewCodeRepo() *CodeRepo {
	return &CodeRepo{codes: newTable[domain.PendingCode]()}
}

func (r *CodeRepo) Put(_ context.Context, p *domain.PendingCode) error {
	r.codes.put(p.Email, *p)
	return nil
}

func (r *CodeRepo) Get(_ context.Context, email string) (*domain.PendingCode, error) {
	p, ok := r.codes.get(email)
	if !ok {
		return nil, fmt.Errorf("pending code not found: %w", domain.ErrNotFound)
	}
	return &p, nil
}

func (r *CodeRepo) Delete(_ context.Context, email string) error {
	r.codes.delete(email)
	return nil
}

func (r *CodeRepo) Consume(_ context.Context, email, codeHash string) error {
	if !r.codes.deleteIf(email, func(p domain.PendingCode) bool { return p.CodeHash == codeHash }) {
		return fmt.Errorf("pending code already consumed: %w", domain.ErrNotFound)
	}
	return nil
}

// Len returns the number of stored codes, expired ones included.
func (r *CodeRepo) Len() int { return r.codes.len() }

// SessionRepo stores issued sessions keyed by bearer token.
type SessionRepo struct {
	sessions *table[domain.Session]
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{sessions: newTable[domain.Session]()}
}

func (r *SessionRepo) Put(_ context.Context, s *domain.Session) error {
	r.sessions.put(s.Token, *s)
	return nil
}

func (r *SessionRepo) Get(_ context.Context, token string) (*domain.Session, error) {
	s, ok := r.sessions.get(token)
	if !ok {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	return &s, nil
}

func (r *SessionRepo) Delete(_ context.Context, token string) error {
	r.sessions.delete(token)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (r *SessionRepo) Len() int { return r.sessions.len() }
