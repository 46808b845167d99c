package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pairgate/pairgate/internal/observability"
	"github.com/pairgate/pairgate/pkg/pairing"
)

// ErrInvalidPhone is returned by Create when the phone identifier does not
// reduce to a non-empty digit sequence.
var ErrInvalidPhone = errors.New("phone must contain at least one digit")

// Session is a live pairing session: one phone identifier, one exclusive
// working directory, until downloaded or expired.
type Session struct {
	ID        string    `json:"sessionId"`
	Phone     string    `json:"phone"`
	Dir       string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	Alive     bool      `json:"alive"`
}

// RegistryOptions configures a session registry.
type RegistryOptions struct {
	Root     string
	Provider pairing.Provider
	Now      func() time.Time
}

// Registry owns the map from session id to session record. All map
// mutations happen under a single mutex; directory I/O happens outside it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	reserved map[string]struct{}

	root     string
	provider pairing.Provider
	now      func() time.Time
}

// NewRegistry creates a new session registry rooted at opts.Root.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	observability.EnsureRegistered()

	if strings.TrimSpace(opts.Root) == "" {
		return nil, fmt.Errorf("session root is required")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("pairing provider is required")
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	if err := os.MkdirAll(opts.Root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session root: %w", err)
	}

	r := &Registry{
		sessions: make(map[string]*Session),
		reserved: make(map[string]struct{}),
		root:     opts.Root,
		provider: opts.Provider,
		now:      nowFn,
	}

	log.Info().Str("root", opts.Root).Msg("Session registry initialized")
	observability.SetActiveSessions(0)

	return r, nil
}

// NormalizePhone strips every non-digit rune from raw.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Create allocates a working directory for a normalized phone identifier,
// asks the pairing provider to begin a link, and registers the session once
// the provider succeeds. Provider failure rolls back fully: the directory
// is removed and no map entry is left behind.
func (r *Registry) Create(ctx context.Context, rawPhone string) (*Session, pairing.Result, error) {
	start := r.now()

	phone := NormalizePhone(rawPhone)
	if phone == "" {
		return nil, pairing.Result{}, ErrInvalidPhone
	}

	id, createdAt := r.reserveID(phone)
	dir := filepath.Join(r.root, id)

	if err := os.MkdirAll(dir, 0700); err != nil {
		r.release(id)
		return nil, pairing.Result{}, fmt.Errorf("failed to create session directory: %w", err)
	}

	result, err := r.provider.Begin(ctx, phone, dir)
	if err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.Error().Err(rmErr).Str("sessionId", id).Msg("Failed to roll back session directory")
		}
		r.release(id)
		log.Warn().Err(err).Str("sessionId", id).Str("phone", phone).Msg("Pairing provider failed, session rolled back")
		return nil, pairing.Result{}, fmt.Errorf("pairing provider: %w", err)
	}

	sess := &Session{
		ID:        id,
		Phone:     phone,
		Dir:       dir,
		CreatedAt: createdAt,
		Alive:     true,
	}

	r.mu.Lock()
	delete(r.reserved, id)
	r.sessions[id] = sess
	count := len(r.sessions)
	r.mu.Unlock()

	observability.SetActiveSessions(count)
	observability.RecordSessionCreated(r.now().Sub(start))
	log.Info().Str("sessionId", id).Str("phone", phone).Msg("Session created")

	return sess.clone(), result, nil
}

// reserveID picks a fresh id of the form <phone>_<unix-millis> and reserves
// it so concurrent creates for the same phone in the same clock tick cannot
// collide. The reservation is dropped on rollback or promoted on insert.
func (r *Registry) reserveID(phone string) (string, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	createdAt := r.now()
	base := createdAt.UnixMilli()
	for attempt := int64(0); ; attempt++ {
		id := fmt.Sprintf("%s_%d", phone, base+attempt)
		if _, taken := r.sessions[id]; taken {
			continue
		}
		if _, taken := r.reserved[id]; taken {
			continue
		}
		r.reserved[id] = struct{}{}
		return id, createdAt
	}
}

func (r *Registry) release(id string) {
	r.mu.Lock()
	delete(r.reserved, id)
	r.mu.Unlock()
}

// Lookup returns a copy of the session for id, or false. Never mutates.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.clone(), true
}

// Delete removes the session from the map and reclaims its working
// directory. Idempotent: an unknown id is a logged no-op returning false.
// Directory removal failures are logged but never keep the map entry alive.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		log.Debug().Str("sessionId", id).Msg("Delete of unknown session, nothing to do")
		return false
	}

	if err := os.RemoveAll(sess.Dir); err != nil {
		log.Error().Err(err).Str("sessionId", id).Str("dir", sess.Dir).Msg("Failed to remove session directory")
	}

	observability.SetActiveSessions(count)
	log.Info().Str("sessionId", id).Str("phone", sess.Phone).Msg("Session removed")

	return true
}

// ExpireOlderThan deletes every session whose age exceeds ttl and returns
// how many were reclaimed. Safe to run concurrently with Create, Lookup
// and Delete; a session created mid-scan is only deleted if its own age
// already exceeds ttl.
func (r *Registry) ExpireOlderThan(ttl time.Duration) int {
	now := r.now()

	r.mu.RLock()
	stale := make([]string, 0)
	for id, sess := range r.sessions {
		if now.Sub(sess.CreatedAt) > ttl {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	expired := 0
	for _, id := range stale {
		sess, ok := r.Lookup(id)
		if !ok {
			continue
		}
		age := now.Sub(sess.CreatedAt)
		if r.Delete(id) {
			expired++
			log.Info().Str("sessionId", id).Dur("age", age).Msg("Session expired")
		}
	}

	observability.RecordSessionsExpired(expired)
	return expired
}

// MarkAlive flips the informational liveness flag for id.
func (r *Registry) MarkAlive(id string, alive bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return false
	}
	sess.Alive = alive
	return true
}

// List returns a snapshot of all live sessions ordered by creation time.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess.clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Root returns the session root directory.
func (r *Registry) Root() string {
	return r.root
}

func (s *Session) clone() *Session {
	copied := *s
	return &copied
}
