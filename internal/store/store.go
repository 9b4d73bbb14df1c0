package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"scorepad/internal/constants"
	"scorepad/internal/domain"

	"github.com/rs/zerolog"
)

// KV is the device-local key/value storage the session collection lives in.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// SessionStore persists the whole session collection under a single key and
// rewrites it on every mutation. Corrupt data reads as an empty collection.
type SessionStore struct {
	kv     KV
	logger zerolog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

type Option func(*SessionStore)

// WithClock overrides the time source used for updatedAt and sweeps.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) {
		s.now = now
	}
}

func NewSessionStore(kv KV, logger zerolog.Logger, opts ...Option) *SessionStore {
	s := &SessionStore{
		kv:     kv,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) Now() time.Time {
	return s.now().UTC()
}

func (s *SessionStore) load(ctx context.Context) ([]domain.Session, error) {
	raw, ok, err := s.kv.Get(ctx, constants.SessionsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	if !ok {
		return nil, nil
	}

	sessions, dropped, err := decodeCollection(raw)
	if errors.Is(err, domain.ErrStorageCorrupt) {
		s.logger.Warn().Err(err).Msg("session storage unreadable, treating as empty")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		s.logger.Warn().Int("dropped", dropped).Msg("skipped malformed session records")
	}
	return sessions, nil
}

func (s *SessionStore) save(ctx context.Context, sessions []domain.Session) error {
	raw, err := encodeCollection(sessions)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, constants.SessionsKey, raw); err != nil {
		return fmt.Errorf("failed to write sessions: %w", err)
	}
	return nil
}

// List returns every stored session, most recently updated (or started) first.
func (s *SessionStore) List(ctx context.Context) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Session, len(sessions))
	for i, sess := range sessions {
		out[i] = sess.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivity().After(out[j].LastActivity())
	})
	return out, nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		return domain.Session{}, false, err
	}
	for _, sess := range sessions {
		if sess.ID == id {
			return sess.Clone(), true, nil
		}
	}
	return domain.Session{}, false, nil
}

// Put stores the session with updatedAt set to now. Existing ids are replaced
// in place, new ones go to the front.
func (s *SessionStore) Put(ctx context.Context, session domain.Session) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		return domain.Session{}, err
	}

	stored := session.Clone()
	stored.UpdatedAt = s.Now()

	idx := indexOf(sessions, stored.ID)
	if idx >= 0 {
		sessions[idx] = stored
	} else {
		sessions = append([]domain.Session{stored}, sessions...)
	}

	if err := s.save(ctx, sessions); err != nil {
		return domain.Session{}, err
	}
	return stored.Clone(), nil
}

// ErrSkipWrite lets an Update callback report a no-op: Update then returns the
// stored session untouched and a nil error.
var ErrSkipWrite = errors.New("skip write")

// Update applies fn to the stored copy of the session and persists the result
// in one read-modify-write. Nothing is written when fn returns an error.
func (s *SessionStore) Update(ctx context.Context, id string, fn func(*domain.Session) error) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		return domain.Session{}, err
	}

	idx := indexOf(sessions, id)
	if idx < 0 {
		return domain.Session{}, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}

	working := sessions[idx].Clone()
	if err := fn(&working); err != nil {
		if errors.Is(err, ErrSkipWrite) {
			return sessions[idx].Clone(), nil
		}
		return domain.Session{}, err
	}
	working.ID = id
	working.UpdatedAt = s.Now()
	sessions[idx] = working

	if err := s.save(ctx, sessions); err != nil {
		return domain.Session{}, err
	}
	return working.Clone(), nil
}

// Delete removes the session if present.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		return err
	}

	idx := indexOf(sessions, id)
	if idx < 0 {
		return nil
	}
	sessions = append(sessions[:idx], sessions[idx+1:]...)
	return s.save(ctx, sessions)
}

// Sweep evicts every unpinned session idle for longer than ttl and reports
// how many were removed. Storage is only rewritten when something changed.
func (s *SessionStore) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		return 0, err
	}

	now := s.Now()
	kept := sessions[:0:0]
	for _, sess := range sessions {
		if expired(sess, now, ttl) {
			s.logger.Debug().Str("session_id", sess.ID).Time("last_activity", sess.LastActivity()).Msg("evicting expired session")
			continue
		}
		kept = append(kept, sess)
	}

	removed := len(sessions) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := s.save(ctx, kept); err != nil {
		return 0, err
	}
	s.logger.Info().Int("removed", removed).Dur("ttl", ttl).Msg("retention sweep evicted sessions")
	return removed, nil
}

func expired(sess domain.Session, now time.Time, ttl time.Duration) bool {
	if sess.Pinned {
		return false
	}
	last := sess.LastActivity()
	if last.IsZero() {
		return false
	}
	return now.Sub(last) > ttl
}

func indexOf(sessions []domain.Session, id string) int {
	for i, sess := range sessions {
		if sess.ID == id {
			return i
		}
	}
	return -1
}

// ActiveID returns the active session pointer, if any.
func (s *SessionStore) ActiveID(ctx context.Context) (string, bool, error) {
	id, ok, err := s.kv.Get(ctx, constants.ActiveKey)
	if err != nil {
		return "", false, fmt.Errorf("failed to read active session: %w", err)
	}
	if !ok || id == "" {
		return "", false, nil
	}
	return id, true, nil
}

func (s *SessionStore) SetActive(ctx context.Context, id string) error {
	if err := s.kv.Set(ctx, constants.ActiveKey, id); err != nil {
		return fmt.Errorf("failed to write active session: %w", err)
	}
	return nil
}

func (s *SessionStore) ClearActive(ctx context.Context) error {
	if err := s.kv.Remove(ctx, constants.ActiveKey); err != nil {
		return fmt.Errorf("failed to clear active session: %w", err)
	}
	return nil
}

// ClearActiveIf clears the pointer only when it refers to id.
func (s *SessionStore) ClearActiveIf(ctx context.Context, id string) error {
	current, ok, err := s.ActiveID(ctx)
	if err != nil {
		return err
	}
	if !ok || current != id {
		return nil
	}
	return s.ClearActive(ctx)
}
