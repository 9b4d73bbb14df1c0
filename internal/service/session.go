package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"scorepad/internal/constants"
	"scorepad/internal/domain"
	"scorepad/internal/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Catalog resolves game descriptors and the retention window.
type Catalog interface {
	Game(id string) (domain.Game, bool)
	TTL() time.Duration
}

// Match is an open session plus the round currently being entered. The draft
// lives only in memory: it is never persisted and never counts toward totals.
type Match struct {
	Session domain.Session
	Draft   *domain.Round
}

func (m *Match) HasDraft() bool {
	return m.Draft != nil
}

type SessionService struct {
	store  *store.SessionStore
	games  Catalog
	logger zerolog.Logger
}

func NewSessionService(st *store.SessionStore, games Catalog, logger zerolog.Logger) *SessionService {
	return &SessionService{store: st, games: games, logger: logger}
}

// Sweep runs the retention pass with the catalog's TTL.
func (s *SessionService) Sweep(ctx context.Context) (int, error) {
	removed, err := s.store.Sweep(ctx, s.games.TTL())
	if err != nil {
		s.logger.Error().Err(err).Msg("retention sweep failed")
		return 0, fmt.Errorf("retention sweep failed: %w", err)
	}
	return removed, nil
}

// Start creates an in-progress session for gameID and makes it the active one.
// count is clamped to the game's bounds; when count <= 0 the number of pseudos
// is used instead.
func (s *SessionService) Start(ctx context.Context, gameID string, count int, pseudos []string, label string) (*Match, error) {
	game, ok := s.games.Game(gameID)
	if !ok {
		s.logger.Warn().Str("game_id", gameID).Msg("start requested for unknown game")
		return nil, fmt.Errorf("game %s: %w", gameID, domain.ErrNotFound)
	}

	if count <= 0 {
		count = len(pseudos)
	}
	count = game.ClampPlayers(count)

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := s.store.Now()
	session := domain.Session{
		ID:        id,
		GameID:    game.ID,
		GameName:  game.Name,
		Accent:    game.Accent,
		Label:     strings.TrimSpace(label),
		StartedAt: now,
		UpdatedAt: now,
		Players:   buildPlayers(count, pseudos),
	}

	stored, err := s.store.Put(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	if err := s.store.SetActive(ctx, stored.ID); err != nil {
		if delErr := s.store.Delete(ctx, stored.ID); delErr != nil {
			s.logger.Error().Err(delErr).Str("session_id", stored.ID).Msg("failed to roll back session")
		}
		return nil, err
	}

	s.logger.Info().
		Str("session_id", stored.ID).
		Str("game_id", game.ID).
		Int("players", len(stored.Players)).
		Msg("session started")

	return &Match{Session: stored}, nil
}

func buildPlayers(count int, pseudos []string) []domain.Player {
	players := make([]domain.Player, count)
	for i := range players {
		var pseudo string
		if i < len(pseudos) {
			pseudo = normalizePseudo(pseudos[i])
		}
		if pseudo == "" {
			pseudo = fmt.Sprintf("P%d", i+1)
		}
		players[i] = domain.Player{ID: fmt.Sprintf("p%d", i+1), Pseudo: pseudo}
	}
	return players
}

func normalizePseudo(raw string) string {
	p := strings.TrimSpace(raw)
	if utf8.RuneCountInString(p) > constants.PseudoMaxLen {
		p = strings.TrimSpace(string([]rune(p)[:constants.PseudoMaxLen]))
	}
	return p
}

// Open loads a session for play or review. In-progress sessions become active.
func (s *SessionService) Open(ctx context.Context, id string) (*Match, error) {
	if _, err := s.Sweep(ctx); err != nil {
		return nil, err
	}

	session, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}

	if !session.IsEnded() {
		if err := s.store.SetActive(ctx, session.ID); err != nil {
			return nil, err
		}
	}
	return &Match{Session: session}, nil
}

// Active resolves the active session pointer. A pointer to a session that is
// gone or ended is cleared.
func (s *SessionService) Active(ctx context.Context) (*Match, error) {
	if _, err := s.Sweep(ctx); err != nil {
		return nil, err
	}

	id, ok, err := s.store.ActiveID(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("active session: %w", domain.ErrNotFound)
	}

	session, found, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found || session.IsEnded() {
		s.logger.Debug().Str("session_id", id).Msg("clearing stale active session pointer")
		if err := s.store.ClearActive(ctx); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("active session: %w", domain.ErrNotFound)
	}
	return &Match{Session: session}, nil
}

// BeginRound starts a draft round, replacing any existing draft. Scores not
// given start at zero.
func (s *SessionService) BeginRound(m *Match, scores map[string]int) error {
	if m.Session.IsEnded() {
		return fmt.Errorf("session %s is ended: %w", m.Session.ID, domain.ErrInvalidState)
	}

	draft := domain.Round{Scores: make(map[string]int, len(m.Session.Players))}
	for _, p := range m.Session.Players {
		draft.Scores[p.ID] = 0
	}
	for id, v := range scores {
		if !m.Session.HasPlayer(id) {
			return fmt.Errorf("player %s not in session %s: %w", id, m.Session.ID, domain.ErrInvalidState)
		}
		draft.Scores[id] = v
	}

	m.Draft = &draft
	return nil
}

func (s *SessionService) SetScore(m *Match, playerID string, score int) error {
	if m.Draft == nil {
		return fmt.Errorf("no round in progress: %w", domain.ErrInvalidState)
	}
	if !m.Session.HasPlayer(playerID) {
		return fmt.Errorf("player %s not in session %s: %w", playerID, m.Session.ID, domain.ErrInvalidState)
	}
	m.Draft.Scores[playerID] = score
	return nil
}

// CommitRound validates the draft: it is timestamped, appended and persisted.
func (s *SessionService) CommitRound(ctx context.Context, m *Match) error {
	if m.Draft == nil {
		return fmt.Errorf("no round to commit: %w", domain.ErrInvalidState)
	}
	draft := m.Draft.Clone()

	updated, err := s.store.Update(ctx, m.Session.ID, func(sess *domain.Session) error {
		if sess.IsEnded() {
			return fmt.Errorf("session %s is ended: %w", sess.ID, domain.ErrInvalidState)
		}
		round := domain.Round{Ts: s.store.Now(), Scores: make(map[string]int, len(sess.Players))}
		for _, p := range sess.Players {
			round.Scores[p.ID] = draft.Scores[p.ID]
		}
		sess.Rounds = append(sess.Rounds, round)
		return nil
	})
	if err != nil {
		return stateErr(err)
	}

	m.Session = updated
	m.Draft = nil
	s.logger.Debug().Str("session_id", updated.ID).Int("rounds", len(updated.Rounds)).Msg("round committed")
	return nil
}

// UndoRound drops the draft if there is one, otherwise the last committed
// round. With no rounds at all it does nothing.
func (s *SessionService) UndoRound(ctx context.Context, m *Match) error {
	if m.Session.IsEnded() {
		return fmt.Errorf("session %s is ended: %w", m.Session.ID, domain.ErrInvalidState)
	}
	if m.Draft != nil {
		m.Draft = nil
		return nil
	}

	updated, err := s.store.Update(ctx, m.Session.ID, func(sess *domain.Session) error {
		if sess.IsEnded() {
			return fmt.Errorf("session %s is ended: %w", sess.ID, domain.ErrInvalidState)
		}
		if len(sess.Rounds) == 0 {
			return store.ErrSkipWrite
		}
		sess.Rounds = sess.Rounds[:len(sess.Rounds)-1]
		return nil
	})
	if err != nil {
		return stateErr(err)
	}

	m.Session = updated
	return nil
}

// End discards any draft, stamps endedAt and releases the active pointer.
// Ending an ended session is a no-op.
func (s *SessionService) End(ctx context.Context, m *Match) error {
	var alreadyEnded bool
	updated, err := s.store.Update(ctx, m.Session.ID, func(sess *domain.Session) error {
		if sess.IsEnded() {
			alreadyEnded = true
			return store.ErrSkipWrite
		}
		now := s.store.Now()
		sess.EndedAt = &now
		return nil
	})
	if err != nil {
		return stateErr(err)
	}
	m.Session = updated
	m.Draft = nil
	if alreadyEnded {
		return nil
	}

	if err := s.store.ClearActiveIf(ctx, updated.ID); err != nil {
		return err
	}

	s.logger.Info().Str("session_id", updated.ID).Int("rounds", len(updated.Rounds)).Msg("session ended")
	return nil
}

// Reopen clears endedAt on an ended session and makes it active again.
func (s *SessionService) Reopen(ctx context.Context, id string) (*Match, error) {
	updated, err := s.store.Update(ctx, id, func(sess *domain.Session) error {
		if !sess.IsEnded() {
			return fmt.Errorf("session %s is in progress: %w", sess.ID, domain.ErrInvalidState)
		}
		sess.EndedAt = nil
		return nil
	})
	if err != nil {
		return nil, stateErr(err)
	}

	if err := s.store.SetActive(ctx, updated.ID); err != nil {
		return nil, err
	}

	s.logger.Info().Str("session_id", updated.ID).Msg("session reopened")
	return &Match{Session: updated}, nil
}

// TogglePin flips the pinned flag and persists it straight away.
func (s *SessionService) TogglePin(ctx context.Context, id string) (domain.Session, error) {
	updated, err := s.store.Update(ctx, id, func(sess *domain.Session) error {
		sess.Pinned = !sess.Pinned
		return nil
	})
	if err != nil {
		return domain.Session{}, stateErr(err)
	}

	s.logger.Debug().Str("session_id", updated.ID).Bool("pinned", updated.Pinned).Msg("pin toggled")
	return updated, nil
}

// Duplicate starts a fresh session with the source's game and players. The
// source is never modified.
func (s *SessionService) Duplicate(ctx context.Context, id string) (*Match, error) {
	src, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}

	newID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := s.store.Now()
	dup := domain.Session{
		ID:        newID,
		GameID:    src.GameID,
		GameName:  src.GameName,
		Accent:    src.Accent,
		Label:     src.Label,
		StartedAt: now,
		UpdatedAt: now,
		Players:   append([]domain.Player(nil), src.Players...),
	}

	stored, err := s.store.Put(ctx, dup)
	if err != nil {
		return nil, fmt.Errorf("failed to store duplicate: %w", err)
	}
	if err := s.store.SetActive(ctx, stored.ID); err != nil {
		return nil, err
	}

	s.logger.Info().Str("session_id", stored.ID).Str("source_id", src.ID).Msg("session duplicated")
	return &Match{Session: stored}, nil
}

// Delete removes the session whatever its state.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.ClearActiveIf(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Str("session_id", id).Msg("session deleted")
	return nil
}

// History sweeps expired sessions and lists the rest, newest start first.
func (s *SessionService) History(ctx context.Context) ([]domain.Session, error) {
	if _, err := s.Sweep(ctx); err != nil {
		return nil, err
	}

	sessions, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}

// stateErr makes a missing session also match ErrInvalidState.
func stateErr(err error) error {
	if errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrInvalidState) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidState, err)
	}
	return err
}
