package domain

import (
	"time"
)

type Game struct {
	ID          string
	Name        string
	Accent      string
	MinPlayers  int
	MaxPlayers  int
	ScoringInfo string
	RulesPDF    string
	Logo        string
}

// ClampPlayers keeps n within the game's player bounds.
func (g Game) ClampPlayers(n int) int {
	if n < g.MinPlayers {
		return g.MinPlayers
	}
	if n > g.MaxPlayers {
		return g.MaxPlayers
	}
	return n
}

type Player struct {
	ID     string
	Pseudo string
}

type Round struct {
	Ts     time.Time
	Scores map[string]int // player id -> score
}

type State string

const (
	StateInProgress State = "in_progress"
	StateEnded      State = "ended"
)

type Session struct {
	ID        string
	GameID    string
	GameName  string // snapshot at creation
	Accent    string // snapshot at creation
	Label     string
	StartedAt time.Time
	UpdatedAt time.Time
	EndedAt   *time.Time
	Pinned    bool
	Players   []Player
	Rounds    []Round
}

func (s *Session) State() State {
	if s.EndedAt != nil {
		return StateEnded
	}
	return StateInProgress
}

func (s *Session) IsEnded() bool {
	return s.EndedAt != nil
}

func (s *Session) HasPlayer(id string) bool {
	for _, p := range s.Players {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Title is the display heading for the session.
func (s *Session) Title() string {
	return Title(s.GameName, s.GameID, s.Label)
}

// Title joins a game name (falling back to its id) and an optional label.
func Title(gameName, gameID, label string) string {
	name := gameName
	if name == "" {
		name = gameID
	}
	if label == "" {
		return name
	}
	return name + " — " + label
}

// LastActivity is the timestamp retention is measured from.
func (s *Session) LastActivity() time.Time {
	if !s.UpdatedAt.IsZero() {
		return s.UpdatedAt
	}
	return s.StartedAt
}

// Clone returns a deep copy so callers never share slices or maps with the store.
func (s Session) Clone() Session {
	out := s
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	out.Players = append([]Player(nil), s.Players...)
	out.Rounds = make([]Round, len(s.Rounds))
	for i, r := range s.Rounds {
		out.Rounds[i] = r.Clone()
	}
	return out
}

func (r Round) Clone() Round {
	scores := make(map[string]int, len(r.Scores))
	for k, v := range r.Scores {
		scores[k] = v
	}
	return Round{Ts: r.Ts, Scores: scores}
}
