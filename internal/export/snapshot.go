// Package export turns sessions into read-only snapshots and renders them into
// downloadable documents.
package export

import (
	"fmt"
	"io"
	"sort"
	"time"

	"scorepad/internal/constants"
	"scorepad/internal/domain"
	"scorepad/internal/scoring"
)

type PlayerSnapshot struct {
	ID     string
	Pseudo string
	Total  int
}

type RoundSnapshot struct {
	Number int
	Ts     time.Time
	Scores []int // same order as Snapshot.Players
}

// Snapshot is a detached copy of one session; nothing in it aliases store data.
type Snapshot struct {
	SessionID string
	GameID    string
	GameName  string
	Accent    string
	Label     string
	StartedAt time.Time
	EndedAt   *time.Time
	Pinned    bool
	Players   []PlayerSnapshot
	Rounds    []RoundSnapshot // nil unless round detail was requested
}

// Totals returns a fresh player id -> total map.
func (s Snapshot) Totals() map[string]int {
	out := make(map[string]int, len(s.Players))
	for _, p := range s.Players {
		out[p.ID] = p.Total
	}
	return out
}

// Title is the game name followed by the label, if any.
func (s Snapshot) Title() string {
	return domain.Title(s.GameName, s.GameID, s.Label)
}

func FromSession(s domain.Session, includeRounds bool) Snapshot {
	snap := Snapshot{
		SessionID: s.ID,
		GameID:    s.GameID,
		GameName:  s.GameName,
		Accent:    s.Accent,
		Label:     s.Label,
		StartedAt: s.StartedAt,
		Pinned:    s.Pinned,
	}
	if s.EndedAt != nil {
		ended := *s.EndedAt
		snap.EndedAt = &ended
	}

	for _, st := range scoring.Standings(s) {
		snap.Players = append(snap.Players, PlayerSnapshot{ID: st.PlayerID, Pseudo: st.Pseudo, Total: st.Total})
	}

	if includeRounds {
		snap.Rounds = make([]RoundSnapshot, len(s.Rounds))
		for i, r := range s.Rounds {
			snap.Rounds[i] = RoundSnapshot{Number: i + 1, Ts: r.Ts, Scores: scoring.RoundRow(s, r)}
		}
	}
	return snap
}

// Build keeps the caller's order.
func Build(sessions []domain.Session, includeRounds bool) []Snapshot {
	out := make([]Snapshot, len(sessions))
	for i, s := range sessions {
		out[i] = FromSession(s, includeRounds)
	}
	return out
}

// SortByStartDesc orders snapshots newest first, as the history view does.
func SortByStartDesc(snaps []Snapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].StartedAt.After(snaps[j].StartedAt)
	})
}

type Document struct {
	Title         string
	GeneratedAt   time.Time
	IncludeRounds bool
	Sessions      []Snapshot
}

type Renderer interface {
	Render(w io.Writer, doc Document) error
	Extension() string
}

// FileName carries the generation time so repeated exports never collide.
func FileName(now time.Time, ext string) string {
	return fmt.Sprintf("%s%d.%s", constants.ExportFilePrefix, now.UnixMilli(), ext)
}
