package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"scorepad/internal/domain"
)

// storedCollection is the canonical persisted layout.
type storedCollection struct {
	Sessions []storedSession `json:"sessions"`
}

type storedSession struct {
	ID        string         `json:"id"`
	GameID    string         `json:"gameId"`
	GameName  string         `json:"gameName"`
	Accent    string         `json:"accent"`
	Label     string         `json:"label"`
	StartedAt string         `json:"startedAt"`
	UpdatedAt string         `json:"updatedAt,omitempty"`
	EndedAt   *string        `json:"endedAt"`
	Pinned    bool           `json:"pinned"`
	Players   []storedPlayer `json:"players"`
	Rounds    []storedRound  `json:"rounds"`
}

type storedPlayer struct {
	ID     string `json:"id"`
	Pseudo string `json:"pseudo"`
}

type storedRound struct {
	Ts     string         `json:"ts"`
	Scores map[string]int `json:"scores"`
}

// looseSession accepts every shape older builds wrote.
type looseSession struct {
	ID        string            `json:"id"`
	GameID    string            `json:"gameId"`
	GameName  string            `json:"gameName"`
	Accent    string            `json:"accent"`
	Label     string            `json:"label"`
	StartedAt json.RawMessage   `json:"startedAt"`
	UpdatedAt json.RawMessage   `json:"updatedAt"`
	EndedAt   json.RawMessage   `json:"endedAt"`
	Pinned    json.RawMessage   `json:"pinned"`
	Players   []json.RawMessage `json:"players"`
	Rounds    []json.RawMessage `json:"rounds"`
}

type looseRound struct {
	Ts          json.RawMessage `json:"ts"`
	ValidatedAt json.RawMessage `json:"validatedAt"`
	Scores      json.RawMessage `json:"scores"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeCollection(sessions []domain.Session) (string, error) {
	out := storedCollection{Sessions: make([]storedSession, 0, len(sessions))}
	for _, s := range sessions {
		rec := storedSession{
			ID:        s.ID,
			GameID:    s.GameID,
			GameName:  s.GameName,
			Accent:    s.Accent,
			Label:     s.Label,
			StartedAt: formatTime(s.StartedAt),
			Pinned:    s.Pinned,
			Players:   make([]storedPlayer, len(s.Players)),
			Rounds:    make([]storedRound, len(s.Rounds)),
		}
		if !s.UpdatedAt.IsZero() {
			rec.UpdatedAt = formatTime(s.UpdatedAt)
		}
		if s.EndedAt != nil {
			ended := formatTime(*s.EndedAt)
			rec.EndedAt = &ended
		}
		for i, p := range s.Players {
			rec.Players[i] = storedPlayer{ID: p.ID, Pseudo: p.Pseudo}
		}
		for i, r := range s.Rounds {
			rec.Rounds[i] = storedRound{Ts: formatTime(r.Ts), Scores: r.Scores}
		}
		out.Sessions = append(out.Sessions, rec)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode sessions: %w", err)
	}
	return string(data), nil
}

// decodeCollection parses the persisted value. A malformed top level yields
// ErrStorageCorrupt; malformed entries are skipped and counted in dropped.
func decodeCollection(raw string) (sessions []domain.Session, dropped int, err error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 {
		return nil, 0, nil
	}

	var entries []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", domain.ErrStorageCorrupt, err)
		}
	case '{':
		var top struct {
			Sessions json.RawMessage `json:"sessions"`
		}
		if err := json.Unmarshal(data, &top); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", domain.ErrStorageCorrupt, err)
		}
		if len(top.Sessions) == 0 || string(top.Sessions) == "null" {
			return nil, 0, nil
		}
		if err := json.Unmarshal(top.Sessions, &entries); err != nil {
			return nil, 0, fmt.Errorf("%w: sessions is not a list: %v", domain.ErrStorageCorrupt, err)
		}
	default:
		return nil, 0, fmt.Errorf("%w: unexpected top-level value", domain.ErrStorageCorrupt)
	}

	sessions = make([]domain.Session, 0, len(entries))
	for _, entry := range entries {
		s, ok := decodeSession(entry)
		if !ok {
			dropped++
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, dropped, nil
}

func decodeSession(raw json.RawMessage) (domain.Session, bool) {
	var ls looseSession
	if err := json.Unmarshal(raw, &ls); err != nil || ls.ID == "" {
		return domain.Session{}, false
	}

	s := domain.Session{
		ID:        ls.ID,
		GameID:    ls.GameID,
		GameName:  ls.GameName,
		Accent:    ls.Accent,
		Label:     ls.Label,
		StartedAt: parseTime(ls.StartedAt),
		UpdatedAt: parseTime(ls.UpdatedAt),
		Pinned:    parseBool(ls.Pinned),
		Players:   make([]domain.Player, 0, len(ls.Players)),
		Rounds:    make([]domain.Round, 0, len(ls.Rounds)),
	}
	if ended := parseTime(ls.EndedAt); !ended.IsZero() {
		s.EndedAt = &ended
	}

	for i, rp := range ls.Players {
		s.Players = append(s.Players, decodePlayer(rp, i))
	}

	for _, rr := range ls.Rounds {
		r, ok := decodeRound(rr, s.Players)
		if ok {
			s.Rounds = append(s.Rounds, r)
		}
	}
	return s, true
}

func decodePlayer(raw json.RawMessage, idx int) domain.Player {
	fallbackID := fmt.Sprintf("p%d", idx+1)

	var pseudo string
	if err := json.Unmarshal(raw, &pseudo); err == nil {
		return domain.Player{ID: fallbackID, Pseudo: pseudo}
	}

	var p storedPlayer
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Player{ID: fallbackID}
	}
	if p.ID == "" {
		p.ID = fallbackID
	}
	return domain.Player{ID: p.ID, Pseudo: p.Pseudo}
}

// decodeRound returns false for drafts persisted by older builds
// (validatedAt present but null).
func decodeRound(raw json.RawMessage, players []domain.Player) (domain.Round, bool) {
	var lr looseRound
	if err := json.Unmarshal(raw, &lr); err != nil {
		return domain.Round{}, false
	}
	if lr.ValidatedAt != nil && isNull(lr.ValidatedAt) {
		return domain.Round{}, false
	}

	ts := parseTime(lr.Ts)
	if ts.IsZero() {
		ts = parseTime(lr.ValidatedAt)
	}

	scores := make(map[string]int, len(players))
	for _, p := range players {
		scores[p.ID] = 0
	}

	var byID map[string]any
	var byIndex []any
	switch {
	case json.Unmarshal(lr.Scores, &byID) == nil:
		for id, v := range byID {
			scores[id] = coerceScore(v)
		}
	case json.Unmarshal(lr.Scores, &byIndex) == nil:
		for i, v := range byIndex {
			if i < len(players) {
				scores[players[i].ID] = coerceScore(v)
			}
		}
	}

	return domain.Round{Ts: ts, Scores: scores}, true
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func parseBool(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

// parseTime accepts RFC 3339 strings and epoch milliseconds. Anything else is zero.
func parseTime(raw json.RawMessage) time.Time {
	if len(raw) == 0 || isNull(raw) {
		return time.Time{}
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return time.Time{}
	}

	switch t := v.(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t)); err == nil {
			return parsed.UTC()
		}
		if ms, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil && ms > 0 {
			return time.UnixMilli(ms).UTC()
		}
	case float64:
		if t > 0 && !math.IsInf(t, 0) && !math.IsNaN(t) {
			return time.UnixMilli(int64(t)).UTC()
		}
	}
	return time.Time{}
}

const maxScoreMagnitude = 1 << 53

// coerceScore turns any decoded JSON value into an integer score.
// Non-numeric, null and non-finite values are 0; fractions truncate.
func coerceScore(v any) int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxScoreMagnitude {
		return 0
	}
	return int(math.Trunc(f))
}
