package store

import (
	"encoding/json"
	"testing"
	"time"

	"scorepad/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestDecodeCollection_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantIDs []string
		dropped int
		corrupt bool
	}{
		{name: "empty", raw: "  "},
		{name: "wrapped", raw: `{"sessions":[{"id":"a"},{"id":"b"}]}`, wantIDs: []string{"a", "b"}},
		{name: "bare list", raw: `[{"id":"a"}]`, wantIDs: []string{"a"}},
		{name: "null sessions", raw: `{"sessions":null}`},
		{name: "missing sessions", raw: `{}`},
		{name: "entries without id dropped", raw: `[{"id":"a"},{"gameId":"x"},7]`, wantIDs: []string{"a"}, dropped: 2},
		{name: "not json", raw: "nope", corrupt: true},
		{name: "truncated", raw: `[{"id":"a"`, corrupt: true},
		{name: "sessions not a list", raw: `{"sessions":{"id":"a"}}`, corrupt: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions, dropped, err := decodeCollection(tt.raw)
			if tt.corrupt {
				require.ErrorIs(t, err, domain.ErrStorageCorrupt)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.dropped, dropped)

			ids := make([]string, 0, len(sessions))
			for _, s := range sessions {
				ids = append(ids, s.ID)
			}
			require.ElementsMatch(t, tt.wantIDs, ids)
		})
	}
}

func TestDecodeSession_LegacyFields(t *testing.T) {
	raw := `[{
		"id": "s1",
		"gameId": "skyjo",
		"gameName": "Skyjo",
		"startedAt": 1700000000000,
		"endedAt": "2023-11-14T23:00:00Z",
		"pinned": "yes",
		"players": ["JKA", {"pseudo": "BOB"}, {"id": "x9", "pseudo": "ZED"}],
		"rounds": [
			{"ts": 1700000100000, "scores": [10, "7", null]},
			{"ts": "2023-11-14T22:20:00Z", "scores": {"p1": 2.9, "x9": -3.7, "ghost": 5}},
			{"ts": "2023-11-14T22:30:00Z", "validatedAt": null, "scores": {"p1": 99}},
			{"validatedAt": "2023-11-14T22:40:00Z", "scores": {"p2": "abc"}}
		]
	}]`

	sessions, dropped, err := decodeCollection(raw)
	require.NoError(t, err)
	require.Zero(t, dropped)
	require.Len(t, sessions, 1)
	s := sessions[0]

	require.Equal(t, time.UnixMilli(1700000000000).UTC(), s.StartedAt)
	require.True(t, s.UpdatedAt.IsZero())
	require.NotNil(t, s.EndedAt)
	require.Equal(t, domain.StateEnded, s.State())
	require.False(t, s.Pinned)

	require.Equal(t, []domain.Player{
		{ID: "p1", Pseudo: "JKA"},
		{ID: "p2", Pseudo: "BOB"},
		{ID: "x9", Pseudo: "ZED"},
	}, s.Players)

	require.Len(t, s.Rounds, 3, "draft round must be dropped")
	require.Equal(t, map[string]int{"p1": 10, "p2": 7, "x9": 0}, s.Rounds[0].Scores)
	require.Equal(t, 2, s.Rounds[1].Scores["p1"])
	require.Equal(t, -3, s.Rounds[1].Scores["x9"])
	require.Equal(t, 0, s.Rounds[1].Scores["p2"])
	require.Equal(t, 0, s.Rounds[2].Scores["p2"])
	require.Equal(t, time.Date(2023, 11, 14, 22, 40, 0, 0, time.UTC), s.Rounds[2].Ts)
}

func TestEncodeDecode_PreservesSession(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 600, time.UTC)
	ended := started.Add(time.Hour)
	in := domain.Session{
		ID:        "abc",
		GameID:    "g1",
		GameName:  "Game One",
		Accent:    "#123456",
		Label:     "Friday",
		StartedAt: started,
		UpdatedAt: ended,
		EndedAt:   &ended,
		Pinned:    true,
		Players:   []domain.Player{{ID: "p1", Pseudo: "JKA"}, {ID: "p2", Pseudo: "BOB"}},
		Rounds: []domain.Round{
			{Ts: started.Add(time.Minute), Scores: map[string]int{"p1": 10, "p2": 7}},
		},
	}

	raw, err := encodeCollection([]domain.Session{in})
	require.NoError(t, err)

	var probe map[string][]map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &probe))
	require.Len(t, probe["sessions"], 1)

	out, dropped, err := decodeCollection(raw)
	require.NoError(t, err)
	require.Zero(t, dropped)
	require.Len(t, out, 1)
	require.Equal(t, in, out[0])
}

func TestCoerceScore(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{in: float64(12), want: 12},
		{in: 3.99, want: 3},
		{in: -3.99, want: -3},
		{in: " 42 ", want: 42},
		{in: "1e2", want: 100},
		{in: "", want: 0},
		{in: "abc", want: 0},
		{in: nil, want: 0},
		{in: true, want: 0},
		{in: float64(1 << 60), want: 0},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, coerceScore(tt.in), "%#v", tt.in)
	}
}
