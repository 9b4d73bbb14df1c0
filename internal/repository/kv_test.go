package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"scorepad/internal/database"
	"scorepad/internal/domain"
	"scorepad/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "scorepad.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestKVRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewKVRepository(openTestDB(t), zerolog.Nop())

	_, ok, err := repo.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.Set(ctx, "k", "v1"))
	require.NoError(t, repo.Set(ctx, "k", "v2"))

	v, ok, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", v)

	require.NoError(t, repo.Remove(ctx, "k"))
	require.NoError(t, repo.Remove(ctx, "k"))
	_, ok, err = repo.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKVRepository_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scorepad.db")

	db, err := database.Open(path, zerolog.Nop())
	require.NoError(t, err)
	st := store.NewSessionStore(NewKVRepository(db, zerolog.Nop()), zerolog.Nop())

	started := time.Date(2026, 4, 1, 19, 0, 0, 0, time.UTC)
	_, err = st.Put(ctx, domain.Session{
		ID:        "s1",
		GameID:    "skyjo",
		GameName:  "Skyjo",
		StartedAt: started,
		Players:   []domain.Player{{ID: "p1", Pseudo: "JKA"}},
		Rounds:    []domain.Round{{Ts: started, Scores: map[string]int{"p1": 4}}},
	})
	require.NoError(t, err)
	require.NoError(t, st.SetActive(ctx, "s1"))
	require.NoError(t, db.Close())

	db, err = database.Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()
	st = store.NewSessionStore(NewKVRepository(db, zerolog.Nop()), zerolog.Nop())

	got, ok, err := st.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "JKA", got.Players[0].Pseudo)
	require.Equal(t, 4, got.Rounds[0].Scores["p1"])

	active, ok, err := st.ActiveID(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "s1", active)
}
