package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"scorepad/internal/constants"
	"scorepad/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) (*SessionStore, *MemoryKV, *fakeClock) {
	t.Helper()
	kv := NewMemoryKV()
	clock := &fakeClock{t: time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)}
	return NewSessionStore(kv, zerolog.Nop(), WithClock(clock.Now)), kv, clock
}

func testSession(id string, startedAt time.Time) domain.Session {
	return domain.Session{
		ID:        id,
		GameID:    "g1",
		GameName:  "Game One",
		Accent:    "#fff",
		StartedAt: startedAt,
		Players:   []domain.Player{{ID: "p1", Pseudo: "JKA"}, {ID: "p2", Pseudo: "BOB"}},
	}
}

func TestSessionStore_PutGetList(t *testing.T) {
	ctx := context.Background()
	st, _, clock := newTestStore(t)

	first, err := st.Put(ctx, testSession("a", clock.Now()))
	require.NoError(t, err)
	require.Equal(t, clock.Now(), first.UpdatedAt)

	clock.Advance(time.Minute)
	_, err = st.Put(ctx, testSession("b", clock.Now()))
	require.NoError(t, err)

	list, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "b", list[0].ID)
	require.Equal(t, "a", list[1].ID)

	t.Run("put refreshes updatedAt and replaces in place", func(t *testing.T) {
		clock.Advance(time.Minute)
		s := first
		s.Label = "rematch"
		stored, err := st.Put(ctx, s)
		require.NoError(t, err)
		require.Equal(t, clock.Now(), stored.UpdatedAt)

		list, err := st.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, "a", list[0].ID)
		require.Equal(t, "rematch", list[0].Label)
	})

	t.Run("get", func(t *testing.T) {
		got, ok, err := st.Get(ctx, "b")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "b", got.ID)
		require.Len(t, got.Players, 2)

		_, ok, err = st.Get(ctx, "missing")
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestSessionStore_NoAliasing(t *testing.T) {
	ctx := context.Background()
	st, _, clock := newTestStore(t)

	s := testSession("a", clock.Now())
	stored, err := st.Put(ctx, s)
	require.NoError(t, err)

	s.Players[0].Pseudo = "changed"
	stored.Players[1].Pseudo = "changed"

	got, _, err := st.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "JKA", got.Players[0].Pseudo)
	require.Equal(t, "BOB", got.Players[1].Pseudo)
}

func TestSessionStore_Delete(t *testing.T) {
	ctx := context.Background()
	st, _, clock := newTestStore(t)

	_, err := st.Put(ctx, testSession("a", clock.Now()))
	require.NoError(t, err)

	require.NoError(t, st.Delete(ctx, "a"))
	require.NoError(t, st.Delete(ctx, "a"))

	list, err := st.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestSessionStore_Update(t *testing.T) {
	ctx := context.Background()
	st, kv, clock := newTestStore(t)

	_, err := st.Put(ctx, testSession("a", clock.Now()))
	require.NoError(t, err)
	before, _, _ := kv.Get(ctx, constants.SessionsKey)

	t.Run("callback error writes nothing", func(t *testing.T) {
		clock.Advance(time.Second)
		boom := errors.New("boom")
		_, err := st.Update(ctx, "a", func(s *domain.Session) error {
			s.Label = "half-written"
			return boom
		})
		require.ErrorIs(t, err, boom)

		after, _, _ := kv.Get(ctx, constants.SessionsKey)
		require.Equal(t, before, after)
	})

	t.Run("skip write returns stored copy", func(t *testing.T) {
		got, err := st.Update(ctx, "a", func(s *domain.Session) error {
			s.Label = "ignored"
			return ErrSkipWrite
		})
		require.NoError(t, err)
		require.Empty(t, got.Label)

		after, _, _ := kv.Get(ctx, constants.SessionsKey)
		require.Equal(t, before, after)
	})

	t.Run("applies and stamps updatedAt", func(t *testing.T) {
		clock.Advance(time.Second)
		got, err := st.Update(ctx, "a", func(s *domain.Session) error {
			s.Pinned = true
			return nil
		})
		require.NoError(t, err)
		require.True(t, got.Pinned)
		require.Equal(t, clock.Now(), got.UpdatedAt)
	})

	t.Run("missing session", func(t *testing.T) {
		_, err := st.Update(ctx, "missing", func(s *domain.Session) error { return nil })
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSessionStore_Sweep(t *testing.T) {
	ctx := context.Background()
	ttl := 24 * time.Hour

	t.Run("evicts only expired unpinned sessions", func(t *testing.T) {
		st, _, clock := newTestStore(t)
		start := clock.Now()

		old := testSession("old", start)
		_, err := st.Put(ctx, old)
		require.NoError(t, err)

		pinned := testSession("pinned", start)
		pinned.Pinned = true
		_, err = st.Put(ctx, pinned)
		require.NoError(t, err)

		clock.Advance(ttl + time.Minute - time.Second)
		// touched one second before the sweep, 24h01m after creation
		_, err = st.Put(ctx, testSession("touched", start))
		require.NoError(t, err)

		clock.Advance(time.Second)
		removed, err := st.Sweep(ctx, ttl)
		require.NoError(t, err)
		require.Equal(t, 1, removed)

		list, err := st.List(ctx)
		require.NoError(t, err)
		ids := []string{list[0].ID, list[1].ID}
		require.ElementsMatch(t, []string{"pinned", "touched"}, ids)

		removed, err = st.Sweep(ctx, ttl)
		require.NoError(t, err)
		require.Zero(t, removed)
	})

	t.Run("pinned sessions survive any age", func(t *testing.T) {
		st, _, clock := newTestStore(t)
		s := testSession("p", clock.Now())
		s.Pinned = true
		_, err := st.Put(ctx, s)
		require.NoError(t, err)

		clock.Advance(365 * 24 * time.Hour)
		removed, err := st.Sweep(ctx, ttl)
		require.NoError(t, err)
		require.Zero(t, removed)
	})

	t.Run("exactly ttl old is kept", func(t *testing.T) {
		st, _, clock := newTestStore(t)
		_, err := st.Put(ctx, testSession("edge", clock.Now()))
		require.NoError(t, err)

		clock.Advance(ttl)
		removed, err := st.Sweep(ctx, ttl)
		require.NoError(t, err)
		require.Zero(t, removed)
	})

	t.Run("empty storage", func(t *testing.T) {
		st, _, _ := newTestStore(t)
		removed, err := st.Sweep(ctx, ttl)
		require.NoError(t, err)
		require.Zero(t, removed)
	})

	t.Run("corrupt storage", func(t *testing.T) {
		st, kv, _ := newTestStore(t)
		require.NoError(t, kv.Set(ctx, constants.SessionsKey, "{not json"))
		removed, err := st.Sweep(ctx, ttl)
		require.NoError(t, err)
		require.Zero(t, removed)
	})
}

func TestSessionStore_CorruptStorageRecovers(t *testing.T) {
	ctx := context.Background()
	st, kv, clock := newTestStore(t)

	for _, raw := range []string{"garbage", `{"sessions": 42}`, `"just a string"`, `{"sessions": [1, "x", {"noid": true}]}`} {
		require.NoError(t, kv.Set(ctx, constants.SessionsKey, raw))
		list, err := st.List(ctx)
		require.NoError(t, err, raw)
		require.Empty(t, list, raw)
	}

	_, err := st.Put(ctx, testSession("fresh", clock.Now()))
	require.NoError(t, err)

	list, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "fresh", list[0].ID)
}

func TestSessionStore_ActivePointer(t *testing.T) {
	ctx := context.Background()
	st, _, _ := newTestStore(t)

	_, ok, err := st.ActiveID(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, st.SetActive(ctx, "a"))
	id, ok, err := st.ActiveID(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", id)

	require.NoError(t, st.ClearActiveIf(ctx, "b"))
	id, _, _ = st.ActiveID(ctx)
	require.Equal(t, "a", id)

	require.NoError(t, st.ClearActiveIf(ctx, "a"))
	_, ok, _ = st.ActiveID(ctx)
	require.False(t, ok)
}

type failingKV struct {
	err error
}

func (f failingKV) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingKV) Set(context.Context, string, string) error { return f.err }
func (f failingKV) Remove(context.Context, string) error { return f.err }

func TestSessionStore_BackendErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	st := NewSessionStore(failingKV{err: boom}, zerolog.Nop())

	_, err := st.List(ctx)
	require.ErrorIs(t, err, boom)

	_, err = st.Put(ctx, testSession("a", time.Now()))
	require.ErrorIs(t, err, boom)

	_, err = st.Sweep(ctx, time.Hour)
	require.ErrorIs(t, err, boom)
}
