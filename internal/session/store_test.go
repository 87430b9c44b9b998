package session_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malibag-society/malibag/internal/session"
)

func newRedisSlot(t *testing.T) *session.RedisSlot {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return session.NewRedisSlot(client, "test:session")
}

func hydrated(t *testing.T, slot session.Slot) *session.Store {
	t.Helper()
	store := session.NewStore(slot, nil)
	store.Hydrate(context.Background())
	select {
	case <-store.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("hydration did not complete")
	}
	return store
}

func sampleUser() session.UserRecord {
	return session.UserRecord{
		ID:          7,
		Name:        "Amina Chowdhury",
		Email:       "amina@malibag.coop",
		Phone:       "01711-000000",
		Role:        session.RoleAdmin,
		Shares:      12,
		JoiningDate: time.Date(2019, 3, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestSetAuthRoundTrip(t *testing.T) {
	ctx := context.Background()
	slot := newRedisSlot(t)

	first := hydrated(t, slot)
	first.SetAuth(ctx, sampleUser(), "tok-123")

	// A fresh store over the same slot simulates a process restart.
	second := hydrated(t, slot)
	st := second.Snapshot()
	require.True(t, st.IsAuthenticated)
	require.NotNil(t, st.User)
	assert.Equal(t, "tok-123", st.Token)
	assert.Equal(t, sampleUser(), *st.User)
}

func TestLogoutClearsSlot(t *testing.T) {
	ctx := context.Background()
	slot := newRedisSlot(t)

	store := hydrated(t, slot)
	store.SetAuth(ctx, sampleUser(), "tok-123")
	store.Logout(ctx)

	_, err := slot.Read(ctx)
	require.True(t, errors.Is(err, session.ErrSlotEmpty))

	restarted := hydrated(t, slot)
	st := restarted.Snapshot()
	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.User)
	assert.Empty(t, st.Token)
}

func TestUpdateUserShallowMerge(t *testing.T) {
	ctx := context.Background()
	store := hydrated(t, newRedisSlot(t))
	store.SetAuth(ctx, sampleUser(), "tok-123")

	phone := "01822-111111"
	store.UpdateUser(ctx, session.UserPatch{Phone: &phone})

	st := store.Snapshot()
	require.NotNil(t, st.User)
	assert.Equal(t, phone, st.User.Phone)
	assert.Equal(t, "Amina Chowdhury", st.User.Name, "untouched fields survive")
	assert.Equal(t, "tok-123", st.Token, "token is never altered by a profile patch")
}

func TestUpdateUserEmptyPatchIdempotent(t *testing.T) {
	ctx := context.Background()
	store := hydrated(t, newRedisSlot(t))
	store.SetAuth(ctx, sampleUser(), "tok-123")

	before := store.Snapshot()
	store.UpdateUser(ctx, session.UserPatch{})
	assert.Equal(t, before, store.Snapshot())
}

func TestUpdateUserNoUserIsNoop(t *testing.T) {
	ctx := context.Background()
	slot := newRedisSlot(t)
	store := hydrated(t, slot)

	store.UpdateUser(ctx, session.UserPatch{Name: strptr("ghost")})

	st := store.Snapshot()
	assert.Nil(t, st.User)
	assert.False(t, st.IsAuthenticated)
	_, err := slot.Read(ctx)
	assert.True(t, errors.Is(err, session.ErrSlotEmpty), "no snapshot written for a no-op")
}

func TestCorruptSnapshotDegradesToLoggedOut(t *testing.T) {
	ctx := context.Background()
	slot := newRedisSlot(t)
	require.NoError(t, slot.Write(ctx, []byte("{not json")))

	store := hydrated(t, slot)
	st := store.Snapshot()
	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.User)
}

func TestFileSlotRoundTrip(t *testing.T) {
	ctx := context.Background()
	slot := session.NewFileSlot(filepath.Join(t.TempDir(), "session.json"))

	store := hydrated(t, slot)
	store.SetAuth(ctx, sampleUser(), "tok-file")

	restarted := hydrated(t, slot)
	st := restarted.Snapshot()
	require.True(t, st.IsAuthenticated)
	assert.Equal(t, "tok-file", st.Token)

	restarted.Logout(ctx)
	_, err := slot.Read(ctx)
	assert.True(t, errors.Is(err, session.ErrSlotEmpty))
}

func TestTokenMissingMeansUnauthenticated(t *testing.T) {
	ctx := context.Background()
	store := hydrated(t, newRedisSlot(t))
	store.SetAuth(ctx, sampleUser(), "")
	assert.False(t, store.Snapshot().IsAuthenticated)
}

func strptr(s string) *string { return &s }
