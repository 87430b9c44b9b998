// Package session owns the operator's authenticated identity: the
// {user, token} pair, its durable snapshot, and the hydration lifecycle
// that restores it at process start.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
)

// snapshotVersion is bumped when the persisted shape changes.
const snapshotVersion = 1

// State is the session triple. IsAuthenticated holds true iff both User
// and Token are set; the store maintains that invariant on every
// mutation.
type State struct {
	User            *UserRecord `json:"user"`
	Token           string      `json:"token"`
	IsAuthenticated bool        `json:"isAuthenticated"`
}

type snapshot struct {
	State   State `json:"state"`
	Version int   `json:"version"`
}

// Store is the single owner of session state. All mutation goes through
// SetAuth, UpdateUser and Logout; every mutation persists the full
// triple to the durable slot so no partial state is observable across a
// restart.
type Store struct {
	mu     sync.RWMutex
	state  State
	slot   Slot
	logger *slog.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

// NewStore constructs an empty, not-yet-hydrated Store.
func NewStore(slot Slot, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		slot:   slot,
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Ready returns a channel closed once the durable-slot read has
// resolved. Dependents (the gate) must not make redirect decisions
// before then.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Hydrate launches the asynchronous durable-slot read that seeds the
// initial state. A corrupt or missing snapshot degrades to a logged-out
// session; hydration never fails.
func (s *Store) Hydrate(ctx context.Context) {
	go func() {
		defer s.markReady()
		data, err := s.slot.Read(ctx)
		if err != nil {
			if !errors.Is(err, ErrSlotEmpty) {
				s.logger.Warn("session hydrate read", slog.Any("error", err))
			}
			return
		}
		var snap snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			s.logger.Warn("session snapshot unparseable, starting logged out", slog.Any("error", err))
			return
		}
		st := snap.State
		st.IsAuthenticated = st.User != nil && st.Token != ""
		s.mu.Lock()
		s.state = st
		s.mu.Unlock()
	}()
}

func (s *Store) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Snapshot returns a copy of the current triple.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// Token returns the current bearer token, empty when logged out. The
// transport reads it at send time.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// SetAuth replaces user and token atomically and persists the new
// snapshot. Token shape is not validated; any non-empty value is
// accepted as-is.
func (s *Store) SetAuth(ctx context.Context, user UserRecord, token string) {
	s.mu.Lock()
	u := user
	s.state = State{User: &u, Token: token, IsAuthenticated: token != ""}
	st := s.state
	s.mu.Unlock()
	s.persist(ctx, st)
}

// UpdateUser shallow-merges the patch into the current user, leaving the
// token untouched. A no-op when no user is logged in.
func (s *Store) UpdateUser(ctx context.Context, patch UserPatch) {
	s.mu.Lock()
	if s.state.User == nil {
		s.mu.Unlock()
		return
	}
	merged := patch.apply(*s.state.User)
	s.state.User = &merged
	st := s.state
	s.mu.Unlock()
	s.persist(ctx, st)
}

// Logout resets the triple and synchronously clears the durable slot so
// a future process start cannot resurrect the session.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()
	if err := s.slot.Clear(ctx); err != nil {
		s.logger.Warn("session slot clear", slog.Any("error", err))
	}
}

func (s *Store) persist(ctx context.Context, st State) {
	data, err := json.Marshal(snapshot{State: st, Version: snapshotVersion})
	if err != nil {
		s.logger.Error("session snapshot marshal", slog.Any("error", err))
		return
	}
	if err := s.slot.Write(ctx, data); err != nil {
		s.logger.Warn("session slot write", slog.Any("error", err))
	}
}
