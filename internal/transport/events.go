package transport

import (
	"context"
	"sync"
)

// AuthLostFunc reacts to the remote API rejecting the session token.
type AuthLostFunc func(ctx context.Context)

// AuthLostHub fans one "authentication lost" event out to its
// subscribers. The hub makes the 401-ends-the-session side effect an
// explicit, observable link instead of burying it in the request path.
type AuthLostHub struct {
	mu   sync.Mutex
	subs []AuthLostFunc
}

// NewAuthLostHub constructs an empty hub.
func NewAuthLostHub() *AuthLostHub {
	return &AuthLostHub{}
}

// Subscribe registers fn to run on every auth-lost event. Subscribers
// run synchronously, in registration order, before the failing call
// returns to its caller.
func (h *AuthLostHub) Subscribe(fn AuthLostFunc) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.subs = append(h.subs, fn)
	h.mu.Unlock()
}

// Publish invokes all subscribers.
func (h *AuthLostHub) Publish(ctx context.Context) {
	h.mu.Lock()
	subs := make([]AuthLostFunc, len(h.subs))
	copy(subs, h.subs)
	h.mu.Unlock()
	for _, fn := range subs {
		fn(ctx)
	}
}
