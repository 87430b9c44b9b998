// Package fetch provides the per-view cell binding a resource path on
// the ledger API to its fetched payload plus loading/error state.
//
// Cells share nothing with each other: two cells armed with the same
// path perform two independent calls, and consistency after a mutation
// is restored only by an explicit Refetch on each affected cell.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/malibag-society/malibag/internal/transport"
)

// Getter issues the underlying read. *transport.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// Snapshot is the observable state of a cell at one instant.
type Snapshot struct {
	Data     json.RawMessage
	Loading  bool
	Err      string
	AuthLost bool
}

// Cell tracks one remote resource. Arm it with SetKey, re-issue with
// Refetch, observe with Snapshot, block with WaitSettled.
type Cell struct {
	getter Getter

	mu      sync.Mutex
	key     string
	gen     uint64
	state   Snapshot
	settled chan struct{}
}

// NewCell constructs an idle cell. Until a key is set it reports
// neither loading nor error.
func NewCell(getter Getter) *Cell {
	settled := make(chan struct{})
	close(settled)
	return &Cell{getter: getter, settled: settled}
}

// KeyResolved reports whether key is a usable resource path. Views
// derive keys from session data that may still be loading; an absent id
// leaves a placeholder behind, and calling the API with one would only
// produce spurious failures.
func KeyResolved(key string) bool {
	if key == "" {
		return false
	}
	if strings.Contains(key, "{") || strings.Contains(key, "}") {
		return false
	}
	return true
}

// SetKey re-arms the cell for key and starts the fetch. An unresolved
// key issues no call and settles the cell idle. If a previous fetch is
// still in flight its late result is discarded: the latest key wins.
func (c *Cell) SetKey(ctx context.Context, key string) {
	c.mu.Lock()
	c.key = key
	c.mu.Unlock()
	c.launch(ctx)
}

// Refetch re-issues the call for the current key, typically after a
// mutation elsewhere in the same view. Other cells are unaffected.
func (c *Cell) Refetch(ctx context.Context) {
	c.launch(ctx)
}

// Key returns the current resource key.
func (c *Cell) Key() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

// Snapshot returns a copy of the current state.
func (c *Cell) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WaitSettled blocks until the in-flight fetch (if any) has applied its
// result, or ctx is done.
func (c *Cell) WaitSettled(ctx context.Context) error {
	c.mu.Lock()
	settled := c.settled
	c.mu.Unlock()
	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cell) launch(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	key := c.key

	if !KeyResolved(key) {
		// Deliberate wait state, not an error.
		c.state = Snapshot{}
		settled := make(chan struct{})
		close(settled)
		c.settled = settled
		c.mu.Unlock()
		return
	}

	c.state = Snapshot{Loading: true}
	settled := make(chan struct{})
	c.settled = settled
	c.mu.Unlock()

	go func() {
		body, err := c.getter.Get(ctx, key)
		c.apply(gen, settled, body, err)
	}()
}

// apply installs a completed fetch, unless a newer key or refetch has
// superseded this generation in the meantime.
func (c *Cell) apply(gen uint64, settled chan struct{}, body []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// Superseded: discard the stale result, but still release
		// anyone who was waiting on this generation.
		close(settled)
		return
	}
	switch {
	case err == nil:
		c.state = Snapshot{Data: Normalize(body)}
	case transport.IsAuthLost(err):
		c.state = Snapshot{AuthLost: true}
	default:
		var apiErr *transport.Error
		if errors.As(err, &apiErr) {
			c.state = Snapshot{Err: ErrorMessage(apiErr.Body)}
		} else {
			c.state = Snapshot{Err: FallbackErrorMessage}
		}
	}
	close(settled)
}
