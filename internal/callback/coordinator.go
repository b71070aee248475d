// coordinator.go -- Pending identifier slot and 3LO completion.
//
// The coordinator holds at most one pending user token identifier. The flow
// driver arms it via Store; the authorization server's redirect completes the
// flow via Complete, which hands the session and the current identifier to
// the identity service. Storing again replaces the identifier (last write wins).
// Completing never clears it.
package callback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MGallo-Code/callbackd/internal/identity"
	"github.com/MGallo-Code/callbackd/internal/metrics"
	"github.com/gofrs/uuid/v5"
)

// ErrMissingSessionID is returned by Complete when the callback carries no session_id.
var ErrMissingSessionID = errors.New("missing session_id query parameter")

// ErrNoPendingIdentifier is returned by Complete when nothing has been stored yet.
// Means the flow driver redirected the user before pushing an identifier.
var ErrNoPendingIdentifier = errors.New("no user token identifier stored")

// ErrInvalidIdentifier is returned by Store when the identifier fails presence validation.
var ErrInvalidIdentifier = errors.New("invalid user token identifier")

// Pending is a snapshot of the stored identifier.
// Generation changes on every Store so logs can tell which identifier a callback used.
type Pending struct {
	Identifier identity.UserTokenIdentifier
	Generation uuid.UUID
	StoredAt   time.Time
}

// Coordinator owns the pending identifier slot. Safe for concurrent use.
type Coordinator struct {
	identity identity.Service
	metrics  *metrics.Metrics

	mu      sync.Mutex
	pending *Pending // nil until the first Store
}

// NewCoordinator returns an empty (unarmed) Coordinator that completes flows through svc.
// m may be nil.
func NewCoordinator(svc identity.Service, m *metrics.Metrics) *Coordinator {
	return &Coordinator{identity: svc, metrics: m}
}

// Store replaces the pending identifier with its normalized form and returns its new generation.
func (c *Coordinator) Store(id identity.UserTokenIdentifier) (uuid.UUID, error) {
	id = id.Normalize()
	if err := id.Validate(); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidIdentifier, err)
	}
	gen, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generating identifier generation: %w", err)
	}

	c.mu.Lock()
	c.pending = &Pending{Identifier: id, Generation: gen, StoredAt: time.Now()}
	c.mu.Unlock()

	c.metrics.IncrementStored()
	return gen, nil
}

// Pending returns a copy of the stored identifier, or false if none has been stored.
func (c *Coordinator) Pending() (Pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Pending{}, false
	}
	return *c.pending, true
}

// Complete finishes the 3LO flow for sessionID using the currently stored identifier.
// Validation happens before any identity call. The slot lock is not held across
// the call; a Store that lands mid-call affects only later callbacks.
// The returned Pending is the snapshot that was used (zero if validation failed).
func (c *Coordinator) Complete(ctx context.Context, sessionID string) (Pending, error) {
	if sessionID == "" {
		return Pending{}, ErrMissingSessionID
	}
	p, ok := c.Pending()
	if !ok {
		return Pending{}, ErrNoPendingIdentifier
	}

	start := time.Now()
	err := c.identity.CompleteResourceTokenAuth(ctx, sessionID, p.Identifier)
	c.metrics.ObserveIdentityLatency(time.Since(start))
	if err != nil {
		return p, fmt.Errorf("completing resource token auth: %w", err)
	}
	return p, nil
}
