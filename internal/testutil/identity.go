// identity.go
//
// Shared mock implementation of identity.Service.
// Imported by test files across packages to avoid duplicate mock definitions.
package testutil

import (
	"context"
	"sync"

	"github.com/MGallo-Code/callbackd/internal/identity"
)

// IdentityCall records one CompleteResourceTokenAuth invocation.
type IdentityCall struct {
	SessionURI string
	Identifier identity.UserTokenIdentifier
}

// MockIdentity implements identity.Service for tests.
// Records every call; set Err to make calls fail.
// OnCall, if set, runs inside the call before it returns (use it to interleave Store).
type MockIdentity struct {
	Err    error
	OnCall func(ctx context.Context)

	mu    sync.Mutex
	calls []IdentityCall
}

func (m *MockIdentity) CompleteResourceTokenAuth(ctx context.Context, sessionURI string, id identity.UserTokenIdentifier) error {
	m.mu.Lock()
	m.calls = append(m.calls, IdentityCall{SessionURI: sessionURI, Identifier: id})
	onCall, err := m.OnCall, m.Err
	m.mu.Unlock()

	if onCall != nil {
		onCall(ctx)
	}
	return err
}

// Calls returns a copy of all recorded calls, oldest first.
func (m *MockIdentity) Calls() []IdentityCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]IdentityCall(nil), m.calls...)
}

// CallCount returns how many times CompleteResourceTokenAuth was called.
func (m *MockIdentity) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall returns the most recent call, or false if there were none.
func (m *MockIdentity) LastCall() (IdentityCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return IdentityCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}
