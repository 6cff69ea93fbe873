// Package state holds the process-wide reactive authentication state.
// Exactly one identity-service subscription feeds it; everything else
// only reads snapshots or observes changes.
package state

import (
	"sync"

	"github.com/venalabs/authbridge/internal/identity"
	"github.com/venalabs/authbridge/internal/webview"
)

// AuthState is the shared authentication state consumed by route guards
// and profile display.
type AuthState struct {
	CurrentUser       *identity.User
	Loading           bool
	IsEmbeddedWebView bool
}

// Store is the single source of truth for AuthState. Loading starts
// true and stays true until the first identity callback lands.
type Store struct {
	mu         sync.RWMutex
	state      AuthState
	subscribed bool
	observers  []func(AuthState)
}

// NewStore creates a Store for the given execution context.
// Loading is true from process start.
func NewStore(env webview.Context) *Store {
	return &Store{
		state: AuthState{
			Loading:           true,
			IsEmbeddedWebView: env == webview.ContextEmbeddedWebView,
		},
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetUser replaces the current identity. A nil user means no valid
// session exists. The first call also clears Loading, matching the
// identity service's "first state callback" semantics.
func (s *Store) SetUser(user *identity.User) {
	s.mu.Lock()
	s.state.CurrentUser = user
	s.state.Loading = false
	snapshot := s.state
	observers := s.observers
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

// SetLoading toggles the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.state.Loading = loading
	snapshot := s.state
	observers := s.observers
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

// Observe registers a callback invoked after every state change.
// Callbacks run on the mutating goroutine and must be fast.
func (s *Store) Observe(fn func(AuthState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// MarkSubscribed records the one allowed identity-service subscription.
// It reports false if a subscription already exists, so a second caller
// can refuse to double-subscribe.
func (s *Store) MarkSubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribed {
		return false
	}
	s.subscribed = true
	return true
}
