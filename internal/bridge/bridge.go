// Package bridge is the message channel between the native host shell
// and the application. The host delivers sign-in results out-of-band:
// either through a direct callback or by relaunching the page with
// authorization parameters in the URL. Both paths converge on the same
// typed events.
package bridge

import (
	"net/url"
	"sync"

	"go.uber.org/zap"
)

// AuthCode is the success payload delivered by the native layer after a
// completed provider sign-in.
type AuthCode struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// AuthError is the failure payload delivered by the native layer.
type AuthError struct {
	Code        string `json:"error"`
	Description string `json:"errorDescription"`
}

// Event is either an AuthCode or an AuthError, never both.
type Event struct {
	Code *AuthCode
	Err  *AuthError
}

// HostBridge is the outbound half of the channel: a capability the
// embedding host exposes to trigger platform-native sign-in UI.
// Implementations must not block.
type HostBridge interface {
	RequestNativeSignIn() error
}

// Bus fans inbound host events out to a single waiting consumer. It is
// injected at startup rather than hung off ambient global state.
type Bus struct {
	mu     sync.Mutex
	ch     chan Event
	logger *zap.Logger
}

// NewBus returns a Bus ready to accept events.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		ch:     make(chan Event, 1),
		logger: logger,
	}
}

// Publish delivers an event from the host layer. If no consumer drains
// the previous event the newest one wins; stale results from an
// abandoned attempt must not satisfy a later one.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.ch:
		b.logger.Debug("discarding unconsumed bridge event")
	default:
	}
	b.ch <- ev

	switch {
	case ev.Code != nil:
		b.logger.Info("bridge auth code received", zap.String("state", ev.Code.State))
	case ev.Err != nil:
		b.logger.Warn("bridge auth error received",
			zap.String("code", ev.Err.Code),
			zap.String("description", ev.Err.Description))
	}
}

// Events exposes the inbound channel for the orchestrator to wait on.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Callback query parameters set by the provider redirect.
const (
	paramCode             = "code"
	paramState            = "state"
	paramError            = "error"
	paramErrorDescription = "error_description"
)

// ExtractCallback inspects a page URL for authorization-callback query
// parameters. When present it returns the corresponding event and the
// URL with those parameters stripped, so the visible address carries no
// credentials after handling. A URL without callback parameters returns
// a nil event and the input unchanged.
func ExtractCallback(rawURL string) (*Event, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, rawURL, err
	}

	q := u.Query()
	code := q.Get(paramCode)
	errCode := q.Get(paramError)
	if code == "" && errCode == "" {
		return nil, rawURL, nil
	}

	var ev Event
	if code != "" {
		ev.Code = &AuthCode{Code: code, State: q.Get(paramState)}
	} else {
		ev.Err = &AuthError{Code: errCode, Description: q.Get(paramErrorDescription)}
	}

	q.Del(paramCode)
	q.Del(paramState)
	q.Del(paramError)
	q.Del(paramErrorDescription)
	u.RawQuery = q.Encode()

	return &ev, u.String(), nil
}
