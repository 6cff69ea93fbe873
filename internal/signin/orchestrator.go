// Package signin drives the client-side sign-in flow. It picks a
// strategy from the execution context: a standard browser completes an
// interactive provider popup, while an embedded webview must delegate to
// the native host and wait for the result on the bridge event channel.
package signin

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/venalabs/authbridge/internal/bridge"
	"github.com/venalabs/authbridge/internal/identity"
	"github.com/venalabs/authbridge/internal/state"
	"github.com/venalabs/authbridge/internal/webview"
)

// State is the orchestrator's current position in the sign-in flow.
type State int

const (
	StateIdle State = iota
	StateResolvingStrategy
	StateDelegatingToHost
	StatePopupFlow
	StateExchangingToken
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolvingStrategy:
		return "resolving-strategy"
	case StateDelegatingToHost:
		return "delegating-to-host"
	case StatePopupFlow:
		return "popup-flow"
	case StateExchangingToken:
		return "exchanging-token"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Flow errors surfaced to the caller for UI display. None are fatal.
var (
	ErrSignInInFlight        = &Error{Code: "sign_in_in_flight", Message: "a sign-in attempt is already in progress"}
	ErrHostBridgeUnavailable = &Error{Code: "host_bridge_unavailable", Message: "native sign-in bridge is not present"}
	ErrPopupDismissed        = &Error{Code: "popup_dismissed", Message: "sign-in popup was closed before completion"}
)

// Error is a sign-in flow failure.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

// BridgePolicy decides what a missing host bridge means. The original
// system logged and kept waiting, assuming production webviews always
// inject the bridge; strict mode fails fast instead.
type BridgePolicy int

const (
	// BridgePolicyLenient logs the missing bridge and keeps waiting for
	// an out-of-band event.
	BridgePolicyLenient BridgePolicy = iota
	// BridgePolicyStrict fails the attempt immediately.
	BridgePolicyStrict
)

// Exchanger is the HTTP boundary to the token-exchange service.
type Exchanger interface {
	ExchangeToken(ctx context.Context, identityToken string) (string, error)
	ExchangeCode(ctx context.Context, code, stateParam string) (string, error)
}

// SessionEstablisher turns a backend-minted credential into an
// authenticated identity. In production this is the identity service's
// credential sign-in.
type SessionEstablisher interface {
	SignInWithCredential(ctx context.Context, credential string) (*identity.User, error)
}

// PopupFlow runs the provider's interactive consent popup and hands the
// resulting identity straight to the identity service. Only usable in a
// standard browser.
type PopupFlow interface {
	SignIn(ctx context.Context) (*identity.User, error)
}

// Orchestrator selects and drives one sign-in strategy at a time.
type Orchestrator struct {
	env      webview.Context
	bus      *bridge.Bus
	host     bridge.HostBridge // nil when the host injects nothing
	policy   BridgePolicy
	popup    PopupFlow
	exchange Exchanger
	sessions SessionEstablisher
	store    *state.Store
	logger   *zap.Logger
	onDone   func(error)

	mu       sync.Mutex
	current  State
	inFlight bool
}

// Config wires an Orchestrator.
type Config struct {
	Environment webview.Context
	Bus         *bridge.Bus
	Host        bridge.HostBridge
	Policy      BridgePolicy
	Popup       PopupFlow
	Exchanger   Exchanger
	Sessions    SessionEstablisher
	Store       *state.Store
	Logger      *zap.Logger

	// OnComplete is invoked with the outcome of every attempt,
	// including ones that finish out-of-band after SignInWithGoogle has
	// already returned. It runs synchronously on the attempt's
	// goroutine and must not block. Optional.
	OnComplete func(error)
}

// New creates an Orchestrator in the idle state.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		env:      cfg.Environment,
		bus:      cfg.Bus,
		host:     cfg.Host,
		policy:   cfg.Policy,
		popup:    cfg.Popup,
		exchange: cfg.Exchanger,
		sessions: cfg.Sessions,
		store:    cfg.Store,
		logger:   cfg.Logger,
		onDone:   cfg.OnComplete,
		current:  StateIdle,
	}
}

func (o *Orchestrator) complete(err error) error {
	if o.onDone != nil {
		o.onDone(err)
	}
	return err
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight {
		return ErrSignInInFlight
	}
	o.inFlight = true
	o.current = StateResolvingStrategy
	return nil
}

func (o *Orchestrator) transition(s State) {
	o.mu.Lock()
	o.current = s
	o.mu.Unlock()
}

// finish records the terminal state and resets to idle so the flow can
// be retried.
func (o *Orchestrator) finish(terminal State) {
	o.mu.Lock()
	o.current = terminal
	o.inFlight = false
	if terminal == StateFailed {
		o.current = StateIdle
	}
	o.mu.Unlock()
}

// SignInWithGoogle runs the environment-appropriate Google sign-in.
//
// In a standard browser the popup flow runs to completion before this
// returns. In an embedded webview the call only fires the native bridge
// and returns; the result arrives out-of-band on the event channel and
// completion is observed through the auth state store (and OnComplete).
func (o *Orchestrator) SignInWithGoogle(ctx context.Context) error {
	if err := o.begin(); err != nil {
		return err
	}

	if o.env == webview.ContextEmbeddedWebView {
		return o.delegateToHost(ctx)
	}
	return o.runPopup(ctx)
}

// SignInWithIdentityToken exchanges a raw identity token directly.
func (o *Orchestrator) SignInWithIdentityToken(ctx context.Context, identityToken string) error {
	if err := o.begin(); err != nil {
		return err
	}

	o.transition(StateExchangingToken)
	credential, err := o.exchange.ExchangeToken(ctx, identityToken)
	if err != nil {
		o.logger.Warn("token exchange failed", zap.Error(err))
		o.finish(StateFailed)
		return o.complete(err)
	}
	return o.complete(o.establish(ctx, credential))
}

// delegateToHost fires the native bridge, then waits in the background
// for the out-of-band result. A missing bridge is logged, not thrown:
// the result may still arrive via a deep-link relaunch. No timeout is
// enforced; a hung host leaves the flow in delegating-to-host until the
// context is cancelled.
func (o *Orchestrator) delegateToHost(ctx context.Context) error {
	o.transition(StateDelegatingToHost)

	if o.host == nil {
		o.logger.Warn("native sign-in bridge unavailable", zap.String("error", ErrHostBridgeUnavailable.Code))
		if o.policy == BridgePolicyStrict {
			o.finish(StateFailed)
			return o.complete(ErrHostBridgeUnavailable)
		}
	} else if err := o.host.RequestNativeSignIn(); err != nil {
		o.logger.Warn("native sign-in request failed", zap.Error(err))
	}

	go o.awaitHostResult(ctx)
	return nil
}

func (o *Orchestrator) awaitHostResult(ctx context.Context) {
	select {
	case ev := <-o.bus.Events():
		if ev.Err != nil {
			o.logger.Warn("native sign-in reported error",
				zap.String("code", ev.Err.Code),
				zap.String("description", ev.Err.Description))
			o.finish(StateFailed)
			o.complete(&Error{Code: ev.Err.Code, Message: ev.Err.Description})
			return
		}

		if ev.Code == nil {
			o.logger.Warn("bridge event carried neither code nor error")
			o.finish(StateFailed)
			o.complete(&Error{Code: "invalid_bridge_event", Message: "native layer delivered an empty sign-in event"})
			return
		}

		o.transition(StateExchangingToken)
		credential, err := o.exchange.ExchangeCode(ctx, ev.Code.Code, ev.Code.State)
		if err != nil {
			o.logger.Warn("authorization code exchange failed", zap.Error(err))
			o.finish(StateFailed)
			o.complete(err)
			return
		}
		o.complete(o.establish(ctx, credential))

	case <-ctx.Done():
		o.finish(StateFailed)
		o.complete(ctx.Err())
	}
}

// runPopup drives the interactive consent popup. The provider credential
// is consumed directly by the identity service; no exchange call is
// needed on this path. The user closing the popup surfaces as a
// reported, non-fatal failure.
func (o *Orchestrator) runPopup(ctx context.Context) error {
	o.transition(StatePopupFlow)

	user, err := o.popup.SignIn(ctx)
	if err != nil {
		o.logger.Info("popup sign-in did not complete", zap.Error(err))
		o.finish(StateFailed)
		return o.complete(err)
	}

	o.store.SetUser(user)
	o.finish(StateAuthenticated)
	return o.complete(nil)
}

func (o *Orchestrator) establish(ctx context.Context, credential string) error {
	user, err := o.sessions.SignInWithCredential(ctx, credential)
	if err != nil {
		o.logger.Warn("credential sign-in failed", zap.Error(err))
		o.finish(StateFailed)
		return err
	}

	o.store.SetUser(user)
	o.finish(StateAuthenticated)
	return nil
}
