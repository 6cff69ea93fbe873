package bridge

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestBusDeliversLatestEvent(t *testing.T) {
	bus := NewBus(zap.NewNop())

	bus.Publish(Event{Code: &AuthCode{Code: "stale", State: "s1"}})
	bus.Publish(Event{Code: &AuthCode{Code: "fresh", State: "s2"}})

	select {
	case ev := <-bus.Events():
		if ev.Code == nil || ev.Code.Code != "fresh" {
			t.Fatalf("expected fresh event, got %+v", ev)
		}
	default:
		t.Fatal("expected an event on the bus")
	}
}

func TestExtractCallbackSuccess(t *testing.T) {
	ev, cleaned, err := ExtractCallback("https://app.vena.health/scan?code=abc123&state=xyz&tab=history")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ev == nil || ev.Code == nil {
		t.Fatalf("expected auth code event, got %+v", ev)
	}
	if ev.Code.Code != "abc123" || ev.Code.State != "xyz" {
		t.Fatalf("unexpected payload: %+v", ev.Code)
	}
	if strings.Contains(cleaned, "code=") || strings.Contains(cleaned, "state=") {
		t.Fatalf("credentials left in URL: %s", cleaned)
	}
	if !strings.Contains(cleaned, "tab=history") {
		t.Fatalf("unrelated parameters stripped: %s", cleaned)
	}
}

func TestExtractCallbackError(t *testing.T) {
	ev, cleaned, err := ExtractCallback("https://app.vena.health/?error=access_denied&error_description=user+cancelled")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ev == nil || ev.Err == nil {
		t.Fatalf("expected auth error event, got %+v", ev)
	}
	if ev.Err.Code != "access_denied" || ev.Err.Description != "user cancelled" {
		t.Fatalf("unexpected payload: %+v", ev.Err)
	}
	if strings.Contains(cleaned, "error") {
		t.Fatalf("error parameters left in URL: %s", cleaned)
	}
}

func TestExtractCallbackNoParams(t *testing.T) {
	raw := "https://app.vena.health/scan?tab=history"
	ev, cleaned, err := ExtractCallback(raw)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ev != nil {
		t.Fatalf("expected no event, got %+v", ev)
	}
	if cleaned != raw {
		t.Fatalf("URL modified without callback params: %s", cleaned)
	}
}
