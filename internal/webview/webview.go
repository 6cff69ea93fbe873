// Package webview classifies the execution environment of a client from
// its user-agent string. Embedded Android WebViews cannot complete an
// interactive OAuth popup, so the sign-in flow must know which world it
// is running in before picking a strategy.
package webview

import "strings"

// Context is the derived execution-context classification.
type Context int

const (
	// ContextStandardBrowser is a full browser with popup capability.
	ContextStandardBrowser Context = iota
	// ContextEmbeddedWebView is an in-app browser control. Interactive
	// provider popups are blocked or rejected there.
	ContextEmbeddedWebView
)

func (c Context) String() string {
	if c == ContextEmbeddedWebView {
		return "embedded-webview"
	}
	return "standard-browser"
}

// Classify inspects the user-agent string and tags the environment.
//
// A UA carrying the "wv" wrapper token is an Android System WebView.
// Older embedded Chrome builds omit the token but still ship the mobile
// "Version/x.y" engine marker alongside the Android marker, which a full
// Chrome browser UA never does. An empty UA (non-browser execution)
// degrades to standard-browser.
func Classify(userAgent string) Context {
	if userAgent == "" {
		return ContextStandardBrowser
	}
	if strings.Contains(userAgent, "wv") {
		return ContextEmbeddedWebView
	}
	if strings.Contains(userAgent, "Android") && strings.Contains(userAgent, "Version/") {
		return ContextEmbeddedWebView
	}
	return ContextStandardBrowser
}
