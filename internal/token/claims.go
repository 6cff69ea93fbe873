package token

import "strings"

// Claims is the normalized identity asserted by a verified (or manually
// decoded) identity token.
type Claims struct {
	Issuer        string
	Audience      []string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Google issues tokens under both the bare-domain and full-URL issuer
// forms; both are accepted.
const (
	googleIssuer    = "accounts.google.com"
	googleIssuerURL = "https://accounts.google.com"
)

// trustedIssuer reports whether iss names the expected identity provider.
func trustedIssuer(iss string) bool {
	return iss == googleIssuer || iss == googleIssuerURL
}

// hasAudience reports whether the claim set names clientID among its
// audiences.
func hasAudience(aud []string, clientID string) bool {
	for _, a := range aud {
		if a == clientID {
			return true
		}
	}
	return false
}

// wellFormed reports whether raw has the three dot-separated segments of
// a signed token. Cheap shape check before any decode is attempted.
func wellFormed(raw string) bool {
	if raw == "" {
		return false
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts[:2] {
		if p == "" {
			return false
		}
	}
	return true
}
