// Package oauth completes the authorization-code flow used by the
// native-bridge sign-in path. The host shell obtains a code through
// platform-native UI; the server exchanges it here and feeds the
// resulting identity token into the regular token exchange.
package oauth

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrNoIDToken is returned when the provider's token response carries no
// identity token.
var ErrNoIDToken = errors.New("oauth: provider response carries no id_token")

// CodeExchanger trades a Google authorization code for an identity token.
type CodeExchanger struct {
	conf *oauth2.Config
}

// NewGoogleCodeExchanger builds the exchanger from the configured OAuth
// client. The redirect URL must match the one the native layer used.
func NewGoogleCodeExchanger(clientID, clientSecret, redirectURL string) *CodeExchanger {
	return &CodeExchanger{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "profile", "email"},
		},
	}
}

// AuthCodeURL returns the provider consent URL for the given state.
func (e *CodeExchanger) AuthCodeURL(state string) string {
	return e.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange redeems the authorization code and returns the raw identity
// token from the provider's response.
func (e *CodeExchanger) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := e.conf.Exchange(ctx, code)
	if err != nil {
		return "", err
	}

	idToken, ok := tok.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", ErrNoIDToken
	}
	return idToken, nil
}
