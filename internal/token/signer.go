package token

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"time"

	"github.com/golang-jwt/jwt/v5"
	jose "gopkg.in/go-jose/go-jose.v2"

	"github.com/venalabs/authbridge/internal/identity"
)

// SessionCredential is the backend-minted token returned by a successful
// exchange. The client trades it for a session; it is never persisted.
type SessionCredential struct {
	Token     string    `json:"customToken"`
	UserID    string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// Signer mints and verifies the service's own session credentials.
type Signer struct {
	privateKey *rsa.PrivateKey
	keyID      string
	issuer     string
	ttl        time.Duration
}

// NewSigner generates a fresh RSA signing key. Credentials are
// short-lived, so key rotation happens naturally on restart.
func NewSigner(issuer string, ttl time.Duration) (*Signer, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &Signer{
		privateKey: privateKey,
		keyID:      "session-" + time.Now().UTC().Format("20060102"),
		issuer:     issuer,
		ttl:        ttl,
	}, nil
}

// Mint issues a session credential scoped to the given account.
func (s *Signer) Mint(user identity.User) (SessionCredential, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := jwt.MapClaims{
		"sub":       user.ID,
		"iss":       s.issuer,
		"aud":       s.issuer,
		"exp":       expiresAt.Unix(),
		"iat":       now.Unix(),
		"email":     user.Email,
		"anonymous": user.Anonymous,
	}
	if user.Role != "" {
		claims["role"] = user.Role
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.keyID

	signed, err := tok.SignedString(s.privateKey)
	if err != nil {
		return SessionCredential{}, err
	}

	return SessionCredential{Token: signed, UserID: user.ID, ExpiresAt: expiresAt}, nil
}

// SessionClaims is the verified content of a minted session credential.
type SessionClaims struct {
	UserID    string
	Email     string
	Role      string
	Anonymous bool
}

// VerifySession parses and validates a credential minted by this signer.
func (s *Signer) VerifySession(raw string) (SessionClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return &s.privateKey.PublicKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return SessionClaims{}, err
	}

	out := SessionClaims{}
	out.UserID, _ = claims.GetSubject()
	out.Email, _ = claims["email"].(string)
	out.Role, _ = claims["role"].(string)
	out.Anonymous, _ = claims["anonymous"].(bool)
	return out, nil
}

// Name implements Verifier. A caller that already holds a
// backend-recognized token short-circuits the exchange here.
func (s *Signer) Name() string { return "session" }

// Verify implements Verifier over the signer's own credentials.
func (s *Signer) Verify(_ context.Context, raw string) (Claims, error) {
	sc, err := s.VerifySession(raw)
	if err != nil {
		return Claims{}, err
	}
	return Claims{
		Issuer:        s.issuer,
		Audience:      []string{s.issuer},
		Subject:       sc.UserID,
		Email:         sc.Email,
		EmailVerified: true,
	}, nil
}

// JWKS publishes the verification key for the minted credentials.
func (s *Signer) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       &s.privateKey.PublicKey,
				KeyID:     s.keyID,
				Algorithm: "RS256",
				Use:       "sig",
			},
		},
	}
}
