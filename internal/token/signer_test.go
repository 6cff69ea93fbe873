package token

import (
	"testing"
	"time"

	"github.com/venalabs/authbridge/internal/identity"
)

func TestSignerMintAndVerify(t *testing.T) {
	signer, err := NewSigner("vena-auth", time.Hour)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	user := identity.User{ID: "u-1", Email: "pat@example.com", Role: "tester"}
	cred, err := signer.Mint(user)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if cred.UserID != "u-1" || cred.ExpiresAt.Before(time.Now()) {
		t.Fatalf("unexpected credential: %+v", cred)
	}

	sc, err := signer.VerifySession(cred.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sc.UserID != "u-1" || sc.Email != "pat@example.com" || sc.Role != "tester" {
		t.Fatalf("unexpected claims: %+v", sc)
	}
}

func TestSignerRejectsExpiredCredential(t *testing.T) {
	signer, err := NewSigner("vena-auth", -time.Minute)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	cred, err := signer.Mint(identity.User{ID: "u-1"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := signer.VerifySession(cred.Token); err == nil {
		t.Fatal("expected expired credential to be rejected")
	}
}

func TestSignerRejectsForeignToken(t *testing.T) {
	a, _ := NewSigner("vena-auth", time.Hour)
	b, _ := NewSigner("vena-auth", time.Hour)

	cred, err := a.Mint(identity.User{ID: "u-1"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := b.VerifySession(cred.Token); err == nil {
		t.Fatal("expected token signed by another key to be rejected")
	}
}

func TestSignerPublishesJWKS(t *testing.T) {
	signer, err := NewSigner("vena-auth", time.Hour)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	ks := signer.JWKS()
	if len(ks.Keys) != 1 {
		t.Fatalf("expected one key, have %d", len(ks.Keys))
	}
	key := ks.Keys[0]
	if key.Algorithm != "RS256" || key.Use != "sig" || key.KeyID == "" {
		t.Fatalf("unexpected key metadata: %+v", key)
	}
}
