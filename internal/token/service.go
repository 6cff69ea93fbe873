package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/venalabs/authbridge/internal/identity"
)

// ErrInvalidCredentials is returned when password sign-in fails.
var ErrInvalidCredentials = &Error{Code: "invalid_credentials", Message: "invalid email or password"}

// Service exchanges third-party identity tokens for backend session
// credentials, resolving or creating the matching account on the way.
type Service struct {
	verifiers []Verifier
	users     identity.Store
	signer    *Signer
	logger    *zap.Logger
}

// NewService wires the exchange service. Verifiers are attempted in the
// given order; typically the session verifier first, then the provider's
// native verifier, then the unverified-claims fallback.
func NewService(users identity.Store, signer *Signer, logger *zap.Logger, verifiers ...Verifier) *Service {
	return &Service{
		verifiers: verifiers,
		users:     users,
		signer:    signer,
		logger:    logger,
	}
}

// Signer exposes the credential signer for JWKS publication and session
// verification middleware.
func (s *Service) Signer() *Signer { return s.signer }

// Exchange verifies an identity token and mints a session credential for
// the resolved account, creating the account on first sign-in. Nothing
// is retried; the caller owns retry policy.
func (s *Service) Exchange(ctx context.Context, identityToken string) (SessionCredential, error) {
	if !wellFormed(identityToken) {
		return SessionCredential{}, ErrInvalidTokenFormat
	}

	claims, verr := s.verify(ctx, identityToken)
	if verr != nil {
		return SessionCredential{}, verr
	}

	if claims.Email == "" {
		return SessionCredential{}, ErrMissingEmail
	}

	user, err := s.resolveAccount(ctx, claims)
	if err != nil {
		return SessionCredential{}, ErrVerificationFailed.WithCause(err)
	}

	cred, err := s.signer.Mint(user)
	if err != nil {
		return SessionCredential{}, ErrVerificationFailed.WithCause(err)
	}

	s.logger.Info("identity token exchanged",
		zap.String("user_id", user.ID),
		zap.String("issuer", claims.Issuer))
	return cred, nil
}

// verify runs the ordered strategy list. The typed errors produced by
// claim validation take precedence over a generic verification failure
// so callers see the precise diagnosis.
func (s *Service) verify(ctx context.Context, raw string) (Claims, error) {
	var causes []error
	for _, v := range s.verifiers {
		claims, err := v.Verify(ctx, raw)
		if err == nil {
			return claims, nil
		}
		s.logger.Debug("token verification strategy failed",
			zap.String("strategy", v.Name()),
			zap.Error(err))
		causes = append(causes, fmt.Errorf("%s: %w", v.Name(), err))
	}

	joined := errors.Join(causes...)
	for _, sentinel := range []*Error{ErrUntrustedIssuer, ErrAudienceMismatch, ErrMissingEmail} {
		if errors.Is(joined, sentinel) {
			return Claims{}, sentinel.WithCause(joined)
		}
	}
	return Claims{}, ErrVerificationFailed.WithCause(joined)
}

// resolveAccount finds the account keyed by the token's email or creates
// one from the token's profile claims.
func (s *Service) resolveAccount(ctx context.Context, claims Claims) (identity.User, error) {
	user, err := s.users.GetByEmail(ctx, claims.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		return identity.User{}, err
	}

	user = identity.User{
		ID:            uuid.NewString(),
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		DisplayName:   claims.Name,
		PhotoURL:      claims.Picture,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return identity.User{}, err
	}

	s.logger.Info("account created from identity token",
		zap.String("user_id", user.ID))
	return user, nil
}

// SignInAnonymously mints a credential for a fresh anonymous account.
func (s *Service) SignInAnonymously(ctx context.Context) (SessionCredential, identity.User, error) {
	user := identity.User{
		ID:        uuid.NewString(),
		Anonymous: true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return SessionCredential{}, identity.User{}, err
	}

	cred, err := s.signer.Mint(user)
	if err != nil {
		return SessionCredential{}, identity.User{}, err
	}
	return cred, user, nil
}

// RegisterPassword creates an email/password account and signs it in.
func (s *Service) RegisterPassword(ctx context.Context, email, password, displayName string) (SessionCredential, identity.User, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return SessionCredential{}, identity.User{}, &Error{Code: "email_taken", Message: "an account with this email already exists"}
	} else if !errors.Is(err, identity.ErrNotFound) {
		return SessionCredential{}, identity.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return SessionCredential{}, identity.User{}, err
	}

	user := identity.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return SessionCredential{}, identity.User{}, err
	}

	cred, err := s.signer.Mint(user)
	if err != nil {
		return SessionCredential{}, identity.User{}, err
	}
	return cred, user, nil
}

// LoginPassword verifies an email/password pair and mints a credential.
func (s *Service) LoginPassword(ctx context.Context, email, password string) (SessionCredential, identity.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return SessionCredential{}, identity.User{}, ErrInvalidCredentials
		}
		return SessionCredential{}, identity.User{}, err
	}

	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return SessionCredential{}, identity.User{}, ErrInvalidCredentials
	}

	cred, err := s.signer.Mint(user)
	if err != nil {
		return SessionCredential{}, identity.User{}, err
	}
	return cred, user, nil
}

// GetUser loads the account for a verified session.
func (s *Service) GetUser(ctx context.Context, userID string) (identity.User, error) {
	return s.users.GetByID(ctx, userID)
}
