package token

import "fmt"

// Error represents a token-exchange failure with a stable code the HTTP
// layer maps onto status codes and response bodies.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on the stable code so wrapped instances compare equal to
// their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithCause returns a copy of the error carrying the underlying cause
// for diagnostics.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, cause: cause}
}

// Exchange failure taxonomy.
var (
	ErrInvalidTokenFormat = &Error{Code: "invalid_token_format", Message: "identity token is not a well-formed three-segment token"}
	ErrVerificationFailed = &Error{Code: "verification_failed", Message: "identity token could not be verified"}
	ErrUntrustedIssuer    = &Error{Code: "untrusted_issuer", Message: "identity token issuer is not trusted"}
	ErrAudienceMismatch   = &Error{Code: "audience_mismatch", Message: "identity token audience does not match the configured client"}
	ErrMissingEmail       = &Error{Code: "missing_email", Message: "identity token carries no email claim"}
)
