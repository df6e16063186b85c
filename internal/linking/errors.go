package linking

import "fmt"

// FailureKind classifies why a link attempt did not succeed
type FailureKind string

const (
	KindNotAuthenticated  FailureKind = "not_authenticated"
	KindMalformedCallback FailureKind = "malformed_callback"
	KindProviderDenied    FailureKind = "provider_denied"
	KindCsrfViolation     FailureKind = "csrf_violation"
	KindSessionExpired    FailureKind = "session_expired"
	KindExchangeFailed    FailureKind = "exchange_failed"
	KindCancelled         FailureKind = "cancelled"
)

// LinkError is a terminal failure of the linking flow
type LinkError struct {
	Kind   FailureKind
	Detail string
}

func (e *LinkError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("link failed: %s", e.Kind)
	}
	return fmt.Sprintf("link failed: %s: %s", e.Kind, e.Detail)
}

// Is matches on Kind so errors.Is(err, ErrCsrfViolation) works for any detail
func (e *LinkError) Is(target error) bool {
	t, ok := target.(*LinkError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is comparisons
var (
	ErrNotAuthenticated  = &LinkError{Kind: KindNotAuthenticated}
	ErrMalformedCallback = &LinkError{Kind: KindMalformedCallback}
	ErrProviderDenied    = &LinkError{Kind: KindProviderDenied}
	ErrCsrfViolation     = &LinkError{Kind: KindCsrfViolation}
	ErrSessionExpired    = &LinkError{Kind: KindSessionExpired}
	ErrExchangeFailed    = &LinkError{Kind: KindExchangeFailed}
	ErrCancelled         = &LinkError{Kind: KindCancelled}
)

func newLinkError(kind FailureKind, detail string) *LinkError {
	return &LinkError{Kind: kind, Detail: detail}
}

// Message is the user-facing text for a failure kind. CsrfViolation never
// says which part of the check failed.
func (k FailureKind) Message() string {
	switch k {
	case KindNotAuthenticated:
		return "Please sign in before linking an account."
	case KindMalformedCallback:
		return "The provider returned an incomplete response. Please try linking again."
	case KindProviderDenied:
		return "Authorization was declined at the provider."
	case KindCsrfViolation:
		return "This link request could not be verified. Please start again from your dashboard."
	case KindSessionExpired:
		return "Your session expired while linking. Please sign in and try again."
	case KindExchangeFailed:
		return "We could not complete the link with the provider."
	case KindCancelled:
		return "The link request was interrupted. Please try again."
	default:
		return "Linking failed."
	}
}
