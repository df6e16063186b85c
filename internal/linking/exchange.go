package linking

import (
	"context"

	"github.com/devilmonastery/creatorlink/internal/domain/entities"
)

// Exchanger trades an authorization code for the linked account's data.
// Implementations must not retry.
type Exchanger interface {
	Exchange(ctx context.Context, code, userID string) (*entities.LinkedAccount, error)
}

// ExchangeError carries a human-readable reason reported by the exchange
// collaborator
type ExchangeError struct {
	Reason string
	Err    error
}

func (e *ExchangeError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// ExchangerFunc adapts a function to Exchanger
type ExchangerFunc func(ctx context.Context, code, userID string) (*entities.LinkedAccount, error)

func (f ExchangerFunc) Exchange(ctx context.Context, code, userID string) (*entities.LinkedAccount, error) {
	return f(ctx, code, userID)
}
