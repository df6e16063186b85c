package repositories

import (
	"context"
	"time"
)

// LinkStateRepository records redeemed account-link state tokens by hash
type LinkStateRepository interface {
	// MarkSpent inserts stateHash and reports false if an unexpired row exists
	MarkSpent(ctx context.Context, stateHash string, expiresAt time.Time) (bool, error)
}
