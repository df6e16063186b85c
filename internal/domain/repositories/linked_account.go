package repositories

import (
	"context"

	"github.com/devilmonastery/creatorlink/internal/domain/entities"
)

// LinkedAccountRepository reads and writes the linked-account fields of a user's profile
type LinkedAccountRepository interface {
	// GetLinkedAccount returns the user's linked account, or nil if none is linked
	GetLinkedAccount(ctx context.Context, userID string) (*entities.LinkedAccount, error)

	// SaveLinkedAccount writes the linked account, replacing any existing one
	SaveLinkedAccount(ctx context.Context, userID string, account *entities.LinkedAccount) error

	// ClearLinkedAccount removes the linked account; clearing an unlinked profile succeeds
	ClearLinkedAccount(ctx context.Context, userID string) error
}
