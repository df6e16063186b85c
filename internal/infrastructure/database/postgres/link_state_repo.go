package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/creatorlink/internal/domain/repositories"
	"github.com/devilmonastery/creatorlink/internal/pkg/metrics"
)

// LinkStateRepository records redeemed state tokens so every instance sees
// the same redemption
type LinkStateRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewLinkStateRepository creates a new PostgreSQL link state repository
func NewLinkStateRepository(db *sqlx.DB) *LinkStateRepository {
	return &LinkStateRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "link_state")),
	}
}

var _ repositories.LinkStateRepository = (*LinkStateRepository)(nil)

// MarkSpent inserts the hash. A live row wins the conflict and nothing is
// written; an expired row is taken over.
func (r *LinkStateRepository) MarkSpent(ctx context.Context, stateHash string, expiresAt time.Time) (bool, error) {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("link_state", "mark_spent", time.Since(start), rowsAffected, err)
	}()

	if stateHash == "" {
		err = repositories.ErrInvalidStateHash
		return false, err
	}

	query := `
		INSERT INTO link_states (state_hash, spent_at, expires_at)
		VALUES ($1, NOW(), $2)
		ON CONFLICT (state_hash) DO UPDATE SET
			spent_at = NOW(),
			expires_at = EXCLUDED.expires_at
		WHERE link_states.expires_at <= NOW()
	`

	result, err := r.db.ExecContext(ctx, query, stateHash, expiresAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark link state spent: %w", err)
	}
	rowsAffected, _ = result.RowsAffected()

	if _, pruneErr := r.db.ExecContext(ctx, `DELETE FROM link_states WHERE expires_at <= NOW()`); pruneErr != nil {
		r.log.Warn("failed to prune expired link states", slog.String("error", pruneErr.Error()))
	}

	return rowsAffected == 1, nil
}
