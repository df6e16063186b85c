package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/creatorlink/internal/domain/entities"
	"github.com/devilmonastery/creatorlink/internal/domain/repositories"
	"github.com/devilmonastery/creatorlink/internal/pkg/metrics"
)

// LinkedAccountRepository stores linked accounts as columns on the profiles table
type LinkedAccountRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewLinkedAccountRepository creates a new PostgreSQL linked account repository
func NewLinkedAccountRepository(db *sqlx.DB) *LinkedAccountRepository {
	return &LinkedAccountRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "linked_account")),
	}
}

var _ repositories.LinkedAccountRepository = (*LinkedAccountRepository)(nil)

// linkedAccountRow is the profile's link columns; all nullable because a
// profile may exist without a link
type linkedAccountRow struct {
	ExternalID       sql.NullString `db:"tiktok_open_id"`
	ExternalUsername sql.NullString `db:"tiktok_username"`
	Handle           sql.NullString `db:"tiktok_handle"`
	Followers        sql.NullInt64  `db:"tiktok_followers"`
	Following        sql.NullInt64  `db:"tiktok_following"`
	Likes            sql.NullInt64  `db:"tiktok_likes"`
	Videos           sql.NullInt64  `db:"tiktok_videos"`
	Verified         sql.NullBool   `db:"tiktok_verified"`
	LinkedAt         sql.NullTime   `db:"tiktok_linked_at"`
}

func (r *linkedAccountRow) toEntity() *entities.LinkedAccount {
	if !r.ExternalID.Valid {
		return nil
	}
	return &entities.LinkedAccount{
		ExternalID:       r.ExternalID.String,
		ExternalUsername: r.ExternalUsername.String,
		Handle:           r.Handle.String,
		Metrics: entities.AccountMetrics{
			Followers: r.Followers.Int64,
			Following: r.Following.Int64,
			Likes:     r.Likes.Int64,
			Videos:    r.Videos.Int64,
			Verified:  r.Verified.Bool,
		},
		LinkedAt: r.LinkedAt.Time,
	}
}

// GetLinkedAccount returns the user's linked account, or nil if none is linked
func (r *LinkedAccountRepository) GetLinkedAccount(ctx context.Context, userID string) (*entities.LinkedAccount, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("linked_account", "get", time.Since(start), rowCount, err)
	}()

	if userID == "" {
		err = repositories.ErrInvalidUserID
		return nil, err
	}

	query := `
		SELECT tiktok_open_id, tiktok_username, tiktok_handle,
		       tiktok_followers, tiktok_following, tiktok_likes, tiktok_videos,
		       tiktok_verified, tiktok_linked_at
		FROM profiles
		WHERE user_id = $1
	`

	var row linkedAccountRow
	err = r.db.GetContext(ctx, &row, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get linked account: %w", err)
	}

	rowCount = 1
	return row.toEntity(), nil
}

// SaveLinkedAccount upserts the link columns for the user's profile
func (r *LinkedAccountRepository) SaveLinkedAccount(ctx context.Context, userID string, account *entities.LinkedAccount) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("linked_account", "save", time.Since(start), rowsAffected, err)
	}()

	if userID == "" {
		err = repositories.ErrInvalidUserID
		return err
	}
	if account == nil || account.ExternalID == "" {
		err = repositories.ErrInvalidAccount
		return err
	}

	linkedAt := account.LinkedAt
	if linkedAt.IsZero() {
		linkedAt = time.Now().UTC()
	}

	r.log.Debug("saving linked account",
		slog.String("user_id", userID),
		slog.String("external_id", account.ExternalID))

	query := `
		INSERT INTO profiles (
			user_id, tiktok_open_id, tiktok_username, tiktok_handle,
			tiktok_followers, tiktok_following, tiktok_likes, tiktok_videos,
			tiktok_verified, tiktok_linked_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			tiktok_open_id = EXCLUDED.tiktok_open_id,
			tiktok_username = EXCLUDED.tiktok_username,
			tiktok_handle = EXCLUDED.tiktok_handle,
			tiktok_followers = EXCLUDED.tiktok_followers,
			tiktok_following = EXCLUDED.tiktok_following,
			tiktok_likes = EXCLUDED.tiktok_likes,
			tiktok_videos = EXCLUDED.tiktok_videos,
			tiktok_verified = EXCLUDED.tiktok_verified,
			tiktok_linked_at = EXCLUDED.tiktok_linked_at,
			updated_at = NOW()
	`

	result, err := r.db.ExecContext(ctx, query,
		userID,
		account.ExternalID,
		account.ExternalUsername,
		account.Handle,
		account.Metrics.Followers,
		account.Metrics.Following,
		account.Metrics.Likes,
		account.Metrics.Videos,
		account.Metrics.Verified,
		linkedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save linked account: %w", err)
	}

	rowsAffected, _ = result.RowsAffected()
	account.LinkedAt = linkedAt
	return nil
}

// ClearLinkedAccount nulls the link columns; a missing profile is not an error
func (r *LinkedAccountRepository) ClearLinkedAccount(ctx context.Context, userID string) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("linked_account", "clear", time.Since(start), rowsAffected, err)
	}()

	if userID == "" {
		err = repositories.ErrInvalidUserID
		return err
	}

	query := `
		UPDATE profiles SET
			tiktok_open_id = NULL,
			tiktok_username = NULL,
			tiktok_handle = NULL,
			tiktok_followers = NULL,
			tiktok_following = NULL,
			tiktok_likes = NULL,
			tiktok_videos = NULL,
			tiktok_verified = NULL,
			tiktok_linked_at = NULL,
			updated_at = NOW()
		WHERE user_id = $1 AND tiktok_open_id IS NOT NULL
	`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to clear linked account: %w", err)
	}

	rowsAffected, _ = result.RowsAffected()
	return nil
}
