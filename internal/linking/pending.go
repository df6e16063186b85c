package linking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// PendingLinkKey is the store key holding the initiating user's ID
const PendingLinkKey = "link_pending_user"

// PendingLink records which user started a link attempt
type PendingLink struct {
	UserID string
}

// Scope names a persistence scope of the pending record
type Scope string

const (
	// ScopeShort ends with the browsing session
	ScopeShort Scope = "short"
	// ScopeLong survives across tabs and redirects
	ScopeLong Scope = "long"
)

// PendingLinkRepository persists the pending record across the provider redirect
type PendingLinkRepository interface {
	Put(ctx context.Context, record PendingLink) error
	// Get returns the record and the scope it was found in
	Get(ctx context.Context) (PendingLink, Scope, bool, error)
	Clear(ctx context.Context) error
}

// DualScopeRepository writes through to two independent stores and reads
// the short scope first
type DualScopeRepository struct {
	short Store
	long  Store
	log   *slog.Logger
}

// NewDualScopeRepository creates a repository over the short and long scopes
func NewDualScopeRepository(short, long Store, log *slog.Logger) *DualScopeRepository {
	if log == nil {
		log = slog.Default()
	}
	return &DualScopeRepository{
		short: short,
		long:  long,
		log:   log.With(slog.String("component", "pending_link")),
	}
}

var _ PendingLinkRepository = (*DualScopeRepository)(nil)

// Put writes the record to both scopes. Losing one scope is tolerated.
func (r *DualScopeRepository) Put(ctx context.Context, record PendingLink) error {
	if record.UserID == "" {
		return errors.New("pending link requires a user id")
	}

	shortErr := r.short.Set(ctx, PendingLinkKey, record.UserID)
	if shortErr != nil {
		r.log.Warn("failed to write pending link to short scope", slog.Any("error", shortErr))
	}
	longErr := r.long.Set(ctx, PendingLinkKey, record.UserID)
	if longErr != nil {
		r.log.Warn("failed to write pending link to long scope", slog.Any("error", longErr))
	}

	if shortErr != nil && longErr != nil {
		return fmt.Errorf("failed to write pending link: %w", errors.Join(shortErr, longErr))
	}
	return nil
}

// Get reads the short scope, then the long scope
func (r *DualScopeRepository) Get(ctx context.Context) (PendingLink, Scope, bool, error) {
	if userID, ok, err := r.short.Get(ctx, PendingLinkKey); err != nil {
		r.log.Warn("failed to read pending link from short scope", slog.Any("error", err))
	} else if ok && userID != "" {
		return PendingLink{UserID: userID}, ScopeShort, true, nil
	}

	userID, ok, err := r.long.Get(ctx, PendingLinkKey)
	if err != nil {
		return PendingLink{}, "", false, fmt.Errorf("failed to read pending link: %w", err)
	}
	if !ok || userID == "" {
		return PendingLink{}, "", false, nil
	}
	return PendingLink{UserID: userID}, ScopeLong, true, nil
}

// Clear deletes the record from both scopes
func (r *DualScopeRepository) Clear(ctx context.Context) error {
	return errors.Join(
		r.short.Delete(ctx, PendingLinkKey),
		r.long.Delete(ctx, PendingLinkKey),
	)
}
