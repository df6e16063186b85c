package linking

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"
)

// CSRFStateKey is the store key holding the outstanding CSRF token
const CSRFStateKey = "link_csrf_state"

// tokenBytes gives 256 bits of entropy
const tokenBytes = 32

// Verdict is the result of checking a callback's state parameter
type Verdict int

const (
	Invalid Verdict = iota
	Valid
)

func (v Verdict) String() string {
	if v == Valid {
		return "valid"
	}
	return "invalid"
}

// TokenStore issues and verifies one-time CSRF tokens
type TokenStore struct {
	store  Store
	ledger StateLedger
	ttl    time.Duration
}

// NewTokenStore creates a TokenStore persisting into store
func NewTokenStore(store Store) *TokenStore {
	return &TokenStore{store: store}
}

// WithLedger makes every matching token redeemable once across all requests
// presenting it, for ttl after redemption. Without a ledger a token is only
// one-shot within the store that holds it.
func (t *TokenStore) WithLedger(ledger StateLedger, ttl time.Duration) *TokenStore {
	t.ledger = ledger
	t.ttl = ttl
	return t
}

// Issue mints a new token, replacing any outstanding one
func (t *TokenStore) Issue(ctx context.Context) (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(b)

	if err := t.store.Set(ctx, CSRFStateKey, token); err != nil {
		return "", fmt.Errorf("failed to persist state token: %w", err)
	}
	return token, nil
}

// VerifyAndConsume compares received against the stored token and deletes the
// stored token whatever the outcome. A matching token already redeemed in the
// ledger is Invalid with ErrStateSpent. A store or ledger error is returned
// alongside Invalid so the caller fails closed.
func (t *TokenStore) VerifyAndConsume(ctx context.Context, received string) (Verdict, error) {
	stored, ok, err := t.take(ctx)
	if err != nil {
		return Invalid, err
	}
	if !ok || stored == "" || received == "" {
		return Invalid, nil
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(received)) != 1 {
		return Invalid, nil
	}

	if t.ledger != nil {
		first, err := t.ledger.MarkSpent(ctx, HashState(received), time.Now().Add(t.ttl))
		if err != nil {
			return Invalid, fmt.Errorf("failed to record state token: %w", err)
		}
		if !first {
			return Invalid, ErrStateSpent
		}
	}
	return Valid, nil
}

func (t *TokenStore) take(ctx context.Context) (string, bool, error) {
	if taker, ok := t.store.(Taker); ok {
		return taker.Take(ctx, CSRFStateKey)
	}

	stored, ok, getErr := t.store.Get(ctx, CSRFStateKey)
	if err := t.store.Delete(ctx, CSRFStateKey); err != nil {
		return "", false, fmt.Errorf("failed to consume state token: %w", err)
	}
	if getErr != nil {
		return "", false, fmt.Errorf("failed to read state token: %w", getErr)
	}
	return stored, ok, nil
}
