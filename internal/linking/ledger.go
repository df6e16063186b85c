package linking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrStateSpent is returned when a state token has already been redeemed
var ErrStateSpent = errors.New("state token already used")

// StateLedger remembers redeemed state tokens on the server. MarkSpent
// atomically records stateHash and reports false if it was already recorded
// and has not expired.
type StateLedger interface {
	MarkSpent(ctx context.Context, stateHash string, expiresAt time.Time) (bool, error)
}

// HashState is the ledger key for a state token; raw tokens are never stored
func HashState(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// MemoryStateLedger is a StateLedger for a single process
type MemoryStateLedger struct {
	mu    sync.Mutex
	spent *expirable.LRU[string, time.Time]
}

// NewMemoryStateLedger keeps up to size hashes for at most ttl each
func NewMemoryStateLedger(size int, ttl time.Duration) *MemoryStateLedger {
	if size <= 0 {
		size = 100_000
	}
	return &MemoryStateLedger{spent: expirable.NewLRU[string, time.Time](size, nil, ttl)}
}

var _ StateLedger = (*MemoryStateLedger)(nil)

func (l *MemoryStateLedger) MarkSpent(_ context.Context, stateHash string, expiresAt time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.spent.Get(stateHash); ok && time.Now().Before(until) {
		return false, nil
	}
	l.spent.Add(stateHash, expiresAt)
	return true, nil
}
