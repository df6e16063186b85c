package linking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/devilmonastery/creatorlink/internal/domain/entities"
	"github.com/devilmonastery/creatorlink/internal/domain/repositories"
	"github.com/devilmonastery/creatorlink/internal/pkg/metrics"
)

// ConnectionState is what the status display shows
type ConnectionState string

const (
	NotLinked ConnectionState = "not_linked"
	Linked    ConnectionState = "linked"
	Checking  ConnectionState = "checking"
)

// ConnectionStatus is the rendered connection state for one user
type ConnectionStatus struct {
	State   ConnectionState         `json:"state"`
	Account *entities.LinkedAccount `json:"account,omitempty"`
}

// StatusService reads linked-account state for display. Cached entries are
// evicted whenever a callback for the user starts or finishes, so a cached
// Linked is never shown after a relink attempt without rereading the store.
type StatusService struct {
	accounts repositories.LinkedAccountRepository
	cache    *expirable.LRU[string, ConnectionStatus]
	log      *slog.Logger

	mu       sync.Mutex
	inFlight map[string]int

	// bumped on every eviction; a read that raced any eviction is not cached
	generation uint64
}

// NewStatusService creates a status service with an LRU of size entries
func NewStatusService(accounts repositories.LinkedAccountRepository, size int, ttl time.Duration, log *slog.Logger) *StatusService {
	if log == nil {
		log = slog.Default()
	}
	if size <= 0 {
		size = 1024
	}
	return &StatusService{
		accounts: accounts,
		cache:    expirable.NewLRU[string, ConnectionStatus](size, nil, ttl),
		log:      log.With(slog.String("component", "link_status")),
		inFlight: make(map[string]int),
	}
}

var _ CompletionObserver = (*StatusService)(nil)

// Status returns the user's connection state
func (s *StatusService) Status(ctx context.Context, userID string) (ConnectionStatus, error) {
	if userID == "" {
		return ConnectionStatus{}, newLinkError(KindNotAuthenticated, "")
	}

	inFlight, gen := s.snapshot(userID)
	if inFlight {
		return ConnectionStatus{State: Checking}, nil
	}

	if cached, ok := s.cache.Get(userID); ok {
		metrics.StatusCache.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.StatusCache.WithLabelValues("miss").Inc()

	account, err := s.accounts.GetLinkedAccount(ctx, userID)
	if err != nil {
		return ConnectionStatus{}, fmt.Errorf("failed to read linked account: %w", err)
	}

	status := ConnectionStatus{State: NotLinked}
	if account != nil {
		status = ConnectionStatus{State: Linked, Account: account}
	}

	inFlight, latest := s.snapshot(userID)
	if inFlight {
		return ConnectionStatus{State: Checking}, nil
	}
	if latest == gen {
		s.cache.Add(userID, status)
	}
	return status, nil
}

// Disconnect clears the user's linked account. Disconnecting an unlinked
// user succeeds.
func (s *StatusService) Disconnect(ctx context.Context, userID string) error {
	if userID == "" {
		return newLinkError(KindNotAuthenticated, "")
	}
	if err := s.accounts.ClearLinkedAccount(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear linked account: %w", err)
	}
	s.evict(userID)
	s.log.Info("linked account disconnected", slog.String("user_id", userID))
	return nil
}

// LinkStarted marks a callback as in flight for the user
func (s *StatusService) LinkStarted(userID string) {
	s.mu.Lock()
	s.inFlight[userID]++
	s.mu.Unlock()
	s.evict(userID)
}

// LinkFinished ends the in-flight mark and drops any cached state
func (s *StatusService) LinkFinished(userID string, outcome Outcome) {
	s.mu.Lock()
	if n := s.inFlight[userID]; n <= 1 {
		delete(s.inFlight, userID)
	} else {
		s.inFlight[userID] = n - 1
	}
	s.mu.Unlock()
	s.evict(userID)
	s.log.Debug("link finished, status cache reconciled",
		slog.String("user_id", userID),
		slog.String("outcome", outcome.Label()))
}

func (s *StatusService) snapshot(userID string) (bool, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[userID] > 0, s.generation
}

func (s *StatusService) evict(userID string) {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
	if s.cache.Remove(userID) {
		metrics.StatusCache.WithLabelValues("evict").Inc()
	}
}
