package linking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/creatorlink/internal/domain/entities"
)

var discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type mockExchanger struct {
	mock.Mock
}

func (m *mockExchanger) Exchange(ctx context.Context, code, userID string) (*entities.LinkedAccount, error) {
	args := m.Called(ctx, code, userID)
	account, _ := args.Get(0).(*entities.LinkedAccount)
	return account, args.Error(1)
}

type mockAccountRepo struct {
	mock.Mock
}

func (m *mockAccountRepo) GetLinkedAccount(ctx context.Context, userID string) (*entities.LinkedAccount, error) {
	args := m.Called(ctx, userID)
	account, _ := args.Get(0).(*entities.LinkedAccount)
	return account, args.Error(1)
}

func (m *mockAccountRepo) SaveLinkedAccount(ctx context.Context, userID string, account *entities.LinkedAccount) error {
	return m.Called(ctx, userID, account).Error(0)
}

func (m *mockAccountRepo) ClearLinkedAccount(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) LinkStarted(userID string) {
	m.Called(userID)
}

func (m *mockObserver) LinkFinished(userID string, outcome Outcome) {
	m.Called(userID, outcome)
}

// failingStore errors on every call
type failingStore struct{}

var errStoreDown = errors.New("store unavailable")

func (failingStore) Get(context.Context, string) (string, bool, error) { return "", false, errStoreDown }
func (failingStore) Set(context.Context, string, string) error         { return errStoreDown }
func (failingStore) Delete(context.Context, string) error              { return errStoreDown }

// plainStore hides MemoryStore's Take so the get-then-delete path is used
type plainStore struct {
	inner *MemoryStore
}

func (s plainStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.inner.Get(ctx, key)
}
func (s plainStore) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, key, value)
}
func (s plainStore) Delete(ctx context.Context, key string) error { return s.inner.Delete(ctx, key) }

// loadingIdentity reports Loading for the first loadingFor calls
type loadingIdentity struct {
	calls      int
	loadingFor int
	userID     string
}

func (l *loadingIdentity) CurrentIdentity(context.Context) SessionIdentity {
	l.calls++
	if l.calls <= l.loadingFor {
		return SessionIdentity{Loading: true}
	}
	return SessionIdentity{UserID: l.userID}
}

// waitingIdentity signals readiness through a channel
type waitingIdentity struct {
	ready chan struct{}
	id    SessionIdentity
	waits int
}

func (w *waitingIdentity) CurrentIdentity(context.Context) SessionIdentity {
	select {
	case <-w.ready:
		return w.id
	default:
		return SessionIdentity{Loading: true}
	}
}

func (w *waitingIdentity) AwaitReady(ctx context.Context) error {
	w.waits++
	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var testProvider = ProviderConfig{
	AuthorizeURL: "https://www.tiktok.com/v2/auth/authorize/",
	ClientKey:    "ck_test",
	RedirectURI:  "https://app.example.com/link/tiktok/callback",
	Scopes:       []string{"user.info.basic", "user.info.stats"},
}

// fixture holds one browser's link state plus the collaborators
type fixture struct {
	short     *MemoryStore
	long      *MemoryStore
	tokens    *TokenStore
	pending   *DualScopeRepository
	exchanger *mockExchanger
	accounts  *mockAccountRepo
	retry     RetryPolicy
}

func newFixture() *fixture {
	short, long := NewMemoryStore(), NewMemoryStore()
	return &fixture{
		short:     short,
		long:      long,
		tokens:    NewTokenStore(long),
		pending:   NewDualScopeRepository(short, long, discardLog),
		exchanger: &mockExchanger{},
		accounts:  &mockAccountRepo{},
		retry:     RetryPolicy{Attempts: 3, Delay: 0},
	}
}

// startLink runs the outbound leg and returns the issued state token
func (f *fixture) startLink(t *testing.T, userID string) string {
	t.Helper()
	builder := NewAuthorizationRequestBuilder(testProvider, f.tokens, f.pending, discardLog)
	authURL, err := builder.Build(context.Background(), userID)
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func (f *fixture) processor(identity IdentitySource) *CallbackProcessor {
	return NewCallbackProcessor(f.tokens, f.pending, identity, f.exchanger, f.accounts, f.retry, discardLog)
}

func (f *fixture) pendingPresent(t *testing.T) (short, long bool) {
	t.Helper()
	_, short, _ = f.short.Get(context.Background(), PendingLinkKey)
	_, long, _ = f.long.Get(context.Background(), PendingLinkKey)
	return short, long
}

func (f *fixture) tokenPresent() bool {
	_, ok, _ := f.long.Get(context.Background(), CSRFStateKey)
	return ok
}
