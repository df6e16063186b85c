package linking

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/creatorlink/internal/domain/entities"
)

func linkedAccount() *entities.LinkedAccount {
	return &entities.LinkedAccount{
		ExternalID: "open_123",
		Handle:     "@x",
		Metrics:    entities.AccountMetrics{Followers: 100},
	}
}

func TestParseCallbackParams(t *testing.T) {
	q := url.Values{}
	q.Set("code", " abc ")
	q.Set("state", "tok")
	q.Set("error", "access_denied")
	q.Set("error_description", "user cancelled")

	got := ParseCallbackParams(q)
	assert.Equal(t, CallbackParams{Code: "abc", State: "tok", Error: "access_denied", ErrorDescription: "user cancelled"}, got)
}

func TestProcess_Success(t *testing.T) {
	f := newFixture()
	state := f.startLink(t, "u1")
	account := linkedAccount()

	f.exchanger.On("Exchange", mock.Anything, "code-1", "u1").Return(account, nil).Once()
	f.accounts.On("SaveLinkedAccount", mock.Anything, "u1", account).Return(nil).Once()

	p := f.processor(StaticIdentity{UserID: "u1"})
	outcome := p.Process(context.Background(), CallbackParams{Code: "code-1", State: state})

	assert.Equal(t, StateSuccess, outcome.State)
	assert.Equal(t, StateSuccess, p.State())
	assert.Nil(t, outcome.Err)
	assert.Equal(t, "u1", outcome.UserID)
	assert.Equal(t, SourceSession, outcome.IdentitySource)
	assert.Equal(t, "@x", outcome.Account.Handle)
	assert.Equal(t, int64(100), outcome.Account.Metrics.Followers)
	assert.Equal(t, "success", outcome.Label())

	short, long := f.pendingPresent(t)
	assert.False(t, short)
	assert.False(t, long)
	assert.False(t, f.tokenPresent())

	f.exchanger.AssertExpectations(t)
	f.accounts.AssertExpectations(t)
}

func TestProcess_CsrfMismatchSkipsExchange(t *testing.T) {
	f := newFixture()
	f.startLink(t, "u1")

	p := f.processor(StaticIdentity{UserID: "u1"})
	outcome := p.Process(context.Background(), CallbackParams{Code: "code-1", State: "wrong"})

	assert.Equal(t, StateFailed, outcome.State)
	require.NotNil(t, outcome.Err)
	assert.ErrorIs(t, outcome.Err, ErrCsrfViolation)
	assert.Empty(t, outcome.Err.Detail)

	f.exchanger.AssertNumberOfCalls(t, "Exchange", 0)
	f.accounts.AssertNumberOfCalls(t, "SaveLinkedAccount", 0)

	// pending record survives a forged callback
	short, long := f.pendingPresent(t)
	assert.True(t, short)
	assert.True(t, long)
}

func TestProcess_LiveSessionBeatsPendingRecord(t *testing.T) {
	f := newFixture()
	state := f.startLink(t, "u2")
	account := linkedAccount()

	f.exchanger.On("Exchange", mock.Anything, "code-1", "u1").Return(account, nil).Once()
	f.accounts.On("SaveLinkedAccount", mock.Anything, "u1", account).Return(nil).Once()

	outcome := f.processor(StaticIdentity{UserID: "u1"}).
		Process(context.Background(), CallbackParams{Code: "code-1", State: state})

	assert.Equal(t, StateSuccess, outcome.State)
	assert.Equal(t, "u1", outcome.UserID)
	assert.Equal(t, SourceSession, outcome.IdentitySource)
	f.exchanger.AssertNotCalled(t, "Exchange", mock.Anything, "code-1", "u2")
}

func TestProcess_PendingRecordClearedOnExchangeFailure(t *testing.T) {
	f := newFixture()
	state := f.startLink(t, "u1")

	f.exchanger.On("Exchange", mock.Anything, "code-1", "u1").
		Return(nil, &ExchangeError{Reason: "code expired"}).Once()

	outcome := f.processor(StaticIdentity{UserID: "u1"}).
		Process(context.Background(), CallbackParams{Code: "code-1", State: state})

	assert.Equal(t, StateFailed, outcome.State)
	require.NotNil(t, outcome.Err)
	assert.ErrorIs(t, outcome.Err, ErrExchangeFailed)
	assert.Equal(t, "code expired", outcome.Err.Detail)

	short, long := f.pendingPresent(t)
	assert.False(t, short)
	assert.False(t, long)
	assert.False(t, f.tokenPresent())
	f.accounts.AssertNumberOfCalls(t, "SaveLinkedAccount", 0)
	f.exchanger.AssertNumberOfCalls(t, "Exchange", 1)
}

func TestProcess_OpaqueExchangeErrorDetail(t *testing.T) {
	f := newFixture()
	state := f.startLink(t, "u1")

	f.exchanger.On("Exchange", mock.Anything, "code-1", "u1").
		Return(nil, errors.New("dial tcp: connection refused")).Once()

	outcome := f.processor(StaticIdentity{UserID: "u1"}).
		Process(context.Background(), CallbackParams{Code: "code-1", State: state})

	require.NotNil(t, outcome.Err)
	assert.Equal(t, KindExchangeFailed, outcome.Err.Kind)
	assert.Equal(t, "exchange request failed", outcome.Err.Detail)
}

func TestProcess_NoExchangeWhileLoading(t *testing.T) {
	f := newFixture()
	state := f.startLink(t, "u1")
	account := linkedAccount()
	identity := &loadingIdentity{loadingFor: 2, userID: "u1"}

	var callsAtExchange int
	f.exchanger.On("Exchange", mock.Anything, "code-1", "u1").
		Run(func(mock.Arguments) { callsAtExchange = identity.calls }).
		Return(account, nil).Once()
	f.accounts.On("SaveLinkedAccount", mock.Anything, "u1", account).Return(nil).Once()

	outcome := f.processor(identity).Process(context.Background(), CallbackParams{Code: "code-1", State: state})

	assert.Equal(t, StateSuccess, outcome.State)
	assert.Equal(t, SourceSession, outcome.IdentitySource)
	assert.Equal(t, 3, identity.calls)
	assert.Equal(t, 3, callsAtExchange, "exchange ran before the session finished loading")
}

func TestProcess_LoadingBudgetExhaustedUsesPendingRecord(t *testing.T) {
	f := newFixture()
	state := f.startLink(t, "u1")
	account := linkedAccount()
	identity := &loadingIdentity{loadingFor: 100}

	f.exchanger.On("Exchange", mock.Anything, "code-1", "u1").Return(account, nil).Once()
	f.accounts.On("SaveLinkedAccount", mock.Anything, "u1", account).Return(nil).Once()

	outcome := f.processor(identity).Process(context.Background(), CallbackParams{Code: "code-1", State: state})

	assert.Equal(t, StateSuccess, outcome.State)
	assert.Equal(t, SourcePendingShort, outcome.IdentitySource)
	assert.Equal(t, 3, identity.calls)
}

func TestProcess_LongScopeRecovery(t *testing.T) {
	f := newFixture()
	state := f.startLink(t, "u1")
	require.NoError(t, f.short.Delete(context.Background(), PendingLinkKey))
	account := linkedAccount()

	f.exchanger.On("Exchange", mock.Anything, "code-1", "u1").Return(account, nil).Once()
	f.accounts.On("SaveLinkedAccount", mock.Anything, "u1", account).Return(nil).Once()

	outcome := f.processor(StaticIdentity{}).Process(context.Background(), CallbackParams{Code: "code-1", State: state})

	assert.Equal(t, StateSuccess, outcome.State)
	assert.Equal(t, SourcePendingLong, outcome.IdentitySource)
	_, long := f.pendingPresent(t)
	assert.False(t, long)
}

func TestProcess_SessionExpired(t *testing.T) {
	f := newFixture()
	state := f.startLink(t, "u1")
	require.NoError(t, f.pending.Clear(context.Background()))

	// loading for the whole budget, then settles with no user
	identity := &loadingIdentity{loadingFor: 3}
	outcome := f.processor(identity).Process(context.Background(), CallbackParams{Code: "code-1", State: state})

	assert.Equal(t, StateFailed, outcome.State)
	require.NotNil(t, outcome.Err)
	assert.ErrorIs(t, outcome.Err, ErrSessionExpired)
	assert.Equal(t, SourceNone, outcome.IdentitySource)
	assert.Equal(t, 3, identity.calls)
	f.exchanger.AssertNumberOfCalls(t, "Exchange", 0)
}

func TestProcess_InitializingFailures(t *testing.T) {
	tests := []struct {
		name        string
		params      func(state string) CallbackParams
		wantKind    FailureKind
		wantPending bool
	}{
		{
			name:     "provider denied",
			params:   func(state string) CallbackParams { return CallbackParams{Error: "access_denied", State: state} },
			wantKind: KindProviderDenied,
		},
		{
			name:     "denied wins over code",
			params:   func(state string) CallbackParams { return CallbackParams{Error: "access_denied", Code: "c", State: state} },
			wantKind: KindProviderDenied,
		},
		{
			name:        "denied with foreign state",
			params:      func(string) CallbackParams { return CallbackParams{Error: "access_denied", State: "x"} },
			wantKind:    KindProviderDenied,
			wantPending: true,
		},
		{
			name:     "missing code",
			params:   func(state string) CallbackParams { return CallbackParams{State: state} },
			wantKind: KindMalformedCallback,
		},
		{
			name:        "missing state",
			params:      func(string) CallbackParams { return CallbackParams{Code: "c"} },
			wantKind:    KindMalformedCallback,
			wantPending: true,
		},
		{
			name:        "empty",
			params:      func(string) CallbackParams { return CallbackParams{} },
			wantKind:    KindMalformedCallback,
			wantPending: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			state := f.startLink(t, "u1")

			outcome := f.processor(StaticIdentity{UserID: "u1"}).Process(context.Background(), tt.params(state))

			require.NotNil(t, outcome.Err)
			assert.Equal(t, tt.wantKind, outcome.Err.Kind)
			assert.Equal(t, StateFailed, outcome.State)
			f.exchanger.AssertNumberOfCalls(t, "Exchange", 0)
			assert.False(t, f.tokenPresent(), "state token is consumed by every callback")

			short, long := f.pendingPresent(t)
			assert.Equal(t, tt.wantPending, short)
			assert.Equal(t, tt.wantPending, long)
		})
	}
}

func TestProcess_ReplayFailsClosed(t *testing.T) {
	f := newFixture()
	state := f.startLink(t, "u1")
	account := linkedAccount()

	f.exchanger.On("Exchange", mock.Anything, "code-1", "u1").Return(account, nil).Once()
	f.accounts.On("SaveLinkedAccount", mock.Anything, "u1", account).Return(nil).Once()

	params := CallbackParams{Code: "code-1", State: state}
	first := f.processor(StaticIdentity{UserID: "u1"}).Process(context.Background(), params)
	second := f.processor(StaticIdentity{UserID: "u1"}).Process(context.Background(), params)

	assert.Equal(t, StateSuccess, first.State)
	require.NotNil(t, second.Err)
	assert.ErrorIs(t, second.Err, ErrCsrfViolation)
	f.exchanger.AssertNumberOfCalls(t, "Exchange", 1)
}

func TestProcess_ProcessorNotReusable(t *testing.T) {
	f := newFixture()
	state := f.startLink(t, "u1")
	account := linkedAccount()

	f.exchanger.On("Exchange", mock.Anything, "code-1", "u1").Return(account, nil).Once()
	f.accounts.On("SaveLinkedAccount", mock.Anything, "u1", account).Return(nil).Once()

	p := f.processor(StaticIdentity{UserID: "u1"})
	params := CallbackParams{Code: "code-1", State: state}
	p.Process(context.Background(), params)
	again := p.Process(context.Background(), params)

	require.NotNil(t, again.Err)
	assert.Equal(t, KindCsrfViolation, again.Err.Kind)
	f.exchanger.AssertNumberOfCalls(t, "Exchange", 1)
}

func TestProcess_ResentStateExchangesOnce(t *testing.T) {
	f := newFixture()
	state := f.startLink(t, "u1")
	ledger := NewMemoryStateLedger(16, time.Hour)

	var exchanges atomic.Int32
	exchanger := ExchangerFunc(func(context.Context, string, string) (*entities.LinkedAccount, error) {
		exchanges.Add(1)
		return linkedAccount(), nil
	})
	f.accounts.On("SaveLinkedAccount", mock.Anything, "u1", mock.Anything).Return(nil)

	// each browser copy holds the same state and pending record
	const copies = 4
	var wg sync.WaitGroup
	outcomes := make(chan Outcome, copies)
	for i := 0; i < copies; i++ {
		short, long := NewMemoryStore(), NewMemoryStore()
		for _, key := range []string{CSRFStateKey, PendingLinkKey} {
			v, ok, _ := f.long.Get(context.Background(), key)
			require.True(t, ok)
			require.NoError(t, long.Set(context.Background(), key, v))
		}
		v, _, _ := f.short.Get(context.Background(), PendingLinkKey)
		require.NoError(t, short.Set(context.Background(), PendingLinkKey, v))

		p := NewCallbackProcessor(
			NewTokenStore(long).WithLedger(ledger, time.Hour),
			NewDualScopeRepository(short, long, discardLog),
			StaticIdentity{UserID: "u1"},
			exchanger,
			f.accounts,
			f.retry,
			discardLog,
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes <- p.Process(context.Background(), CallbackParams{Code: "code-1", State: state})
		}()
	}
	wg.Wait()
	close(outcomes)

	succeeded := 0
	for o := range outcomes {
		if o.Err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, KindCsrfViolation, o.Err.Kind)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int32(1), exchanges.Load())
}

func TestProcess_CancelledDuringExchangeSkipsPersist(t *testing.T) {
	f := newFixture()
	state := f.startLink(t, "u1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.exchanger.On("Exchange", mock.Anything, "code-1", "u1").
		Run(func(mock.Arguments) { cancel() }).
		Return(linkedAccount(), nil).Once()

	outcome := f.processor(StaticIdentity{UserID: "u1"}).Process(ctx, CallbackParams{Code: "code-1", State: state})

	require.NotNil(t, outcome.Err)
	assert.ErrorIs(t, outcome.Err, ErrCancelled)
	f.accounts.AssertNumberOfCalls(t, "SaveLinkedAccount", 0)
}

func TestProcess_CancelledBeforeStart(t *testing.T) {
	f := newFixture()
	state := f.startLink(t, "u1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := f.processor(StaticIdentity{UserID: "u1"}).Process(ctx, CallbackParams{Code: "code-1", State: state})

	require.NotNil(t, outcome.Err)
	assert.ErrorIs(t, outcome.Err, ErrCancelled)
	f.exchanger.AssertNumberOfCalls(t, "Exchange", 0)
	assert.True(t, f.tokenPresent())
}

func TestProcess_PersistFailure(t *testing.T) {
	f := newFixture()
	state := f.startLink(t, "u1")
	account := linkedAccount()

	f.exchanger.On("Exchange", mock.Anything, "code-1", "u1").Return(account, nil).Once()
	f.accounts.On("SaveLinkedAccount", mock.Anything, "u1", account).Return(errors.New("db down")).Once()

	outcome := f.processor(StaticIdentity{UserID: "u1"}).Process(context.Background(), CallbackParams{Code: "code-1", State: state})

	require.NotNil(t, outcome.Err)
	assert.Equal(t, KindExchangeFailed, outcome.Err.Kind)
	assert.Equal(t, "could not save linked account", outcome.Err.Detail)
}

func TestProcess_EmptyAccount(t *testing.T) {
	f := newFixture()
	state := f.startLink(t, "u1")

	f.exchanger.On("Exchange", mock.Anything, "code-1", "u1").Return(&entities.LinkedAccount{}, nil).Once()

	outcome := f.processor(StaticIdentity{UserID: "u1"}).Process(context.Background(), CallbackParams{Code: "code-1", State: state})

	require.NotNil(t, outcome.Err)
	assert.Equal(t, KindExchangeFailed, outcome.Err.Kind)
	f.accounts.AssertNumberOfCalls(t, "SaveLinkedAccount", 0)
}

func TestProcess_ReadyWaiter(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		f := newFixture()
		state := f.startLink(t, "u2")
		account := linkedAccount()
		identity := &waitingIdentity{ready: make(chan struct{}), id: SessionIdentity{UserID: "u1"}}
		close(identity.ready)

		f.exchanger.On("Exchange", mock.Anything, "code-1", "u1").Return(account, nil).Once()
		f.accounts.On("SaveLinkedAccount", mock.Anything, "u1", account).Return(nil).Once()

		outcome := f.processor(identity).Process(context.Background(), CallbackParams{Code: "code-1", State: state})

		assert.Equal(t, StateSuccess, outcome.State)
		assert.Equal(t, SourceSession, outcome.IdentitySource)
		assert.Equal(t, 1, identity.waits)
	})

	t.Run("never ready falls back to pending record", func(t *testing.T) {
		f := newFixture()
		f.retry = RetryPolicy{Attempts: 2, Delay: 5 * time.Millisecond}
		state := f.startLink(t, "u2")
		account := linkedAccount()
		identity := &waitingIdentity{ready: make(chan struct{}), id: SessionIdentity{UserID: "u1"}}

		f.exchanger.On("Exchange", mock.Anything, "code-1", "u2").Return(account, nil).Once()
		f.accounts.On("SaveLinkedAccount", mock.Anything, "u2", account).Return(nil).Once()

		outcome := f.processor(identity).Process(context.Background(), CallbackParams{Code: "code-1", State: state})

		assert.Equal(t, StateSuccess, outcome.State)
		assert.Equal(t, "u2", outcome.UserID)
		assert.Equal(t, SourcePendingShort, outcome.IdentitySource)
	})
}

func TestProcess_NotifiesObservers(t *testing.T) {
	f := newFixture()
	state := f.startLink(t, "u1")
	account := linkedAccount()
	observer := &mockObserver{}

	f.exchanger.On("Exchange", mock.Anything, "code-1", "u1").Return(account, nil).Once()
	f.accounts.On("SaveLinkedAccount", mock.Anything, "u1", account).Return(nil).Once()
	observer.On("LinkStarted", "u1").Once()
	observer.On("LinkFinished", "u1", mock.MatchedBy(func(o Outcome) bool {
		return o.State == StateSuccess
	})).Once()

	p := f.processor(StaticIdentity{UserID: "u1"})
	p.AddObserver(observer)
	p.Process(context.Background(), CallbackParams{Code: "code-1", State: state})

	observer.AssertExpectations(t)
}

func TestProcess_NoObserverWithoutIdentity(t *testing.T) {
	f := newFixture()
	observer := &mockObserver{}

	p := f.processor(StaticIdentity{UserID: "u1"})
	p.AddObserver(observer)
	p.Process(context.Background(), CallbackParams{Error: "access_denied"})

	observer.AssertNotCalled(t, "LinkStarted", mock.Anything)
}
