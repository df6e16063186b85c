package linking

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/devilmonastery/creatorlink/internal/domain/entities"
	"github.com/devilmonastery/creatorlink/internal/domain/repositories"
	"github.com/devilmonastery/creatorlink/internal/pkg/metrics"
)

// State is a step of the callback state machine
type State string

const (
	StateInitializing      State = "initializing"
	StateResolvingIdentity State = "resolving_identity"
	StateExchangingCode    State = "exchanging_code"
	StateSuccess           State = "success"
	StateFailed            State = "failed"
)

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// CallbackParams are the query parameters of the provider redirect
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ParseCallbackParams reads the callback parameters from a query string
func ParseCallbackParams(q url.Values) CallbackParams {
	return CallbackParams{
		Code:             strings.TrimSpace(q.Get("code")),
		State:            strings.TrimSpace(q.Get("state")),
		Error:            strings.TrimSpace(q.Get("error")),
		ErrorDescription: strings.TrimSpace(q.Get("error_description")),
	}
}

// Outcome is the terminal result of processing one callback
type Outcome struct {
	State          State
	UserID         string
	Account        *entities.LinkedAccount
	Err            *LinkError
	IdentitySource IdentitySourceKind
}

// Label is "success" or the failure kind, for metrics and audit rows
func (o Outcome) Label() string {
	if o.Err == nil {
		return string(StateSuccess)
	}
	return string(o.Err.Kind)
}

// CompletionObserver is told when a callback starts and finishes for a user
type CompletionObserver interface {
	LinkStarted(userID string)
	LinkFinished(userID string, outcome Outcome)
}

// CallbackProcessor drives one provider callback to a terminal state.
// A processor handles a single callback and is not reused.
type CallbackProcessor struct {
	tokens    *TokenStore
	pending   PendingLinkRepository
	identity  IdentitySource
	exchanger Exchanger
	accounts  repositories.LinkedAccountRepository
	retry     RetryPolicy
	observers []CompletionObserver
	log       *slog.Logger

	state State
}

// NewCallbackProcessor wires a processor for one callback
func NewCallbackProcessor(
	tokens *TokenStore,
	pending PendingLinkRepository,
	identity IdentitySource,
	exchanger Exchanger,
	accounts repositories.LinkedAccountRepository,
	retry RetryPolicy,
	log *slog.Logger,
) *CallbackProcessor {
	if log == nil {
		log = slog.Default()
	}
	return &CallbackProcessor{
		tokens:    tokens,
		pending:   pending,
		identity:  identity,
		exchanger: exchanger,
		accounts:  accounts,
		retry:     retry,
		log:       log.With(slog.String("component", "link_callback")),
		state:     StateInitializing,
	}
}

// AddObserver registers an observer for start and completion
func (p *CallbackProcessor) AddObserver(o CompletionObserver) {
	p.observers = append(p.observers, o)
}

// State returns the current state
func (p *CallbackProcessor) State() State {
	return p.state
}

func (p *CallbackProcessor) transition(to State) {
	p.log.Debug("link callback transition",
		slog.String("from", string(p.state)),
		slog.String("to", string(to)))
	p.state = to
}

// Process runs the callback to completion. CSRF validation always precedes
// the exchange call, and the pending record is cleared only once the token
// has been validated. Every callback consumes the state token. If ctx ends before the result is persisted the outcome
// is Cancelled and nothing more is written.
func (p *CallbackProcessor) Process(ctx context.Context, params CallbackParams) Outcome {
	if p.state != StateInitializing {
		return p.fail("", SourceNone, newLinkError(KindCsrfViolation, "callback already processed"))
	}

	if params.Error != "" {
		p.retire(ctx, params.State)
		return p.fail("", SourceNone, newLinkError(KindProviderDenied, params.Error))
	}
	if params.Code == "" || params.State == "" {
		p.retire(ctx, params.State)
		return p.fail("", SourceNone, newLinkError(KindMalformedCallback, ""))
	}

	p.transition(StateResolvingIdentity)
	userID, source, err := p.resolveIdentity(ctx)
	metrics.IdentityResolutions.WithLabelValues(string(source)).Inc()
	if err != nil {
		return p.fail("", source, err)
	}

	for _, o := range p.observers {
		o.LinkStarted(userID)
	}
	outcome := p.exchange(ctx, userID, source, params)
	for _, o := range p.observers {
		o.LinkFinished(userID, outcome)
	}
	return outcome
}

// retire ends an attempt that failed before the exchange. The state token is
// consumed either way; the pending record is cleared only when the state
// matches, so a forged error redirect cannot erase a live attempt.
func (p *CallbackProcessor) retire(ctx context.Context, state string) {
	verdict, err := p.tokens.VerifyAndConsume(ctx, state)
	if err != nil {
		p.log.Warn("state token check failed", slog.Any("error", err))
	}
	if verdict != Valid {
		return
	}
	if err := p.pending.Clear(ctx); err != nil {
		p.log.Warn("failed to clear pending link", slog.Any("error", err))
	}
}

// resolveIdentity prefers a settled live session, then the pending record
func (p *CallbackProcessor) resolveIdentity(ctx context.Context) (string, IdentitySourceKind, *LinkError) {
	live, err := p.awaitIdentity(ctx)
	if err != nil {
		return "", SourceNone, newLinkError(KindCancelled, "")
	}
	if !live.Loading && live.UserID != "" {
		return live.UserID, SourceSession, nil
	}

	record, scope, found, getErr := p.pending.Get(ctx)
	if getErr != nil {
		p.log.Warn("failed to read pending link", slog.Any("error", getErr))
	}
	if found {
		source := SourcePendingLong
		if scope == ScopeShort {
			source = SourcePendingShort
		}
		p.log.Info("recovered link initiator from pending record",
			slog.String("user_id", record.UserID),
			slog.String("scope", string(scope)))
		return record.UserID, source, nil
	}

	if ctx.Err() != nil {
		return "", SourceNone, newLinkError(KindCancelled, "")
	}
	return "", SourceNone, newLinkError(KindSessionExpired, "")
}

// awaitIdentity waits for the session to finish loading within the retry
// budget. The returned identity may still be loading if the budget ran out.
func (p *CallbackProcessor) awaitIdentity(ctx context.Context) (SessionIdentity, error) {
	if waiter, ok := p.identity.(ReadyWaiter); ok {
		waitCtx, cancel := context.WithTimeout(ctx, p.retry.budget())
		waitErr := waiter.AwaitReady(waitCtx)
		cancel()
		if ctx.Err() != nil {
			return SessionIdentity{}, ctx.Err()
		}
		if waitErr != nil && !errors.Is(waitErr, context.DeadlineExceeded) {
			p.log.Warn("identity readiness wait failed", slog.Any("error", waitErr))
		}
		metrics.IdentityPolls.Observe(1)
		return p.identity.CurrentIdentity(ctx), nil
	}

	attempts := p.retry.attempts()
	var id SessionIdentity
	for i := 1; i <= attempts; i++ {
		id = p.identity.CurrentIdentity(ctx)
		if !id.Loading {
			metrics.IdentityPolls.Observe(float64(i))
			return id, nil
		}
		if i == attempts {
			break
		}
		p.log.Debug("session still loading, waiting", slog.Int("attempt", i))
		if err := sleep(ctx, p.retry.Delay); err != nil {
			return SessionIdentity{}, err
		}
	}
	metrics.IdentityPolls.Observe(float64(attempts))
	return id, nil
}

// exchange validates CSRF, clears the pending record, exchanges the code
// and persists the account
func (p *CallbackProcessor) exchange(ctx context.Context, userID string, source IdentitySourceKind, params CallbackParams) Outcome {
	if ctx.Err() != nil {
		return p.fail(userID, source, newLinkError(KindCancelled, ""))
	}

	p.transition(StateExchangingCode)
	verdict, err := p.tokens.VerifyAndConsume(ctx, params.State)
	if err != nil {
		p.log.Warn("state token check failed", slog.Any("error", err))
	}
	if verdict != Valid {
		p.log.Warn("link callback rejected: state mismatch", slog.String("user_id", userID))
		return p.fail(userID, source, newLinkError(KindCsrfViolation, ""))
	}

	if err := p.pending.Clear(ctx); err != nil {
		p.log.Warn("failed to clear pending link", slog.Any("error", err))
	}

	if ctx.Err() != nil {
		return p.fail(userID, source, newLinkError(KindCancelled, ""))
	}

	account, err := p.exchanger.Exchange(ctx, params.Code, userID)
	if ctx.Err() != nil {
		return p.fail(userID, source, newLinkError(KindCancelled, ""))
	}
	if err != nil {
		p.log.Error("code exchange failed", slog.String("user_id", userID), slog.Any("error", err))
		return p.fail(userID, source, newLinkError(KindExchangeFailed, exchangeDetail(err)))
	}
	if account == nil || account.ExternalID == "" {
		return p.fail(userID, source, newLinkError(KindExchangeFailed, "provider returned no account"))
	}

	if err := p.accounts.SaveLinkedAccount(ctx, userID, account); err != nil {
		if ctx.Err() != nil {
			return p.fail(userID, source, newLinkError(KindCancelled, ""))
		}
		p.log.Error("failed to persist linked account", slog.String("user_id", userID), slog.Any("error", err))
		return p.fail(userID, source, newLinkError(KindExchangeFailed, "could not save linked account"))
	}

	p.transition(StateSuccess)
	metrics.LinkAttempts.WithLabelValues(string(StateSuccess)).Inc()
	p.log.Info("account linked",
		slog.String("user_id", userID),
		slog.String("external_id", account.ExternalID),
		slog.String("identity_source", string(source)))

	return Outcome{
		State:          StateSuccess,
		UserID:         userID,
		Account:        account,
		IdentitySource: source,
	}
}

func (p *CallbackProcessor) fail(userID string, source IdentitySourceKind, err *LinkError) Outcome {
	p.transition(StateFailed)
	metrics.LinkAttempts.WithLabelValues(string(err.Kind)).Inc()
	p.log.Info("link callback failed",
		slog.String("kind", string(err.Kind)),
		slog.String("user_id", userID))

	return Outcome{
		State:          StateFailed,
		UserID:         userID,
		Err:            err,
		IdentitySource: source,
	}
}

// exchangeDetail extracts a displayable reason from an exchange error
func exchangeDetail(err error) string {
	var exErr *ExchangeError
	if errors.As(err, &exErr) && exErr.Reason != "" {
		return exErr.Reason
	}
	return "exchange request failed"
}
