package linking

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devilmonastery/creatorlink/internal/pkg/metrics"
	"github.com/devilmonastery/creatorlink/internal/pkg/urlutil"
)

// ProviderConfig describes the external provider's authorization endpoint
type ProviderConfig struct {
	AuthorizeURL string
	ClientKey    string
	RedirectURI  string
	Scopes       []string
}

// AuthorizationRequestBuilder prepares local state for a link attempt and
// builds the URL the browser must navigate to. It makes no network calls.
type AuthorizationRequestBuilder struct {
	provider ProviderConfig
	tokens   *TokenStore
	pending  PendingLinkRepository
	log      *slog.Logger
}

// NewAuthorizationRequestBuilder creates a builder for the given provider
func NewAuthorizationRequestBuilder(provider ProviderConfig, tokens *TokenStore, pending PendingLinkRepository, log *slog.Logger) *AuthorizationRequestBuilder {
	if log == nil {
		log = slog.Default()
	}
	return &AuthorizationRequestBuilder{
		provider: provider,
		tokens:   tokens,
		pending:  pending,
		log:      log.With(slog.String("component", "authorize")),
	}
}

// Build issues a CSRF token, records userID as the initiator and returns the
// authorization URL. The caller must send the browser there with a full-page
// redirect.
func (b *AuthorizationRequestBuilder) Build(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", newLinkError(KindNotAuthenticated, "")
	}

	token, err := b.tokens.Issue(ctx)
	if err != nil {
		return "", err
	}

	if err := b.pending.Put(ctx, PendingLink{UserID: userID}); err != nil {
		return "", err
	}

	authURL, err := urlutil.LinkAuthorizationURL(
		b.provider.AuthorizeURL,
		b.provider.ClientKey,
		b.provider.RedirectURI,
		token,
		b.provider.Scopes,
	)
	if err != nil {
		return "", fmt.Errorf("failed to build authorization URL: %w", err)
	}

	metrics.LinkStarts.Inc()
	b.log.Info("link authorization started", slog.String("user_id", userID))
	return authURL, nil
}
