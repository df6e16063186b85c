package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/devilmonastery/creatorlink/internal/domain/entities"
	"github.com/devilmonastery/creatorlink/internal/linking"
	"github.com/devilmonastery/creatorlink/internal/pkg/metrics"
)

// maxResponseBytes caps how much of a backend reply is read
const maxResponseBytes = 1 << 20

// BackendClient exchanges codes through the platform's exchange endpoint
type BackendClient struct {
	endpoint   string
	httpClient *http.Client
	log        *slog.Logger
}

// NewBackendClient creates a client posting to endpoint
func NewBackendClient(endpoint string, timeout time.Duration, log *slog.Logger) *BackendClient {
	if log == nil {
		log = slog.Default()
	}
	return &BackendClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout, Transport: newMetricsTransport(nil, "backend")},
		log:        log.With(slog.String("component", "exchange_backend")),
	}
}

var _ linking.Exchanger = (*BackendClient)(nil)

type backendRequest struct {
	Code   string `json:"code"`
	UserID string `json:"userId"`
}

type backendResponse struct {
	Account *entities.LinkedAccount `json:"account"`
	Error   string                  `json:"error"`
}

// Exchange posts {code, userId} and decodes the account or error reason
func (c *BackendClient) Exchange(ctx context.Context, code, userID string) (account *entities.LinkedAccount, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordExchange("backend", time.Since(start), err)
	}()

	body, err := json.Marshal(backendRequest{Code: code, UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode exchange request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &linking.ExchangeError{Reason: "exchange service unreachable", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &linking.ExchangeError{Reason: "exchange service response unreadable", Err: err}
	}

	var decoded backendResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := decoded.Error
		if decodeErr != nil || reason == "" {
			reason = fmt.Sprintf("exchange service returned %d", resp.StatusCode)
		}
		c.log.Warn("exchange rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("reason", reason))
		return nil, &linking.ExchangeError{Reason: reason}
	}

	if decodeErr != nil {
		return nil, &linking.ExchangeError{Reason: "exchange service returned malformed data", Err: decodeErr}
	}
	if decoded.Error != "" {
		return nil, &linking.ExchangeError{Reason: decoded.Error}
	}
	if err := checkAccount(decoded.Account); err != nil {
		return nil, err
	}

	if decoded.Account.LinkedAt.IsZero() {
		decoded.Account.LinkedAt = time.Now().UTC()
	}
	return decoded.Account, nil
}
