package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/devilmonastery/creatorlink/internal/domain/entities"
	"github.com/devilmonastery/creatorlink/internal/linking"
	"github.com/devilmonastery/creatorlink/internal/pkg/metrics"
)

// userInfoFields are requested from the provider's user info endpoint
const userInfoFields = "open_id,username,display_name,follower_count,following_count,likes_count,video_count,is_verified"

// DirectConfig configures exchanging codes directly with the provider
type DirectConfig struct {
	ClientKey    string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	UserInfoURL  string
	RedirectURI  string
	Timeout      time.Duration
}

// DirectClient exchanges codes with the provider's token endpoint and reads
// the account profile with the resulting access token
type DirectClient struct {
	oauth       *oauth2.Config
	httpClient  *http.Client
	clientKey   string
	userInfoURL string
	timeout     time.Duration
	log         *slog.Logger
}

// NewDirectClient creates a provider-direct exchanger
func NewDirectClient(cfg DirectConfig, log *slog.Logger) *DirectClient {
	if log == nil {
		log = slog.Default()
	}
	return &DirectClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientKey,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizeURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient:  &http.Client{Transport: newMetricsTransport(nil, "provider")},
		clientKey:   cfg.ClientKey,
		userInfoURL: cfg.UserInfoURL,
		timeout:     cfg.Timeout,
		log:         log.With(slog.String("component", "exchange_direct")),
	}
}

var _ linking.Exchanger = (*DirectClient)(nil)

type userInfoResponse struct {
	Data struct {
		User userInfo `json:"user"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type userInfo struct {
	OpenID         string `json:"open_id"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	FollowerCount  int64  `json:"follower_count"`
	FollowingCount int64  `json:"following_count"`
	LikesCount     int64  `json:"likes_count"`
	VideoCount     int64  `json:"video_count"`
	IsVerified     bool   `json:"is_verified"`
}

func (u userInfo) toEntity() *entities.LinkedAccount {
	handle := ""
	if u.Username != "" {
		handle = "@" + u.Username
	}
	username := u.DisplayName
	if username == "" {
		username = u.Username
	}
	return &entities.LinkedAccount{
		ExternalUsername: username,
		ExternalID:       u.OpenID,
		Handle:           handle,
		Metrics: entities.AccountMetrics{
			Followers: u.FollowerCount,
			Following: u.FollowingCount,
			Likes:     u.LikesCount,
			Videos:    u.VideoCount,
			Verified:  u.IsVerified,
		},
		LinkedAt: time.Now().UTC(),
	}
}

// Exchange trades code for a token and fetches the account profile. userID
// is only used for logging.
func (c *DirectClient) Exchange(ctx context.Context, code, userID string) (account *entities.LinkedAccount, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordExchange("direct", time.Since(start), err)
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// oauth2 uses this client for the token call and as the base of the
	// authenticated profile client
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth.Exchange(ctx, code, oauth2.SetAuthURLParam("client_key", c.clientKey))
	if err != nil {
		return nil, &linking.ExchangeError{Reason: tokenErrorReason(err), Err: err}
	}

	info, err := c.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	account = info.toEntity()
	if err := checkAccount(account); err != nil {
		return nil, err
	}

	c.log.Debug("provider exchange complete",
		slog.String("user_id", userID),
		slog.String("external_id", account.ExternalID))
	return account, nil
}

func (c *DirectClient) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*userInfo, error) {
	u, err := url.Parse(c.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("invalid user info URL: %w", err)
	}
	q := u.Query()
	q.Set("fields", userInfoFields)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}

	resp, err := c.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, &linking.ExchangeError{Reason: "provider profile unreachable", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &linking.ExchangeError{Reason: "provider profile unreadable", Err: err}
	}

	var decoded userInfoResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &linking.ExchangeError{Reason: "provider returned malformed profile", Err: err}
	}

	if resp.StatusCode != http.StatusOK || (decoded.Error.Code != "" && decoded.Error.Code != "ok") {
		reason := decoded.Error.Message
		if reason == "" {
			reason = fmt.Sprintf("provider profile request returned %d", resp.StatusCode)
		}
		return nil, &linking.ExchangeError{Reason: reason}
	}

	return &decoded.Data.User, nil
}

// tokenErrorReason prefers the provider's error description
func tokenErrorReason(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorDescription != "" {
			return re.ErrorDescription
		}
		if re.ErrorCode != "" {
			return re.ErrorCode
		}
	}
	return "provider rejected the authorization code"
}
