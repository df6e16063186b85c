package session

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

const (
	// SessionName is the name of the auth session cookie
	SessionName = "creatorlink_session"

	// TokenKey is the session key for storing the identity JWT
	TokenKey = "token"

	// ShortScopeName is the link cookie that ends with the browser session
	ShortScopeName = "creatorlink_link_tab"

	// LongScopeName is the link cookie that survives across tabs for the pending TTL
	LongScopeName = "creatorlink_link"

	// FlashSessionName carries one-shot status messages across redirects
	FlashSessionName = "creatorlink_flash"
)

// Options controls cookie behavior
type Options struct {
	PendingTTL time.Duration
	Secure     bool
	// SigningKey verifies the identity JWT; without it no token is accepted
	SigningKey []byte
}

// Manager wraps gorilla/sessions for our use case
type Manager struct {
	store      *sessions.CookieStore
	shortStore *sessions.CookieStore
	longStore  *sessions.CookieStore
	signingKey []byte
}

// NewManager creates a new session manager
// secretKey should be 32 bytes for AES-256
func NewManager(secretKey []byte, opts Options) *Manager {
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = time.Hour
	}

	store := sessions.NewCookieStore(secretKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   90 * 24 * 60 * 60, // 90 days
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	// Lax so the cookies ride the provider's top-level redirect back
	shortStore := sessions.NewCookieStore(secretKey)
	shortStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	longStore := sessions.NewCookieStore(secretKey)
	longStore.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	// Also bounds the signed timestamp, so a replayed old cookie is rejected
	longStore.MaxAge(int(opts.PendingTTL.Seconds()))

	return &Manager{
		store:      store,
		shortStore: shortStore,
		longStore:  longStore,
		signingKey: opts.SigningKey,
	}
}

// SetToken stores the identity JWT in the session
func (m *Manager) SetToken(r *http.Request, w http.ResponseWriter, token string) error {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		// Create new session if it doesn't exist
		session, _ = m.store.New(r, SessionName)
	}

	session.Values[TokenKey] = token
	return session.Save(r, w)
}

// GetToken retrieves the identity JWT from the session
func (m *Manager) GetToken(r *http.Request) (string, error) {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		return "", err
	}

	token, ok := session.Values[TokenKey].(string)
	if !ok {
		return "", http.ErrNoCookie
	}

	return token, nil
}

// ClearToken removes the session (logout)
func (m *Manager) ClearToken(r *http.Request, w http.ResponseWriter) error {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		return nil // Session doesn't exist, nothing to clear
	}

	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// HasToken checks if a session token exists
func (m *Manager) HasToken(r *http.Request) bool {
	_, err := m.GetToken(r)
	return err == nil
}
