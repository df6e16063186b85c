package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// LinkAuthorizationURL builds the provider authorization URL for account linking.
// Returns a URL like: {authorizeURL}?client_key=..&scope=a,b&response_type=code&redirect_uri=..&state=..
// Scopes are comma-joined as the provider expects.
func LinkAuthorizationURL(authorizeURL, clientKey, redirectURI, state string, scopes []string) (string, error) {
	u, err := url.Parse(authorizeURL)
	if err != nil {
		return "", fmt.Errorf("invalid authorize URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("authorize URL must be absolute: %q", authorizeURL)
	}

	q := u.Query()
	q.Set("client_key", clientKey)
	q.Set("scope", strings.Join(scopes, ","))
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// LoginRedirectURL builds the re-authentication URL used when a link callback
// cannot tell who started it.
// Returns a URL like: {loginURL}?reason={reason}&next={next}
func LoginRedirectURL(loginURL, reason, next string) (string, error) {
	u, err := url.Parse(loginURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if reason != "" {
		q.Set("reason", reason)
	}
	if next != "" {
		q.Set("next", next)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DashboardURL builds the dashboard URL carrying the link result indicator.
// Returns a URL like: {dashboardPath}?link={result}&reason={reason}
func DashboardURL(dashboardPath, result, reason string) string {
	u := &url.URL{Path: dashboardPath}
	q := url.Values{}
	if result != "" {
		q.Set("link", result)
	}
	if reason != "" {
		q.Set("reason", reason)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
