package urlutil

import (
	"net/url"
	"strings"
	"testing"
)

func TestLinkAuthorizationURL(t *testing.T) {
	got, err := LinkAuthorizationURL(
		"https://www.tiktok.com/v2/auth/authorize/",
		"key123",
		"https://app.example.com/link/tiktok/callback",
		"tok/en+1",
		[]string{"user.info.basic", "user.info.stats"},
	)
	if err != nil {
		t.Fatalf("LinkAuthorizationURL() error = %v", err)
	}

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("result is not a valid URL: %v", err)
	}

	if u.Host != "www.tiktok.com" || u.Path != "/v2/auth/authorize/" {
		t.Errorf("unexpected host/path: %s%s", u.Host, u.Path)
	}

	q := u.Query()
	want := map[string]string{
		"client_key":    "key123",
		"scope":         "user.info.basic,user.info.stats",
		"response_type": "code",
		"redirect_uri":  "https://app.example.com/link/tiktok/callback",
		"state":         "tok/en+1",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Errorf("query %s = %q, want %q", k, q.Get(k), v)
		}
	}
}

func TestLinkAuthorizationURL_Invalid(t *testing.T) {
	tests := []struct {
		name string
		base string
	}{
		{name: "relative URL", base: "/authorize"},
		{name: "unparseable URL", base: "http://[::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LinkAuthorizationURL(tt.base, "k", "r", "s", nil); err == nil {
				t.Errorf("expected error for %q", tt.base)
			}
		})
	}
}

func TestLoginRedirectURL(t *testing.T) {
	got, err := LoginRedirectURL("/login", "expired", "/dashboard")
	if err != nil {
		t.Fatalf("LoginRedirectURL() error = %v", err)
	}
	if !strings.HasPrefix(got, "/login?") {
		t.Errorf("expected /login prefix, got %q", got)
	}
	if !strings.Contains(got, "reason=expired") || !strings.Contains(got, "next=%2Fdashboard") {
		t.Errorf("missing query params in %q", got)
	}
}

func TestDashboardURL(t *testing.T) {
	tests := []struct {
		name   string
		result string
		reason string
		want   string
	}{
		{name: "success", result: "linked", want: "/dashboard?link=linked"},
		{name: "error with reason", result: "error", reason: "csrf_violation", want: "/dashboard?link=error&reason=csrf_violation"},
		{name: "bare", want: "/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DashboardURL("/dashboard", tt.result, tt.reason); got != tt.want {
				t.Errorf("DashboardURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
