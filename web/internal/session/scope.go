package session

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/devilmonastery/creatorlink/internal/linking"
)

// cookieScope is a linking.Store backed by one signed cookie. Every write is
// saved immediately so it reaches the response before a redirect.
type cookieScope struct {
	store *sessions.CookieStore
	name  string
	r     *http.Request
	w     http.ResponseWriter
}

var _ linking.Store = (*cookieScope)(nil)

// LinkScopes returns the short-lived and long-lived stores for this request
func (m *Manager) LinkScopes(r *http.Request, w http.ResponseWriter) (short, long linking.Store) {
	short = &cookieScope{store: m.shortStore, name: ShortScopeName, r: r, w: w}
	long = &cookieScope{store: m.longStore, name: LongScopeName, r: r, w: w}
	return short, long
}

// session returns the request's session. An undecodable cookie yields an
// empty session that the registry still caches for the rest of the request.
func (c *cookieScope) session() *sessions.Session {
	s, _ := c.store.Get(c.r, c.name)
	if s == nil {
		s, _ = c.store.New(c.r, c.name)
	}
	return s
}

func (c *cookieScope) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.session().Values[key].(string)
	if !ok {
		return "", false, nil
	}
	return v, true, nil
}

func (c *cookieScope) Set(_ context.Context, key, value string) error {
	s := c.session()
	if s.Options == nil || s.Options.MaxAge < 0 {
		// an earlier Delete in this request expired the cookie
		opts := *c.store.Options
		s.Options = &opts
	}
	s.Values[key] = value
	return s.Save(c.r, c.w)
}

func (c *cookieScope) Delete(_ context.Context, key string) error {
	s := c.session()
	if _, ok := s.Values[key]; !ok {
		return nil
	}
	delete(s.Values, key)
	if len(s.Values) == 0 {
		opts := *s.Options
		opts.MaxAge = -1
		s.Options = &opts
	}
	return s.Save(c.r, c.w)
}
