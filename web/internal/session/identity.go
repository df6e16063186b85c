package session

import (
	"context"
	"net/http"

	"github.com/devilmonastery/creatorlink/internal/linking"
)

type userContextKey struct{}

// WithUser stores the authenticated user in ctx
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the user set by the auth middleware, or nil
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey{}).(*User)
	return user
}

// requestIdentity reports the identity carried by the request's auth cookie.
// The cookie is decoded synchronously so it is never in a loading state.
type requestIdentity struct {
	m *Manager
	r *http.Request
}

// Identity returns the live session identity source for r
func (m *Manager) Identity(r *http.Request) linking.IdentitySource {
	return requestIdentity{m: m, r: r}
}

func (i requestIdentity) CurrentIdentity(ctx context.Context) linking.SessionIdentity {
	if user := UserFromContext(ctx); user != nil {
		return linking.SessionIdentity{UserID: user.UserID}
	}
	user, err := i.m.GetValidatedUser(i.r)
	if err != nil {
		return linking.SessionIdentity{}
	}
	return linking.SessionIdentity{UserID: user.UserID}
}
