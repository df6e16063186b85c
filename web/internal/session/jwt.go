package session

import (
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken is returned when no token is found in the session
	ErrNoToken = errors.New("no token in session")

	// ErrInvalidToken is returned when the token cannot be parsed
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrMissingUserID is returned when the token is missing the required user_id claim
	ErrMissingUserID = errors.New("token missing user_id claim")

	// ErrNoSigningKey is returned when no key is configured to verify tokens
	ErrNoSigningKey = errors.New("no token signing key configured")
)

// User is the authenticated platform user carried in the identity token
type User struct {
	UserID      string
	Email       string
	DisplayName string
	Timezone    string
}

// ParseUserClaims verifies the identity JWT (HS256 only) and extracts the
// user. Tokens are never accepted without a signing key.
func ParseUserClaims(tokenString string, signingKey []byte) (*User, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}
	if len(signingKey) == 0 {
		return nil, ErrNoSigningKey
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	user := &User{}

	// Email can be in either "email" or "username" claim
	if email, ok := claims["email"].(string); ok {
		user.Email = email
	} else if username, ok := claims["username"].(string); ok {
		user.Email = username
	}
	if userID, ok := claims["user_id"].(string); ok {
		user.UserID = userID
	}
	if displayName, ok := claims["display_name"].(string); ok {
		user.DisplayName = displayName
	}
	if timezone, ok := claims["timezone"].(string); ok {
		user.Timezone = timezone
	}

	if user.UserID == "" {
		return nil, ErrMissingUserID
	}

	return user, nil
}

// GetValidatedUser retrieves and validates the user from the session
func (m *Manager) GetValidatedUser(r *http.Request) (*User, error) {
	tokenString, err := m.GetToken(r)
	if err != nil {
		if err == http.ErrNoCookie {
			return nil, ErrNoToken
		}
		return nil, err
	}

	return ParseUserClaims(tokenString, m.signingKey)
}

// ValidateToken parses a token with the manager's signing key
func (m *Manager) ValidateToken(tokenString string) (*User, error) {
	return ParseUserClaims(tokenString, m.signingKey)
}
