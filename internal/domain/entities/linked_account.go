package entities

import "time"

// LinkedAccount is the external creator account attached to a user's profile.
// A user has at most one; re-linking overwrites it.
type LinkedAccount struct {
	ExternalUsername string         `json:"externalUsername" db:"external_username"`
	ExternalID       string         `json:"externalId" db:"external_id" validate:"required"`
	Handle           string         `json:"handle" db:"handle"`
	Metrics          AccountMetrics `json:"metrics"`
	LinkedAt         time.Time      `json:"linkedAt" db:"linked_at"`
}

// AccountMetrics holds the public counters reported by the provider
type AccountMetrics struct {
	Followers int64 `json:"followers" db:"followers"`
	Following int64 `json:"following" db:"following"`
	Likes     int64 `json:"likes" db:"likes"`
	Videos    int64 `json:"videos" db:"videos"`
	Verified  bool  `json:"verified" db:"verified"`
}

// DisplayHandle returns the handle with a leading @, falling back to the username
func (a *LinkedAccount) DisplayHandle() string {
	h := a.Handle
	if h == "" {
		h = a.ExternalUsername
	}
	if h == "" || h[0] == '@' {
		return h
	}
	return "@" + h
}
