package domain

import "time"

// PersonalAccessToken is an API token. The tenant it resolves to is threaded
// explicitly through every service call; nothing downstream reads it from
// ambient state.
type PersonalAccessToken struct {
	ID        int64
	TokenHash string
	UserID    int64
	TenantID  string
	Abilities string
	ExpiresAt *time.Time
}
