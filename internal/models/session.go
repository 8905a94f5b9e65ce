package models

import "time"

// SessionInfo is the pool-visible view of a live browser session. The
// browser handle itself stays inside the pool; callers see identity, timing
// and free-form metadata only.
type SessionInfo struct {
	ID         string                 `json:"id"`
	CreatedAt  time.Time              `json:"created_at"`
	LastUsedAt time.Time              `json:"last_used_at"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// IdleFor reports how long the session has been unused.
func (s *SessionInfo) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastUsedAt)
}
