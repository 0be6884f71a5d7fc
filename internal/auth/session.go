package auth

// SessionData represents the authenticated session context for a request
type SessionData struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenID   string `json:"token_id"`
	ExpiresAt int64  `json:"expires_at"`
}

// IsAdmin reports whether the session belongs to an admin
func (s *SessionData) IsAdmin() bool {
	return s.Role == "admin"
}
