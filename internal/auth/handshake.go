package auth

import (
	"errors"
	"time"

	"github.com/Omdevsinh-Zala/chat-backend/internal/apperr"
)

// Session is the identity attached to a live connection after a successful
// handshake. The expiry is the access credential's own expiry; downstream
// time-bound grants (attachment URLs) are scoped to what remains of it.
type Session struct {
	UserID    string
	ExpiresAt time.Time
}

func (s *Session) Remaining() time.Duration {
	return time.Until(s.ExpiresAt)
}

// AuthenticateSocket admits a live connection on the access credential alone.
// Unlike the HTTP middleware, an expired access token is never rotated over
// the socket: the client is told to re-handshake through /auth/refresh. The
// refresh token is only inspected for presence, never validated here.
func (m *Manager) AuthenticateSocket(accessToken, refreshToken string) (*Session, error) {
	if accessToken == "" && refreshToken == "" {
		return nil, apperr.Authentication("authentication required, no tokens provided")
	}
	if accessToken == "" {
		return nil, apperr.Authentication("access token missing, refresh it via /auth/refresh")
	}
	claims, err := m.ParseAccess(accessToken)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, apperr.Authentication("access token expired, refresh it via /auth/refresh")
		}
		return nil, apperr.Authentication("authentication failed, login again")
	}
	return &Session{UserID: claims.UserID, ExpiresAt: claims.ExpiresAt.Time}, nil
}
