package realtime

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// PresenceData is the identity attached to a presence channel subscription.
type PresenceData struct {
	UserID   string            `json:"user_id"`
	UserInfo map[string]string `json:"user_info,omitempty"`
}

// Authenticate signs a channel subscription for the given socket. Only
// private and presence channels carry a token; for any other channel the
// returned token is empty and the subscription must be rejected.
func (h *Hub) Authenticate(socketID string, channel string, presence PresenceData) (string, error) {
	if !strings.HasPrefix(channel, "presence-") && !strings.HasPrefix(channel, "private-") {
		return "", nil
	}
	claims := jwt.MapClaims{
		"socket_id": socketID,
		"channel":   channel,
		"presence":  presence,
		"iat":       time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.secret)
}
