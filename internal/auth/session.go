package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wuwenbin0122/recipebox/internal/utils"
)

const sessionKeyID = "sid"

// CookieSessions installs the signed cookie that carries the session id.
func CookieSessions(cfg utils.SessionConfig) gin.HandlerFunc {
	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(cfg.CookieName, store)
}

// SessionManager binds the cookie's opaque session id to a user id.
// Handlers using it must run behind CookieSessions.
type SessionManager struct {
	bindings Bindings
	ttl      time.Duration
	newID    func() string
}

func NewSessionManager(bindings Bindings, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{bindings: bindings, ttl: ttl, newID: uuid.NewString}
}

// Start binds the client to userID under a freshly issued session id.
func (m *SessionManager) Start(c *gin.Context, userID int64) error {
	ctx := c.Request.Context()
	session := sessions.Default(c)

	if old, ok := session.Get(sessionKeyID).(string); ok && old != "" {
		if err := m.bindings.Unbind(ctx, old); err != nil {
			return fmt.Errorf("session: drop previous binding: %w", err)
		}
	}

	sid := m.newID()
	if err := m.bindings.Bind(ctx, sid, userID, m.ttl); err != nil {
		return fmt.Errorf("session: bind: %w", err)
	}

	session.Set(sessionKeyID, sid)
	if err := session.Save(); err != nil {
		_ = m.bindings.Unbind(ctx, sid)
		return fmt.Errorf("session: save cookie: %w", err)
	}

	return nil
}

// Current returns the user id bound to the client's session, if any.
func (m *SessionManager) Current(c *gin.Context) (int64, bool, error) {
	sid, ok := sessions.Default(c).Get(sessionKeyID).(string)
	if !ok || sid == "" {
		return 0, false, nil
	}

	userID, found, err := m.bindings.Lookup(c.Request.Context(), sid)
	if err != nil {
		return 0, false, fmt.Errorf("session: lookup: %w", err)
	}
	return userID, found, nil
}

// End unbinds the client's session and clears the cookie. It reports
// whether a bound session existed.
func (m *SessionManager) End(c *gin.Context) (bool, error) {
	session := sessions.Default(c)
	sid, ok := session.Get(sessionKeyID).(string)
	if !ok || sid == "" {
		return false, nil
	}

	ctx := c.Request.Context()
	_, bound, err := m.bindings.Lookup(ctx, sid)
	if err != nil {
		return false, fmt.Errorf("session: lookup: %w", err)
	}

	if err := m.bindings.Unbind(ctx, sid); err != nil {
		return false, fmt.Errorf("session: unbind: %w", err)
	}

	session.Clear()
	if err := session.Save(); err != nil {
		return bound, fmt.Errorf("session: clear cookie: %w", err)
	}

	return bound, nil
}
