package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"palay-drying-backend/internal/identity"
	"palay-drying-backend/internal/predict"
	"palay-drying-backend/internal/remote"
	"palay-drying-backend/internal/sensor"
	"palay-drying-backend/internal/store"
	appsync "palay-drying-backend/internal/sync"
)

// Session is the in-memory state of one logged-in account, farmer or staff.
// The password is kept only here, with the session's TTL, so sync cycles can
// re-authenticate against the remote; it is never written to the database.
type Session struct {
	AccountID int64
	Role      identity.Role
	Username  string
	Password  string
}

// Notifier schedules a drying-done reminder for a record.
type Notifier interface {
	ScheduleDryingDone(ctx context.Context, recordID int64, after time.Duration)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	remote     *remote.Client
	engine     *appsync.Engine
	predict    *predict.Client
	sensor     sensor.Reader
	notifier   Notifier
	sessions   *cache.Cache
	sessionTTL time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, rc *remote.Client, engine *appsync.Engine, pc *predict.Client, reader sensor.Reader, sessionTTL time.Duration) *Handler {
	return &Handler{
		store:      s,
		remote:     rc,
		engine:     engine,
		predict:    pc,
		sensor:     reader,
		sessions:   cache.New(sessionTTL, 2*sessionTTL),
		sessionTTL: sessionTTL,
	}
}

// SetNotifier enables drying-done reminders. Without one, record creation
// simply skips the scheduling step.
func (h *Handler) SetNotifier(n Notifier) { h.notifier = n }

const sessionKey = "session"

// RequireSession resolves the bearer token to a live session or rejects the
// request.
func (h *Handler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}
		v, found := h.sessions.Get(token)
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired, please log in again"})
			return
		}
		c.Set(sessionKey, v.(Session))
		c.Next()
	}
}

// RequireRole restricts a route to one account role. It must run after
// RequireSession.
func (h *Handler) RequireRole(role identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessionFrom(c).Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not available for this account"})
			return
		}
		c.Next()
	}
}

func sessionFrom(c *gin.Context) Session {
	return c.MustGet(sessionKey).(Session)
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
