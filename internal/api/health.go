package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by *db.Postgres.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness; with a pinger it also reports whether the
// database answers.
func HealthHandler(pinger Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now().UTC().Format(time.RFC3339)
		if pinger != nil {
			if err := pinger.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":    "unavailable",
					"timestamp": now,
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": now,
		})
	}
}
