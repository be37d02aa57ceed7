package http

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/adapters/signal"
	"github.com/dkeye/huddle/internal/config"
	"github.com/dkeye/huddle/internal/domain"
)

const sessionUserKey = "uid"

// IdentityMiddleware resolves the caller's user id. A trusted proxy header
// wins when enabled; otherwise the id lives in the signed session cookie
// and is issued on first visit.
func IdentityMiddleware(auth config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth.TrustHeader {
			if h := c.GetHeader(auth.UserHeader); h != "" {
				uid := domain.UserID(h)
				if err := uid.Validate(); err != nil {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
					return
				}
				c.Set(signal.ContextUserKey, string(uid))
				c.Next()
				return
			}
		}

		session := sessions.Default(c)
		uid, _ := session.Get(sessionUserKey).(string)
		if uid == "" {
			uid = string(domain.NewUserID())
			session.Set(sessionUserKey, uid)
			if err := session.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(signal.ContextUserKey, uid)
		c.Next()
	}
}

func currentUser(c *gin.Context) domain.UserID {
	return domain.UserID(c.GetString(signal.ContextUserKey))
}

func handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"userId": currentUser(c)})
}
