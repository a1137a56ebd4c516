// internal/api/session_middleware.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/CoffeeWithCinema/internal/models"
	"github.com/Corphon/CoffeeWithCinema/internal/services"
)

const sessionContextKey = "session"

// SessionMiddleware 通过 cookie 找到浏览器会话，没有或已过期时创建新会话
func SessionMiddleware(sessions *services.SessionService, cookieName string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(cookieName)

		sess, created := sessions.GetOrCreate(id)
		if created {
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     cookieName,
				Value:    sess.ID,
				Path:     "/",
				MaxAge:   int(ttl.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		c.Set(sessionContextKey, sess)
		c.Next()
	}
}

// currentSession 返回 SessionMiddleware 放入上下文的会话
func currentSession(c *gin.Context) *models.Session {
	if v, ok := c.Get(sessionContextKey); ok {
		if sess, ok := v.(*models.Session); ok {
			return sess
		}
	}
	return nil
}
