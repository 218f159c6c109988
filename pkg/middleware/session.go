package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isabella232/xero-sso-form/internal/sessioncookie"
	"github.com/isabella232/xero-sso-form/internal/users"
)

// userKey is the gin context key the gate stores the resolved user under.
const userKey = "sessionUser"

// SessionResolver is the minimal lookup interface the gate depends on.
// Implementations return (nil, nil) when no user holds the session.
type SessionResolver interface {
	GetBySession(ctx context.Context, session string) (*users.User, error)
}

// RequireSession guards a route behind a valid recentSession cookie.
// No cookie at all redirects to the landing page (the normal anonymous case).
// A cookie that is present but tampered, expired, or matching no user renders
// the error page: that indicates stale or forged state, not anonymity.
func RequireSession(cookies *sessioncookie.Signer, resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := cookies.Read(c)
		if err != nil {
			if errors.Is(err, sessioncookie.ErrNoCookie) {
				c.Redirect(http.StatusFound, "/")
				c.Abort()
				return
			}
			abortWithErrorPage(c, http.StatusUnauthorized, "Your session could not be validated. Please sign in again.")
			return
		}

		u, err := resolver.GetBySession(c.Request.Context(), sid)
		if err != nil {
			abortWithErrorPage(c, http.StatusInternalServerError, "Could not look up your session.")
			return
		}
		if u == nil {
			abortWithErrorPage(c, http.StatusUnauthorized, "Your session is not recognised. Please sign in again.")
			return
		}

		c.Set(userKey, u)
		c.Next()
	}
}

// SessionUser returns the user resolved by RequireSession. It panics when
// called outside a gated route.
func SessionUser(c *gin.Context) *users.User {
	return c.MustGet(userKey).(*users.User)
}

func abortWithErrorPage(c *gin.Context, status int, msg string) {
	c.HTML(status, "error.html", gin.H{"Status": status, "Error": msg})
	c.Abort()
}
