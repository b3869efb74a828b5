package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/maplenou/maplenou-api/internal/auth"
	"github.com/maplenou/maplenou-api/internal/errs"
)

const principalKey = "principal"

// TokenVerifier turns a bearer token into a principal.
type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// Auth requires a valid bearer token and stores its principal in the context.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			abort(c, errs.ErrUnauthenticated)
			return
		}

		principal, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			abort(c, errs.ErrUnauthenticated)
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireRole lets through principals holding one of roles.
// It must run after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			abort(c, errs.ErrUnauthenticated)
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		abort(c, errs.ErrForbidden)
	}
}

// GetPrincipal returns the authenticated caller.
func GetPrincipal(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

// SetPrincipal stores p as the authenticated caller.
func SetPrincipal(c *gin.Context, p auth.Principal) {
	c.Set(principalKey, p)
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errs.HTTPStatus(err), gin.H{
		"success": false,
		"message": errs.Message(err),
		"code":    errs.Code(err),
	})
}
