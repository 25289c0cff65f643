package server

import (
	"github.com/gin-gonic/gin"
	"github.com/steadfastapp/steadfast/internal/entitlement"
	userdomain "github.com/steadfastapp/steadfast/internal/user/domain"
)

const contextUserKey = "auth_user"

// AuthRequired resolves the session token and stashes the account on the
// request context. Everything under /api except the public endpoints uses it.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserKey, user)
		c.Next()
	}
}

// RequireAdmin runs after AuthRequired.
func (s *Server) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || !user.IsAdmin() {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

// SubscriptionRequired gates app features behind a live entitlement. Runs
// after AuthRequired.
func (s *Server) SubscriptionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !entitlement.IsActive(user, s.clock.Now()) {
			AbortWithError(c, ErrSubscriptionRequired)
			return
		}
		c.Next()
	}
}

// RateLimitValidate throttles the public code validation endpoint per client
// IP before it ever hits the database.
func (s *Server) RateLimitValidate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.validateLimiter.Allow(c.Request.Context(), c.ClientIP()) {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *userdomain.User {
	value, ok := c.Get(contextUserKey)
	if !ok {
		return nil
	}
	user, ok := value.(*userdomain.User)
	if !ok {
		return nil
	}
	return user
}
