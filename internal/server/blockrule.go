package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	blockruledomain "github.com/steadfastapp/steadfast/internal/blockrule/domain"
)

// GetBlockRules returns the latest active rule set for a platform, or every
// active set when no platform is given. Clients poll this to pick up new
// versions.
func (s *Server) GetBlockRules(c *gin.Context) {
	platform := strings.ToLower(strings.TrimSpace(c.Query("platform")))
	if platform == "" {
		rules, err := s.blockRuleSvc.ListActive(c.Request.Context())
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rules})
		return
	}

	rule, err := s.blockRuleSvc.LatestActive(c.Request.Context(), blockruledomain.Platform(platform))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rule})
}
