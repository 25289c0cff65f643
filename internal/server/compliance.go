package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	compliancedomain "github.com/steadfastapp/steadfast/internal/compliance/domain"
)

type recordViolationRequest struct {
	Type   string `json:"type"`
	RuleID string `json:"rule_id,omitempty"`
}

func (s *Server) RecordViolation(c *gin.Context) {
	var req recordViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	user := currentUser(c)

	// rule_id is informational: an unparseable or unknown id does not block
	// the violation itself.
	var ruleID *snowflake.ID
	if trimmed := strings.TrimSpace(req.RuleID); trimmed != "" {
		if parsed, err := snowflake.ParseString(trimmed); err == nil {
			ruleID = &parsed
		}
	}

	result, err := s.complianceSvc.RecordViolation(c.Request.Context(), compliancedomain.RecordViolationRequest{
		UserID: user.ID,
		Type:   compliancedomain.ViolationType(strings.TrimSpace(req.Type)),
		RuleID: ruleID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) GetComplianceStatus(c *gin.Context) {
	user := currentUser(c)
	status, err := s.complianceSvc.GetStatus(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": status})
}

func (s *Server) RecoverScore(c *gin.Context) {
	user := currentUser(c)
	result, err := s.complianceSvc.RecoverScore(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) CompleteOnboarding(c *gin.Context) {
	user := currentUser(c)
	if err := s.complianceSvc.CompleteOnboarding(c.Request.Context(), user.ID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "onboarded"}})
}
