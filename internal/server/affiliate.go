package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	affiliatedomain "github.com/steadfastapp/steadfast/internal/affiliate/domain"
)

type payoutRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
	BankDetails string `json:"bank_details,omitempty"`
}

func (s *Server) GetAffiliateStats(c *gin.Context) {
	user := currentUser(c)
	stats, err := s.affiliateSvc.GetStats(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *Server) GetAffiliateLeaderboard(c *gin.Context) {
	entries, err := s.affiliateSvc.GetLeaderboard(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// ValidateAffiliateCode is public: the checkout page calls it before the
// visitor has an account. Only the owner's display name leaves the API.
func (s *Server) ValidateAffiliateCode(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	owner, err := s.affiliateSvc.ValidateCode(c.Request.Context(), code)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": owner})
}

func (s *Server) RequestPayout(c *gin.Context) {
	var req payoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	user := currentUser(c)
	result, err := s.affiliateSvc.RequestPayout(c.Request.Context(), affiliatedomain.PayoutRequest{
		UserID:      user.ID,
		AmountCents: req.AmountCents,
		Method:      affiliatedomain.PayoutMethod(strings.TrimSpace(req.Method)),
		BankDetails: strings.TrimSpace(req.BankDetails),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
