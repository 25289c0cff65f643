package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type createGiftCodeRequest struct {
	DurationMonths int `json:"duration_months"`
}

type redeemGiftCodeRequest struct {
	Code string `json:"code"`
}

func (s *Server) CreateGiftCode(c *gin.Context) {
	var req createGiftCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	user := currentUser(c)
	code, err := s.giftCodeSvc.Generate(c.Request.Context(), user.ID, req.DurationMonths)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": code})
}

func (s *Server) RedeemGiftCode(c *gin.Context) {
	var req redeemGiftCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	user := currentUser(c)
	result, err := s.giftCodeSvc.Redeem(c.Request.Context(), user.ID, strings.TrimSpace(req.Code))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) DeleteGiftCode(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	user := currentUser(c)
	if err := s.giftCodeSvc.Delete(c.Request.Context(), user.ID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "deleted"}})
}

func (s *Server) ListGiftCodes(c *gin.Context) {
	user := currentUser(c)
	codes, err := s.giftCodeSvc.List(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": codes})
}
