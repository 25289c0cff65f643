package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/steadfastapp/steadfast/internal/auth/domain"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	user, err := s.authSvc.Register(c.Request.Context(), authdomain.RegisterRequest{
		Email:    strings.TrimSpace(req.Email),
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": user})
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.authSvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:     strings.TrimSpace(req.Email),
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"user_id":    result.UserID,
		"token":      result.RawToken,
		"expires_at": result.ExpiresAt,
	}})
}

func (s *Server) Logout(c *gin.Context) {
	if token, ok := s.sessions.ReadToken(c); ok {
		if err := s.authSvc.Logout(c.Request.Context(), token); err != nil {
			AbortWithError(c, err)
			return
		}
	}
	s.sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "logged_out"}})
}

func (s *Server) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": currentUser(c)})
}
