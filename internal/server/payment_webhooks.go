package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const signatureHeader = "X-Webhook-Signature"

// PaymentWebhook ingests provider events. Duplicate deliveries return 200 so
// the provider stops retrying; signature failures return 401 and are retried
// on the provider side until the secret mismatch is fixed.
func (s *Server) PaymentWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.paymentSvc.ProcessWebhook(c.Request.Context(), rawBody, c.GetHeader(signatureHeader))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
