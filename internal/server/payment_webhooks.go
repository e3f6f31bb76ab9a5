package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kadkita/kadkita/internal/billplz"
	orderdomain "github.com/kadkita/kadkita/internal/order/domain"
)

// HandleBillplzWebhook ingests one provider delivery. Replays of an already
// settled bill are acknowledged with a 200 so the provider stops retrying;
// signature failures get a 401 and settlement failures a 5xx, which the
// provider treats as "try again later".
func (s *Server) HandleBillplzWebhook(c *gin.Context) {
	payload, err := s.parseCallback(c)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	err = s.orderSvc.HandleCallback(c.Request.Context(), payload, c.GetHeader("X-Signature"))
	if err != nil {
		if errors.Is(err, orderdomain.ErrAlreadySettled) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) parseCallback(c *gin.Context) (*orderdomain.CallbackPayload, error) {
	contentType := c.ContentType()
	if strings.Contains(contentType, "json") {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		return billplz.ParseJSON(body)
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	return billplz.ParseForm(c.Request.PostForm), nil
}
