package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	orderdomain "github.com/kadkita/kadkita/internal/order/domain"
)

type checkoutRequest struct {
	PlanID       string `json:"plan_id" binding:"required"`
	InvitationID string `json:"invitation_id"`
	CouponCode   string `json:"coupon_code"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	RedirectURL  string `json:"redirect_url"`
}

func (s *Server) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": s.catalog.List(c.Request.Context())})
}

func (s *Server) CreateCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	checkout := orderdomain.CheckoutRequest{
		UserID:      currentUserID(c),
		PlanID:      req.PlanID,
		CouponCode:  req.CouponCode,
		Email:       req.Email,
		Name:        req.Name,
		Phone:       req.Phone,
		RedirectURL: req.RedirectURL,
	}
	if req.InvitationID != "" {
		id, err := snowflake.ParseString(req.InvitationID)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		checkout.InvitationID = &id
	}

	result, err := s.orderSvc.CreateCheckout(c.Request.Context(), checkout)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"order_id":     result.OrderID.String(),
		"checkout_url": result.CheckoutURL,
		"amount":       result.Amount,
		"free":         result.Free,
	})
}

func (s *Server) GetOrder(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if item.UserID != currentUserID(c) {
		// Hide other users' orders rather than admitting they exist.
		AbortWithError(c, orderdomain.ErrOrderNotFound)
		return
	}

	c.JSON(http.StatusOK, item)
}
