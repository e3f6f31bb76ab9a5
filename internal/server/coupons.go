package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	coupondomain "github.com/kadkita/kadkita/internal/coupon/domain"
)

type validateCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

func (s *Server) ValidateCoupon(c *gin.Context) {
	var req validateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.couponSvc.Validate(c.Request.Context(), req.Code)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// House coupons have no owning business; referral coupons surface it.
	businessName := ""
	if item.AffiliateID != nil {
		owner, err := s.affiliateRepo.FindByID(c.Request.Context(), s.db, *item.AffiliateID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if owner != nil {
			businessName = owner.BusinessName
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"code":           item.Code,
		"discount_type":  item.DiscountType,
		"discount_value": item.DiscountValue,
		"business_name":  businessName,
	})
}

type createCouponRequest struct {
	Code          string          `json:"code" binding:"required"`
	DiscountType  string          `json:"discount_type" binding:"required"`
	DiscountValue decimal.Decimal `json:"discount_value" binding:"required"`
	MaxUses       *int            `json:"max_uses"`
	ExpiresAt     *time.Time      `json:"expires_at"`
}

func (s *Server) CreateCoupon(c *gin.Context) {
	var req createCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.couponSvc.Create(c.Request.Context(), &coupondomain.Coupon{
		Code:          req.Code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		MaxUses:       req.MaxUses,
		ExpiresAt:     req.ExpiresAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}
