package server

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type applyAffiliateRequest struct {
	BusinessName string `json:"business_name"`
	BusinessType string `json:"business_type"`
}

func (s *Server) ApplyAffiliate(c *gin.Context) {
	var req applyAffiliateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.affiliateSvc.Apply(c.Request.Context(), currentUserID(c), req.BusinessName, req.BusinessType)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

func (s *Server) GetAffiliateProfile(c *gin.Context) {
	item, err := s.affiliateSvc.Get(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func (s *Server) ListAffiliateEarnings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	pageToken := c.Query("page_token")

	items, nextToken, err := s.affiliateSvc.ListEarnings(c.Request.Context(), currentUserID(c), limit, pageToken)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"earnings":        items,
		"next_page_token": nextToken,
	})
}

func (s *Server) ApproveAffiliate(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.affiliateSvc.Approve(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func (s *Server) RejectAffiliate(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.affiliateSvc.Reject(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}
