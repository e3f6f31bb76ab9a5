package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	invitationdomain "github.com/kadkita/kadkita/internal/invitation/domain"
)

type createInvitationRequest struct {
	Title     string     `json:"title" binding:"required"`
	EventDate *time.Time `json:"event_date"`
}

func (s *Server) CreateInvitation(c *gin.Context) {
	var req createInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.invitationSvc.Create(c.Request.Context(), currentUserID(c), req.Title, req.EventDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

func (s *Server) GetInvitation(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.invitationSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if item.UserID != currentUserID(c) {
		AbortWithError(c, invitationdomain.ErrInvitationNotFound)
		return
	}

	c.JSON(http.StatusOK, item)
}
