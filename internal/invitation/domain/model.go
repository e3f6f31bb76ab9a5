package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrNotOwner           = errors.New("invitation belongs to another user")
)

// Invitation is the published wedding card. Settlement flips Paid and stamps
// the purchased plan tier; everything else on it is edited elsewhere.
type Invitation struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    string       `json:"user_id" gorm:"type:text;not null;index"`
	Slug      string       `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	Title     string       `json:"title" gorm:"type:text;not null"`
	EventDate *time.Time   `json:"event_date"`
	PlanTier  string       `json:"plan_tier" gorm:"type:text"`
	Paid      bool         `json:"paid" gorm:"not null;default:false"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Invitation) TableName() string { return "invitations" }

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invitation, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Invitation, error)
	Insert(ctx context.Context, db *gorm.DB, invitation *Invitation) error
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, planTier string) error
}

type Service interface {
	Create(ctx context.Context, userID, title string, eventDate *time.Time) (*Invitation, error)
	Get(ctx context.Context, id snowflake.ID) (*Invitation, error)
}
