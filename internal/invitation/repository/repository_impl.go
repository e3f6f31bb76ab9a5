package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/kadkita/kadkita/internal/invitation/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Invitation, error) {
	var item domain.Invitation
	err := conn.WithContext(ctx).Raw(
		`SELECT id, user_id, slug, title, event_date, plan_tier, paid, created_at, updated_at
		 FROM invitations
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindBySlug(ctx context.Context, conn *gorm.DB, slug string) (*domain.Invitation, error) {
	var item domain.Invitation
	err := conn.WithContext(ctx).Raw(
		`SELECT id, user_id, slug, title, event_date, plan_tier, paid, created_at, updated_at
		 FROM invitations
		 WHERE slug = ?
		 LIMIT 1`,
		strings.TrimSpace(slug),
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, invitation *domain.Invitation) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO invitations (
			id, user_id, slug, title, event_date, plan_tier, paid, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invitation.ID,
		invitation.UserID,
		invitation.Slug,
		invitation.Title,
		invitation.EventDate,
		invitation.PlanTier,
		invitation.Paid,
		invitation.CreatedAt,
		invitation.UpdatedAt,
	).Error
}

func (r *repo) MarkPaid(ctx context.Context, conn *gorm.DB, id snowflake.ID, planTier string) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE invitations
		 SET paid = ?, plan_tier = ?, updated_at = ?
		 WHERE id = ?`,
		true,
		planTier,
		time.Now().UTC(),
		id,
	).Error
}
