package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	invitationdomain "github.com/kadkita/kadkita/internal/invitation/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  invitationdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  invitationdomain.Repository
}

func NewService(p Params) invitationdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invitation.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, userID, title string, eventDate *time.Time) (*invitationdomain.Invitation, error) {
	now := time.Now().UTC()
	id := s.genID.Generate()
	item := &invitationdomain.Invitation{
		ID:        id,
		UserID:    strings.TrimSpace(userID),
		Slug:      publicSlug(title, id),
		Title:     strings.TrimSpace(title),
		EventDate: eventDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*invitationdomain.Invitation, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, invitationdomain.ErrInvitationNotFound
	}
	return item, nil
}

// publicSlug derives the shareable URL segment. The snowflake suffix keeps
// slugs unique without a retry loop on the unique index.
func publicSlug(title string, id snowflake.ID) string {
	base := slug.Make(title)
	if base == "" {
		base = "invitation"
	}
	return base + "-" + strconv.FormatInt(id.Int64()%100000, 10)
}
