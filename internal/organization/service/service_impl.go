package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/storyforge/storyforge/internal/cache"
	"github.com/storyforge/storyforge/internal/organization/domain"
	"github.com/storyforge/storyforge/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const profileCacheTTL = 5 * time.Minute

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository

	profiles cache.Cache[snowflake.ID, *domain.BrandProfile]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("organization.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		profiles: cache.NewTTLCache[snowflake.ID, *domain.BrandProfile](),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	org := &domain.Organization{
		ID:             s.genID.Generate(),
		Name:           name,
		Slug:           slug.Make(name),
		DefaultModelID: strings.TrimSpace(req.DefaultModelID),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.CreateOrganization(ctx, org); err != nil {
		return nil, err
	}

	return toResponse(org), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.OrganizationResponse, error) {
	orgID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrOrgNotFound
	}
	return toResponse(org), nil
}

func (s *Service) GetBrandProfile(ctx context.Context) (*domain.BrandProfile, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	if cached, ok := s.profiles.Get(orgID); ok {
		return cached, nil
	}

	profile, err := s.repo.GetBrandProfile(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrProfileNotFound
	}

	s.profiles.Set(orgID, profile, profileCacheTTL)
	return profile, nil
}

func (s *Service) UpsertBrandProfile(ctx context.Context, req domain.BrandProfileRequest) (*domain.BrandProfile, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	brandName := strings.TrimSpace(req.BrandName)
	if brandName == "" {
		return nil, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	profile := &domain.BrandProfile{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		BrandName:     brandName,
		Tone:          strings.TrimSpace(req.Tone),
		Variables:     datatypes.NewJSONType(req.Variables),
		ContentThemes: datatypes.NewJSONType(req.ContentThemes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.SaveBrandProfile(ctx, profile); err != nil {
		return nil, err
	}

	s.profiles.Delete(orgID)
	return profile, nil
}

func toResponse(org *domain.Organization) *domain.OrganizationResponse {
	return &domain.OrganizationResponse{
		ID:             org.ID.String(),
		Name:           org.Name,
		Slug:           org.Slug,
		DefaultModelID: org.DefaultModelID,
	}
}
