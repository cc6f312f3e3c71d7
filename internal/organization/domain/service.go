package domain

import (
	"context"
	"errors"
)

type Service interface {
	Create(ctx context.Context, req CreateOrganizationRequest) (*OrganizationResponse, error)
	GetByID(ctx context.Context, id string) (*OrganizationResponse, error)
	GetBrandProfile(ctx context.Context) (*BrandProfile, error)
	UpsertBrandProfile(ctx context.Context, req BrandProfileRequest) (*BrandProfile, error)
}

type CreateOrganizationRequest struct {
	Name           string `json:"name"`
	DefaultModelID string `json:"default_model_id"`
}

type BrandProfileRequest struct {
	BrandName     string            `json:"brand_name"`
	Tone          string            `json:"tone"`
	Variables     map[string]string `json:"variables"`
	ContentThemes []string          `json:"content_themes"`
}

type OrganizationResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	DefaultModelID string `json:"default_model_id"`
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrOrgNotFound         = errors.New("organization_not_found")
	ErrProfileNotFound     = errors.New("brand_profile_not_found")
)
