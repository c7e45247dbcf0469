// CloudMigrate Pro MSP workspace
// Organizations, memberships, clients and projects

package msp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"cloudmigrate/pkg/models"

	"gorm.io/gorm"
)

var (
	// ErrNotFound covers both missing records and records the caller has
	// no membership for. Callers cannot distinguish the two cases.
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("insufficient role")
	ErrValidation = errors.New("invalid request")
)

// Patch is a tri-state JSON field: absent leaves the target untouched,
// explicit null clears it, a value sets it.
type Patch[T any] struct {
	Present bool
	Valid   bool
	Value   T
}

func (p *Patch[T]) UnmarshalJSON(data []byte) error {
	p.Present = true
	if string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, &p.Value); err != nil {
		return err
	}
	p.Valid = true
	return nil
}

// apply writes the patch into a nullable column.
func (p Patch[T]) apply(target **T) {
	if !p.Present {
		return
	}
	if !p.Valid {
		*target = nil
		return
	}
	v := p.Value
	*target = &v
}

// Service implements the multi-tenant MSP workspace on top of GORM.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Membership loads the caller's membership in an organization. Missing
// organizations and organizations the caller does not belong to both
// return ErrNotFound.
func (s *Service) Membership(ctx context.Context, userID uint, orgID string) (*models.OrganizationMember, error) {
	return membership(s.db.WithContext(ctx), userID, orgID)
}

func membership(tx *gorm.DB, userID uint, orgID string) (*models.OrganizationMember, error) {
	var member models.OrganizationMember
	err := tx.Where("organization_id = ? AND user_id = ?", orgID, userID).First(&member).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// RequireRole checks the membership against an allowed role set.
func RequireRole(member *models.OrganizationMember, roles ...models.Role) error {
	for _, role := range roles {
		if member.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// OrganizationInput is the organization creation payload. Initial branding
// can be seeded here; everything else goes through the branding patch.
type OrganizationInput struct {
	Name              string  `json:"name"`
	Slug              *string `json:"slug"`
	BrandName         *string `json:"brandName"`
	BrandPrimaryColor *string `json:"brandPrimaryColor"`
}

// CreateOrganization creates an organization and enrolls the creator as
// its owner in one transaction.
func (s *Service) CreateOrganization(ctx context.Context, userID uint, input OrganizationInput) (*models.Organization, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: organization name is required", ErrValidation)
	}
	if input.BrandPrimaryColor != nil && !hexColorPattern.MatchString(*input.BrandPrimaryColor) {
		return nil, fmt.Errorf("%w: primary color must be a hex color", ErrValidation)
	}

	org := &models.Organization{
		Name:              name,
		Slug:              input.Slug,
		BrandName:         input.BrandName,
		BrandPrimaryColor: input.BrandPrimaryColor,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return err
		}
		member := &models.OrganizationMember{
			OrganizationID: org.ID,
			UserID:         userID,
			Role:           models.RoleOwner,
		}
		return tx.Create(member).Error
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// OrganizationWithRole pairs an organization with the caller's role in it.
// Clients use the role to decide which actions to offer (branding edits
// and proposal sends are owner/admin only).
type OrganizationWithRole struct {
	models.Organization
	Role models.Role `json:"role"`
}

// ListOrganizations returns the organizations the user belongs to, each
// annotated with the user's own role.
func (s *Service) ListOrganizations(ctx context.Context, userID uint) ([]OrganizationWithRole, error) {
	var orgs []OrganizationWithRole
	err := s.db.WithContext(ctx).
		Model(&models.Organization{}).
		Select("organizations.*, organization_members.role").
		Joins("JOIN organization_members ON organization_members.organization_id = organizations.id").
		Where("organization_members.user_id = ?", userID).
		Order("organizations.created_at").
		Find(&orgs).Error
	return orgs, err
}

// BrandingPatch is the tri-state branding update payload.
type BrandingPatch struct {
	BrandName         Patch[string] `json:"brandName"`
	BrandPrimaryColor Patch[string] `json:"brandPrimaryColor"`
	BrandLogoDataURL  Patch[string] `json:"brandLogoDataUrl"`
	BrandWebsite      Patch[string] `json:"brandWebsite"`
	BrandEmail        Patch[string] `json:"brandEmail"`
}

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

func validateLogoDataURL(raw string) error {
	var b64 string
	switch {
	case strings.HasPrefix(raw, "data:image/png;base64,"):
		b64 = strings.TrimPrefix(raw, "data:image/png;base64,")
	case strings.HasPrefix(raw, "data:image/jpeg;base64,"):
		b64 = strings.TrimPrefix(raw, "data:image/jpeg;base64,")
	default:
		return fmt.Errorf("%w: logo must be a base64 png or jpeg data URL", ErrValidation)
	}
	if _, err := base64.StdEncoding.DecodeString(b64); err != nil {
		return fmt.Errorf("%w: logo is not valid base64", ErrValidation)
	}
	return nil
}

// UpdateBranding applies a branding patch. Owner or admin only. Absent
// fields are kept, explicit nulls clear, values replace.
func (s *Service) UpdateBranding(ctx context.Context, userID uint, orgID string, patch BrandingPatch) (*models.Organization, error) {
	member, err := s.Membership(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	if err := RequireRole(member, models.RoleOwner, models.RoleAdmin); err != nil {
		return nil, err
	}

	if patch.BrandPrimaryColor.Present && patch.BrandPrimaryColor.Valid &&
		!hexColorPattern.MatchString(patch.BrandPrimaryColor.Value) {
		return nil, fmt.Errorf("%w: primary color must be a hex color", ErrValidation)
	}
	if patch.BrandLogoDataURL.Present && patch.BrandLogoDataURL.Valid {
		if err := validateLogoDataURL(patch.BrandLogoDataURL.Value); err != nil {
			return nil, err
		}
	}

	var org models.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", orgID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	patch.BrandName.apply(&org.BrandName)
	patch.BrandPrimaryColor.apply(&org.BrandPrimaryColor)
	patch.BrandLogoDataURL.apply(&org.BrandLogoDataURL)
	patch.BrandWebsite.apply(&org.BrandWebsite)
	patch.BrandEmail.apply(&org.BrandEmail)

	if err := s.db.WithContext(ctx).Save(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// CreateClient adds a client to an organization the caller belongs to.
func (s *Service) CreateClient(ctx context.Context, userID uint, orgID, name string, industry, contactEmail *string) (*models.Client, error) {
	if _, err := s.Membership(ctx, userID, orgID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: client name is required", ErrValidation)
	}

	client := &models.Client{
		OrganizationID: orgID,
		Name:           name,
		Industry:       industry,
		ContactEmail:   contactEmail,
	}
	if err := s.db.WithContext(ctx).Create(client).Error; err != nil {
		return nil, err
	}
	return client, nil
}

// ListClients returns an organization's clients, newest first.
func (s *Service) ListClients(ctx context.Context, userID uint, orgID string) ([]models.Client, error) {
	if _, err := s.Membership(ctx, userID, orgID); err != nil {
		return nil, err
	}
	var clients []models.Client
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		Find(&clients).Error
	return clients, err
}

// CreateProject adds a project under a client. The client must belong to
// the same organization, otherwise the request is invalid.
func (s *Service) CreateProject(ctx context.Context, userID uint, orgID, clientID, name string, status models.ProjectStatus, intake *string) (*models.Project, error) {
	if _, err := s.Membership(ctx, userID, orgID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrValidation)
	}
	if status == "" {
		status = models.ProjectLead
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown project status", ErrValidation)
	}

	var client models.Client
	err := s.db.WithContext(ctx).First(&client, "id = ?", clientID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if client.OrganizationID != orgID {
		return nil, fmt.Errorf("%w: client belongs to a different organization", ErrValidation)
	}

	project := &models.Project{
		OrganizationID: orgID,
		ClientID:       clientID,
		Name:           name,
		Status:         status,
		Intake:         intake,
	}
	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjects returns a client's projects, newest first. The client is
// resolved first so an unknown client and a client in a foreign
// organization both read as not found.
func (s *Service) ListProjects(ctx context.Context, userID uint, clientID string) ([]models.Project, error) {
	var client models.Client
	err := s.db.WithContext(ctx).First(&client, "id = ?", clientID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.Membership(ctx, userID, client.OrganizationID); err != nil {
		return nil, err
	}

	var projects []models.Project
	err = s.db.WithContext(ctx).
		Preload("Client").
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Find(&projects).Error
	return projects, err
}

// projectForUser resolves a project and verifies membership, collapsing
// missing and invisible projects into ErrNotFound.
func (s *Service) projectForUser(ctx context.Context, userID uint, projectID string) (*models.Project, *models.OrganizationMember, error) {
	var project models.Project
	err := s.db.WithContext(ctx).First(&project, "id = ?", projectID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	member, err := s.Membership(ctx, userID, project.OrganizationID)
	if err != nil {
		return nil, nil, err
	}
	return &project, member, nil
}
