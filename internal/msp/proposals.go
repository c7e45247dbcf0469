// CloudMigrate Pro proposal engine
// Append-only versioned proposals with a draft -> sent state machine

package msp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloudmigrate/pkg/models"

	"gorm.io/gorm"
)

// ErrProposalSent is returned when a caller tries to mutate a proposal
// that has already been sent. Sent proposals are immutable; changes go
// into a new version.
var ErrProposalSent = errors.New("proposal already sent")

const versionRetries = 3

// CreateProposal creates version max+1 of a proposal for a project. The
// unique (project_id, version) index backs the version race: a losing
// writer recomputes the max and retries.
func (s *Service) CreateProposal(ctx context.Context, userID uint, orgID, projectID, title string, data models.ProposalData) (*models.Proposal, error) {
	if _, err := s.Membership(ctx, userID, orgID); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: proposal title is required", ErrValidation)
	}

	var project models.Project
	err := s.db.WithContext(ctx).First(&project, "id = ?", projectID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if project.OrganizationID != orgID {
		return nil, fmt.Errorf("%w: project belongs to a different organization", ErrValidation)
	}

	return s.insertVersion(ctx, orgID, projectID, title, data)
}

// CreateVersionFrom branches a new draft from an existing proposal. The
// new version number is the max over the whole project lineage, not
// base.Version+1. Title and data copy forward unless overridden; status
// always resets to draft.
func (s *Service) CreateVersionFrom(ctx context.Context, userID uint, baseID string, title *string, data *models.ProposalData) (*models.Proposal, error) {
	base, _, err := s.proposalForUser(ctx, userID, baseID)
	if err != nil {
		return nil, err
	}

	newTitle := base.Title
	if title != nil {
		newTitle = strings.TrimSpace(*title)
		if newTitle == "" {
			return nil, fmt.Errorf("%w: proposal title is required", ErrValidation)
		}
	}
	newData := base.Data
	if data != nil {
		newData = *data
	}

	return s.insertVersion(ctx, base.OrganizationID, base.ProjectID, newTitle, newData)
}

func (s *Service) insertVersion(ctx context.Context, orgID, projectID, title string, data models.ProposalData) (*models.Proposal, error) {
	var lastErr error
	for attempt := 0; attempt < versionRetries; attempt++ {
		var maxVersion int
		err := s.db.WithContext(ctx).Model(&models.Proposal{}).
			Where("project_id = ?", projectID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error
		if err != nil {
			return nil, err
		}

		proposal := &models.Proposal{
			OrganizationID: orgID,
			ProjectID:      projectID,
			Version:        maxVersion + 1,
			Title:          title,
			Data:           data,
			Status:         models.ProposalDraft,
		}
		err = s.db.WithContext(ctx).Create(proposal).Error
		if err == nil {
			return proposal, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to allocate proposal version: %w", lastErr)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// UpdateProposal replaces a draft's title and data. Sent proposals are
// immutable.
func (s *Service) UpdateProposal(ctx context.Context, userID uint, proposalID string, title *string, data *models.ProposalData) (*models.Proposal, error) {
	proposal, _, err := s.proposalForUser(ctx, userID, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status == models.ProposalSent {
		return nil, ErrProposalSent
	}

	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: proposal title is required", ErrValidation)
		}
		proposal.Title = trimmed
	}
	if data != nil {
		proposal.Data = *data
	}

	if err := s.db.WithContext(ctx).Save(proposal).Error; err != nil {
		return nil, err
	}
	return proposal, nil
}

// Send marks a proposal sent. Owner or admin only. Sending twice is
// idempotent: the first send's timestamp is preserved.
func (s *Service) Send(ctx context.Context, userID uint, proposalID string) (*models.Proposal, error) {
	proposal, member, err := s.proposalForUser(ctx, userID, proposalID)
	if err != nil {
		return nil, err
	}
	if err := RequireRole(member, models.RoleOwner, models.RoleAdmin); err != nil {
		return nil, err
	}

	if proposal.Status == models.ProposalSent {
		return proposal, nil
	}

	now := time.Now().UTC()
	// Conditional update so concurrent sends agree on a single timestamp.
	res := s.db.WithContext(ctx).Model(&models.Proposal{}).
		Where("id = ? AND status = ?", proposal.ID, models.ProposalDraft).
		Updates(map[string]interface{}{"status": models.ProposalSent, "sent_at": now})
	if res.Error != nil {
		return nil, res.Error
	}

	if err := s.db.WithContext(ctx).First(proposal, "id = ?", proposal.ID).Error; err != nil {
		return nil, err
	}
	return proposal, nil
}

// ListProposals returns a project's proposals, newest version first.
func (s *Service) ListProposals(ctx context.Context, userID uint, projectID string) ([]models.Proposal, error) {
	if _, _, err := s.projectForUser(ctx, userID, projectID); err != nil {
		return nil, err
	}
	var proposals []models.Proposal
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("version DESC").
		Find(&proposals).Error
	return proposals, err
}

// GetProposal loads a single proposal visible to the user.
func (s *Service) GetProposal(ctx context.Context, userID uint, proposalID string) (*models.Proposal, error) {
	proposal, _, err := s.proposalForUser(ctx, userID, proposalID)
	return proposal, err
}

// Bundle carries everything the document renderer needs.
type Bundle struct {
	Organization *models.Organization
	Client       *models.Client
	Project      *models.Project
	Proposal     *models.Proposal
}

// ProposalBundle resolves the proposal together with its project, client
// and organization branding.
func (s *Service) ProposalBundle(ctx context.Context, userID uint, proposalID string) (*Bundle, error) {
	proposal, _, err := s.proposalForUser(ctx, userID, proposalID)
	if err != nil {
		return nil, err
	}

	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", proposal.ProjectID).Error; err != nil {
		return nil, err
	}
	var client models.Client
	if err := s.db.WithContext(ctx).First(&client, "id = ?", project.ClientID).Error; err != nil {
		return nil, err
	}
	var org models.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", proposal.OrganizationID).Error; err != nil {
		return nil, err
	}

	return &Bundle{
		Organization: &org,
		Client:       &client,
		Project:      &project,
		Proposal:     proposal,
	}, nil
}

func (s *Service) proposalForUser(ctx context.Context, userID uint, proposalID string) (*models.Proposal, *models.OrganizationMember, error) {
	var proposal models.Proposal
	err := s.db.WithContext(ctx).First(&proposal, "id = ?", proposalID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	member, err := s.Membership(ctx, userID, proposal.OrganizationID)
	if err != nil {
		return nil, nil, err
	}
	return &proposal, member, nil
}
