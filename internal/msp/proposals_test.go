package msp

import (
	"context"
	"testing"

	"cloudmigrate/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type proposalFixture struct {
	svc     *Service
	db      *gorm.DB
	owner   *models.User
	member  *models.User
	org     *models.Organization
	project *models.Project
}

func newProposalFixture(t *testing.T) *proposalFixture {
	t.Helper()
	svc, db := newTestService(t)
	ctx := context.Background()

	owner := newUser(t, db, "owner@example.com")
	member := newUser(t, db, "member@example.com")
	org, err := svc.CreateOrganization(ctx, owner.ID, OrganizationInput{Name: "Acme MSP"})
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.OrganizationMember{
		OrganizationID: org.ID, UserID: member.ID, Role: models.RoleMember,
	}).Error)

	client, err := svc.CreateClient(ctx, owner.ID, org.ID, "Client", nil, nil)
	require.NoError(t, err)
	project, err := svc.CreateProject(ctx, owner.ID, org.ID, client.ID, "Migration", "", nil)
	require.NoError(t, err)

	return &proposalFixture{svc: svc, db: db, owner: owner, member: member, org: org, project: project}
}

func sampleData() models.ProposalData {
	one := 5000.0
	return models.ProposalData{
		Overview: "Lift and shift to the cloud",
		Scope:    []string{"Assessment", "Migration", "Validation"},
		Pricing:  models.ProposalPricing{Currency: "USD", OneTime: &one},
	}
}

func TestCreateProposalVersionsAreSequential(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()

	p1, err := f.svc.CreateProposal(ctx, f.owner.ID, f.org.ID, f.project.ID, "Proposal", sampleData())
	require.NoError(t, err)
	assert.Equal(t, 1, p1.Version)
	assert.Equal(t, models.ProposalDraft, p1.Status)

	p2, err := f.svc.CreateProposal(ctx, f.member.ID, f.org.ID, f.project.ID, "Proposal v2", sampleData())
	require.NoError(t, err)
	assert.Equal(t, 2, p2.Version)

	list, err := f.svc.ListProposals(ctx, f.owner.ID, f.project.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Version)
	assert.Equal(t, 1, list[1].Version)
}

func TestCreateVersionFromUsesLineageMax(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()

	p1, err := f.svc.CreateProposal(ctx, f.owner.ID, f.org.ID, f.project.ID, "Proposal", sampleData())
	require.NoError(t, err)
	_, err = f.svc.CreateProposal(ctx, f.owner.ID, f.org.ID, f.project.ID, "Proposal v2", sampleData())
	require.NoError(t, err)
	_, err = f.svc.CreateProposal(ctx, f.owner.ID, f.org.ID, f.project.ID, "Proposal v3", sampleData())
	require.NoError(t, err)

	// Branching from version 1 takes the project max, not base+1.
	branch, err := f.svc.CreateVersionFrom(ctx, f.owner.ID, p1.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, branch.Version)
	assert.Equal(t, p1.Title, branch.Title)
	assert.Equal(t, p1.Data.Overview, branch.Data.Overview)
	assert.Equal(t, models.ProposalDraft, branch.Status)
	assert.Nil(t, branch.SentAt)
}

func TestCreateVersionFromSentBaseResetsToDraft(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()

	p1, err := f.svc.CreateProposal(ctx, f.owner.ID, f.org.ID, f.project.ID, "Proposal", sampleData())
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, f.owner.ID, p1.ID)
	require.NoError(t, err)

	title := "Revised"
	branch, err := f.svc.CreateVersionFrom(ctx, f.owner.ID, p1.ID, &title, nil)
	require.NoError(t, err)
	assert.Equal(t, "Revised", branch.Title)
	assert.Equal(t, models.ProposalDraft, branch.Status)
	assert.Nil(t, branch.SentAt)
}

func TestSendIsOwnerAdminOnlyAndIdempotent(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreateProposal(ctx, f.owner.ID, f.org.ID, f.project.ID, "Proposal", sampleData())
	require.NoError(t, err)

	_, err = f.svc.Send(ctx, f.member.ID, p.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	sent, err := f.svc.Send(ctx, f.owner.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	firstSentAt := *sent.SentAt

	again, err := f.svc.Send(ctx, f.owner.ID, p.ID)
	require.NoError(t, err)
	require.NotNil(t, again.SentAt)
	assert.True(t, firstSentAt.Equal(*again.SentAt))
}

func TestSentProposalIsImmutable(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreateProposal(ctx, f.owner.ID, f.org.ID, f.project.ID, "Proposal", sampleData())
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, f.owner.ID, p.ID)
	require.NoError(t, err)

	title := "Edited"
	_, err = f.svc.UpdateProposal(ctx, f.owner.ID, p.ID, &title, nil)
	assert.ErrorIs(t, err, ErrProposalSent)

	reloaded, err := f.svc.GetProposal(ctx, f.owner.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Proposal", reloaded.Title)
}

func TestUpdateDraftProposal(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreateProposal(ctx, f.owner.ID, f.org.ID, f.project.ID, "Proposal", sampleData())
	require.NoError(t, err)

	title := "Refined"
	data := sampleData()
	data.Overview = "Replatform onto managed services"
	updated, err := f.svc.UpdateProposal(ctx, f.owner.ID, p.ID, &title, &data)
	require.NoError(t, err)
	assert.Equal(t, "Refined", updated.Title)
	assert.Equal(t, "Replatform onto managed services", updated.Data.Overview)
	assert.Equal(t, p.Version, updated.Version)
}

func TestProposalInvisibleToOutsiders(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()
	outsider := newUser(t, f.db, "outsider@example.com")

	p, err := f.svc.CreateProposal(ctx, f.owner.ID, f.org.ID, f.project.ID, "Proposal", sampleData())
	require.NoError(t, err)

	_, err = f.svc.GetProposal(ctx, outsider.ID, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Send(ctx, outsider.ID, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.ProposalBundle(ctx, outsider.ID, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateProposalCrossTenantProject(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()

	other := newUser(t, f.db, "other@example.com")
	orgB, err := f.svc.CreateOrganization(ctx, other.ID, OrganizationInput{Name: "Org B"})
	require.NoError(t, err)
	require.NoError(t, f.db.Create(&models.OrganizationMember{
		OrganizationID: orgB.ID, UserID: f.owner.ID, Role: models.RoleMember,
	}).Error)

	// Owner is in both orgs, but the project belongs to the first.
	_, err = f.svc.CreateProposal(ctx, f.owner.ID, orgB.ID, f.project.ID, "Proposal", sampleData())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProposalBundleResolvesGraph(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreateProposal(ctx, f.owner.ID, f.org.ID, f.project.ID, "Proposal", sampleData())
	require.NoError(t, err)

	bundle, err := f.svc.ProposalBundle(ctx, f.owner.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, f.org.ID, bundle.Organization.ID)
	assert.Equal(t, f.project.ID, bundle.Project.ID)
	assert.Equal(t, f.project.ClientID, bundle.Client.ID)
	assert.Equal(t, p.ID, bundle.Proposal.ID)
}
