package pdf

import (
	"testing"
	"time"

	"cloudmigrate/internal/msp"
	"cloudmigrate/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func sampleBundle() *msp.Bundle {
	one := 12000.0
	monthly := 800.0
	sentAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return &msp.Bundle{
		Organization: &models.Organization{
			ID:                "org-1",
			Name:              "Acme MSP",
			BrandName:         strp("Acme Cloud Services"),
			BrandPrimaryColor: strp("#0a7"),
			BrandWebsite:      strp("https://acme.example"),
			BrandEmail:        strp("hello@acme.example"),
		},
		Client: &models.Client{
			ID:           "client-1",
			Name:         "Globex Corp",
			ContactEmail: strp("it@globex.example"),
		},
		Project: &models.Project{
			ID:   "project-1",
			Name: "Datacenter Exit",
		},
		Proposal: &models.Proposal{
			ID:      "prop-1",
			Version: 3,
			Title:   "Cloud Migration Proposal",
			Status:  models.ProposalSent,
			SentAt:  &sentAt,
			Data: models.ProposalData{
				Overview:    "Migrate 40 workloads to the cloud over two quarters.",
				Scope:       []string{"Discovery and assessment", "Wave planning", "Cutover"},
				Pricing:     models.ProposalPricing{Currency: "EUR", OneTime: &one, Monthly: &monthly, Notes: "Travel billed separately."},
				Assumptions: []string{"Network connectivity is in place before wave 1."},
				NextSteps:   []string{"Countersign and schedule the kickoff workshop."},
			},
		},
	}
}

func TestRenderProducesPDF(t *testing.T) {
	out, err := Render(sampleBundle())
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestRenderMinimalBundle(t *testing.T) {
	bundle := &msp.Bundle{
		Organization: &models.Organization{ID: "org-1", Name: "Acme MSP"},
		Client:       &models.Client{ID: "client-1", Name: "Globex"},
		Project:      &models.Project{ID: "project-1", Name: "Migration"},
		Proposal: &models.Proposal{
			ID:      "prop-1",
			Version: 1,
			Title:   "Draft Proposal",
			Status:  models.ProposalDraft,
		},
	}
	out, err := Render(bundle)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestRenderSkipsInvalidLogo(t *testing.T) {
	bundle := sampleBundle()
	bundle.Organization.BrandLogoDataURL = strp("data:image/png;base64,not-base64!")
	out, err := Render(bundle)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestBrandColorParsing(t *testing.T) {
	org := &models.Organization{BrandPrimaryColor: strp("#ff8000")}
	r, g, b := brandColor(org)
	assert.Equal(t, []int{255, 128, 0}, []int{r, g, b})

	org.BrandPrimaryColor = strp("#fff")
	r, g, b = brandColor(org)
	assert.Equal(t, []int{255, 255, 255}, []int{r, g, b})

	// Unset falls back to the default accent.
	r, g, b = brandColor(&models.Organization{})
	assert.Equal(t, []int{37, 99, 235}, []int{r, g, b})
}
