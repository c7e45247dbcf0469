// CloudMigrate Pro MSP endpoints
// Organizations, clients, projects and proposals

package handlers

import (
	"net/http"
	"time"

	"cloudmigrate/internal/metrics"
	"cloudmigrate/internal/msp"
	"cloudmigrate/internal/pdf"
	"cloudmigrate/pkg/models"

	"github.com/gin-gonic/gin"
)

// ListOrgs returns the caller's organizations with their role in each.
func (h *Handler) ListOrgs(c *gin.Context) {
	orgs, err := h.MSP.ListOrganizations(c.Request.Context(), mustUserID(c))
	if err != nil {
		mspError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

// CreateOrg creates an organization owned by the caller. Initial branding
// may be supplied in the same request.
func (h *Handler) CreateOrg(c *gin.Context) {
	var input msp.OrganizationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	org, err := h.MSP.CreateOrganization(c.Request.Context(), mustUserID(c), input)
	if err != nil {
		mspError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"organization": org})
}

// UpdateBranding applies a tri-state branding patch.
func (h *Handler) UpdateBranding(c *gin.Context) {
	var patch msp.BrandingPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	org, err := h.MSP.UpdateBranding(c.Request.Context(), mustUserID(c), c.Param("id"), patch)
	if err != nil {
		mspError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organization": org})
}

// ListClients returns an organization's clients.
func (h *Handler) ListClients(c *gin.Context) {
	orgID := c.Query("organizationId")
	if orgID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	clients, err := h.MSP.ListClients(c.Request.Context(), mustUserID(c), orgID)
	if err != nil {
		mspError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

// CreateClient adds a client to an organization.
func (h *Handler) CreateClient(c *gin.Context) {
	var input struct {
		OrganizationID string  `json:"organizationId"`
		Name           string  `json:"name"`
		Industry       *string `json:"industry"`
		ContactEmail   *string `json:"contactEmail"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.OrganizationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	client, err := h.MSP.CreateClient(c.Request.Context(), mustUserID(c),
		input.OrganizationID, input.Name, input.Industry, input.ContactEmail)
	if err != nil {
		mspError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"client": client})
}

// ListProjects returns a client's projects.
func (h *Handler) ListProjects(c *gin.Context) {
	clientID := c.Query("clientId")
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	projects, err := h.MSP.ListProjects(c.Request.Context(), mustUserID(c), clientID)
	if err != nil {
		mspError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// CreateProject adds a project under a client.
func (h *Handler) CreateProject(c *gin.Context) {
	var input struct {
		OrganizationID string               `json:"organizationId"`
		ClientID       string               `json:"clientId"`
		Name           string               `json:"name"`
		Status         models.ProjectStatus `json:"status"`
		Intake         *string              `json:"intake"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.OrganizationID == "" || input.ClientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	project, err := h.MSP.CreateProject(c.Request.Context(), mustUserID(c),
		input.OrganizationID, input.ClientID, input.Name, input.Status, input.Intake)
	if err != nil {
		mspError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": project})
}

// ListProposals returns a project's proposals, newest version first.
func (h *Handler) ListProposals(c *gin.Context) {
	projectID := c.Query("projectId")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	proposals, err := h.MSP.ListProposals(c.Request.Context(), mustUserID(c), projectID)
	if err != nil {
		mspError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

// CreateProposal creates the next proposal version for a project.
func (h *Handler) CreateProposal(c *gin.Context) {
	var input struct {
		OrganizationID string              `json:"organizationId"`
		ProjectID      string              `json:"projectId"`
		Title          string              `json:"title"`
		Data           models.ProposalData `json:"data"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.OrganizationID == "" || input.ProjectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	proposal, err := h.MSP.CreateProposal(c.Request.Context(), mustUserID(c),
		input.OrganizationID, input.ProjectID, input.Title, input.Data)
	if err != nil {
		mspError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"proposal": proposal})
}

// BranchProposal creates a new draft version from an existing proposal.
func (h *Handler) BranchProposal(c *gin.Context) {
	var input struct {
		Title *string              `json:"title"`
		Data  *models.ProposalData `json:"data"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	proposal, err := h.MSP.CreateVersionFrom(c.Request.Context(), mustUserID(c),
		c.Param("id"), input.Title, input.Data)
	if err != nil {
		mspError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"proposal": proposal})
}

// SendProposal marks a proposal sent.
func (h *Handler) SendProposal(c *gin.Context) {
	proposal, err := h.MSP.Send(c.Request.Context(), mustUserID(c), c.Param("id"))
	if err != nil {
		mspError(c, err)
		return
	}
	metrics.Get().ProposalsSentTotal.Inc()
	c.JSON(http.StatusOK, gin.H{"proposal": proposal})
}

// ProposalPDF renders the proposal as a branded PDF document.
func (h *Handler) ProposalPDF(c *gin.Context) {
	bundle, err := h.MSP.ProposalBundle(c.Request.Context(), mustUserID(c), c.Param("id"))
	if err != nil {
		mspError(c, err)
		return
	}

	start := time.Now()
	doc, err := pdf.Render(bundle)
	if err != nil {
		internalError(c, err)
		return
	}
	m := metrics.Get()
	m.PDFRendersTotal.Inc()
	m.PDFRenderDuration.Observe(time.Since(start).Seconds())

	c.Header("Content-Disposition", `attachment; filename="proposal.pdf"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}
