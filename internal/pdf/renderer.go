// CloudMigrate Pro proposal renderer
// Renders a proposal bundle to a branded PDF document

package pdf

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"cloudmigrate/internal/msp"
	"cloudmigrate/pkg/models"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageMargin = 18.0
	logoHeight = 16.0
	defaultHex = "#2563eb"
)

// Render produces the PDF for a resolved proposal bundle. It reads only
// from the bundle and has no side effects.
func Render(bundle *msp.Bundle) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, pageMargin)

	r, g, b := brandColor(bundle.Organization)
	proposal := bundle.Proposal

	doc.SetFooterFunc(func() {
		doc.SetY(-14)
		doc.SetFont("Helvetica", "", 8)
		doc.SetTextColor(130, 130, 130)
		state := "Draft"
		if proposal.Status == models.ProposalSent && proposal.SentAt != nil {
			state = "Sent " + proposal.SentAt.Format("2006-01-02")
		}
		doc.CellFormat(0, 6, fmt.Sprintf("%s  |  Version %d  |  %s",
			brandName(bundle.Organization), proposal.Version, state), "", 0, "C", false, 0, "")
	})

	doc.AddPage()
	renderHeader(doc, bundle.Organization, r, g, b)
	renderClientBlock(doc, bundle)
	renderTitle(doc, proposal, r, g, b)
	renderBody(doc, &proposal.Data, r, g, b)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render proposal pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func renderHeader(doc *gofpdf.Fpdf, org *models.Organization, r, g, b int) {
	y := doc.GetY()
	if org.BrandLogoDataURL != nil {
		if name, ok := registerLogo(doc, *org.BrandLogoDataURL); ok {
			doc.ImageOptions(name, pageMargin, y, 0, logoHeight, false,
				gofpdf.ImageOptions{}, 0, "")
			doc.SetY(y + logoHeight + 4)
		}
	}

	doc.SetFont("Helvetica", "B", 18)
	doc.SetTextColor(r, g, b)
	doc.CellFormat(0, 10, brandName(org), "", 1, "L", false, 0, "")

	doc.SetFont("Helvetica", "", 9)
	doc.SetTextColor(90, 90, 90)
	var contact []string
	if org.BrandWebsite != nil {
		contact = append(contact, *org.BrandWebsite)
	}
	if org.BrandEmail != nil {
		contact = append(contact, *org.BrandEmail)
	}
	if len(contact) > 0 {
		doc.CellFormat(0, 5, strings.Join(contact, "   "), "", 1, "L", false, 0, "")
	}

	doc.Ln(2)
	doc.SetDrawColor(r, g, b)
	doc.SetLineWidth(0.6)
	x := doc.GetX()
	doc.Line(x, doc.GetY(), 210-pageMargin, doc.GetY())
	doc.Ln(6)
}

func renderClientBlock(doc *gofpdf.Fpdf, bundle *msp.Bundle) {
	doc.SetFont("Helvetica", "", 10)
	doc.SetTextColor(60, 60, 60)
	doc.CellFormat(0, 5, "Prepared for: "+bundle.Client.Name, "", 1, "L", false, 0, "")
	if bundle.Client.ContactEmail != nil {
		doc.CellFormat(0, 5, *bundle.Client.ContactEmail, "", 1, "L", false, 0, "")
	}
	doc.CellFormat(0, 5, "Project: "+bundle.Project.Name, "", 1, "L", false, 0, "")
	doc.CellFormat(0, 5, time.Now().UTC().Format("January 2, 2006"), "", 1, "L", false, 0, "")
	doc.Ln(4)
}

func renderTitle(doc *gofpdf.Fpdf, proposal *models.Proposal, r, g, b int) {
	doc.SetFont("Helvetica", "B", 15)
	doc.SetTextColor(20, 20, 20)
	doc.MultiCell(0, 8, proposal.Title, "", "L", false)
	doc.SetFont("Helvetica", "", 10)
	doc.SetTextColor(r, g, b)
	doc.CellFormat(0, 6, fmt.Sprintf("Version %d", proposal.Version), "", 1, "L", false, 0, "")
	doc.Ln(3)
}

func renderBody(doc *gofpdf.Fpdf, data *models.ProposalData, r, g, b int) {
	if data.Overview != "" {
		sectionHeading(doc, "Overview", r, g, b)
		paragraph(doc, data.Overview)
	}
	if len(data.Scope) > 0 {
		sectionHeading(doc, "Scope of Work", r, g, b)
		bulletList(doc, data.Scope)
	}
	renderPricing(doc, &data.Pricing, r, g, b)
	if len(data.Assumptions) > 0 {
		sectionHeading(doc, "Assumptions", r, g, b)
		bulletList(doc, data.Assumptions)
	}
	if len(data.NextSteps) > 0 {
		sectionHeading(doc, "Next Steps", r, g, b)
		bulletList(doc, data.NextSteps)
	}
}

func renderPricing(doc *gofpdf.Fpdf, pricing *models.ProposalPricing, r, g, b int) {
	if pricing.OneTime == nil && pricing.Monthly == nil && pricing.Notes == "" {
		return
	}
	sectionHeading(doc, "Pricing", r, g, b)

	currency := pricing.Currency
	if currency == "" {
		currency = "USD"
	}

	doc.SetFont("Helvetica", "", 10)
	doc.SetTextColor(40, 40, 40)
	doc.SetFillColor(245, 245, 245)
	if pricing.OneTime != nil {
		doc.CellFormat(90, 7, "One-time fee", "1", 0, "L", true, 0, "")
		doc.CellFormat(84, 7, fmt.Sprintf("%.2f %s", *pricing.OneTime, currency), "1", 1, "R", false, 0, "")
	}
	if pricing.Monthly != nil {
		doc.CellFormat(90, 7, "Monthly fee", "1", 0, "L", true, 0, "")
		doc.CellFormat(84, 7, fmt.Sprintf("%.2f %s / month", *pricing.Monthly, currency), "1", 1, "R", false, 0, "")
	}
	if pricing.Notes != "" {
		doc.Ln(1)
		doc.SetFont("Helvetica", "I", 9)
		doc.SetTextColor(90, 90, 90)
		doc.MultiCell(0, 5, pricing.Notes, "", "L", false)
	}
	doc.Ln(3)
}

func sectionHeading(doc *gofpdf.Fpdf, title string, r, g, b int) {
	doc.SetFont("Helvetica", "B", 12)
	doc.SetTextColor(r, g, b)
	doc.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
}

func paragraph(doc *gofpdf.Fpdf, text string) {
	doc.SetFont("Helvetica", "", 10)
	doc.SetTextColor(40, 40, 40)
	doc.MultiCell(0, 5.5, text, "", "L", false)
	doc.Ln(3)
}

func bulletList(doc *gofpdf.Fpdf, items []string) {
	doc.SetFont("Helvetica", "", 10)
	doc.SetTextColor(40, 40, 40)
	for _, item := range items {
		doc.CellFormat(6, 5.5, "-", "", 0, "L", false, 0, "")
		doc.MultiCell(0, 5.5, item, "", "L", false)
	}
	doc.Ln(3)
}

func brandName(org *models.Organization) string {
	if org.BrandName != nil && *org.BrandName != "" {
		return *org.BrandName
	}
	return org.Name
}

// brandColor parses the organization's 3- or 6-digit hex primary color,
// falling back to the default blue.
func brandColor(org *models.Organization) (int, int, int) {
	hex := defaultHex
	if org.BrandPrimaryColor != nil && *org.BrandPrimaryColor != "" {
		hex = *org.BrandPrimaryColor
	}
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		hex = strings.TrimPrefix(defaultHex, "#")
	}
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return 37, 99, 235
	}
	return r, g, b
}

// registerLogo decodes a base64 png/jpeg data URL into the document's
// image registry. Invalid logos are skipped rather than failing the render.
func registerLogo(doc *gofpdf.Fpdf, dataURL string) (string, bool) {
	var imageType, b64 string
	switch {
	case strings.HasPrefix(dataURL, "data:image/png;base64,"):
		imageType, b64 = "PNG", strings.TrimPrefix(dataURL, "data:image/png;base64,")
	case strings.HasPrefix(dataURL, "data:image/jpeg;base64,"):
		imageType, b64 = "JPEG", strings.TrimPrefix(dataURL, "data:image/jpeg;base64,")
	default:
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", false
	}
	name := "org-logo"
	doc.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(raw))
	if doc.Err() {
		// Clear the error so the rest of the document still renders.
		doc.ClearError()
		return "", false
	}
	return name, true
}
