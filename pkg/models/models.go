// CloudMigrate Pro data model
// GORM models for users, subscriptions, usage ledger, and the MSP module

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plan is a subscription tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanStarter    Plan = "starter"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// IsValid reports whether p is a recognized plan.
func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// SubscriptionStatus mirrors the billing provider's subscription states.
// The provider's "paused" status has no local equivalent and is collapsed
// to past_due before it reaches this enum.
type SubscriptionStatus string

const (
	StatusActive             SubscriptionStatus = "active"
	StatusTrialing           SubscriptionStatus = "trialing"
	StatusPastDue            SubscriptionStatus = "past_due"
	StatusCanceled           SubscriptionStatus = "canceled"
	StatusUnpaid             SubscriptionStatus = "unpaid"
	StatusIncomplete         SubscriptionStatus = "incomplete"
	StatusIncompleteExpired  SubscriptionStatus = "incomplete_expired"
)

// Role is a member's role within an organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ProjectStatus tracks a project through the sales pipeline.
type ProjectStatus string

const (
	ProjectLead       ProjectStatus = "lead"
	ProjectQualified  ProjectStatus = "qualified"
	ProjectProposed   ProjectStatus = "proposed"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectDone       ProjectStatus = "done"
)

// IsValid reports whether s is a recognized project status.
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectLead, ProjectQualified, ProjectProposed, ProjectInProgress, ProjectDone:
		return true
	}
	return false
}

// ProposalStatus is the proposal state machine: draft -> sent (terminal).
type ProposalStatus string

const (
	ProposalDraft ProposalStatus = "draft"
	ProposalSent  ProposalStatus = "sent"
)

// User represents a CloudMigrate Pro account. Users are never hard-deleted.
type User struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email        string `json:"email" gorm:"uniqueIndex;not null"`
	Name         string `json:"name" gorm:"not null"`
	CompanyName  string `json:"company_name"`
	PasswordHash string `json:"-" gorm:"not null"`

	Subscription *Subscription `json:"subscription,omitempty" gorm:"foreignKey:UserID"`
}

// Subscription is one-to-one with User. Plan and status are only ever
// written by the billing webhook reconciliation (and the signup default);
// every other code path treats this row as read-only.
type Subscription struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint               `json:"user_id" gorm:"uniqueIndex;not null"`
	Plan   Plan               `json:"plan" gorm:"size:20;not null;default:'free'"`
	Status SubscriptionStatus `json:"status" gorm:"size:30;not null;default:'active'"`

	TrialEndsAt        *time.Time `json:"trial_ends_at"`
	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CanceledAt         *time.Time `json:"canceled_at"`

	// Opaque identifiers from the billing provider.
	StripeCustomerID     *string `json:"-" gorm:"index"`
	StripeSubscriptionID *string `json:"-" gorm:"index"`
	StripePriceID        *string `json:"-"`
}

// AppState holds the client's assessment/planning snapshot as an opaque JSON
// blob. The server interprets only the handful of fields needed for usage
// accounting; everything else passes through untouched.
type AppState struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint   `json:"user_id" gorm:"uniqueIndex;not null"`
	Data   string `json:"data" gorm:"type:text;not null"`
}

// UsageMonth is the per-user per-calendar-month usage ledger row.
// YearMonth is year*100+month (e.g. 202601). Rows for past months are
// immutable history and are never rolled forward into a new month.
type UsageMonth struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID    uint `json:"user_id" gorm:"uniqueIndex:idx_usage_user_month,priority:1;not null"`
	YearMonth int  `json:"year_month" gorm:"uniqueIndex:idx_usage_user_month,priority:2;not null"`

	Servers          int        `json:"servers" gorm:"not null;default:0"`
	Plans            int        `json:"plans" gorm:"not null;default:0"`
	ReportsThisMonth int        `json:"reports_this_month" gorm:"not null;default:0"`
	LastReportAt     *time.Time `json:"last_report_at"`
}

// Organization is an MSP tenant. Branding fields are independently nullable;
// the logo is stored inline as a base64 data URL rather than in a blob store.
type Organization struct {
	ID        string    `json:"id" gorm:"type:uuid;primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string  `json:"name" gorm:"not null"`
	Slug *string `json:"slug" gorm:"uniqueIndex"`

	BrandName         *string `json:"brandName"`
	BrandPrimaryColor *string `json:"brandPrimaryColor"`
	BrandLogoDataURL  *string `json:"brandLogoDataUrl" gorm:"type:text"`
	BrandWebsite      *string `json:"brandWebsite"`
	BrandEmail        *string `json:"brandEmail"`

	Members []OrganizationMember `json:"-" gorm:"foreignKey:OrganizationID"`
}

func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// OrganizationMember joins users to organizations with a role. Every
// organization is created with exactly one owner membership in the same
// transaction as the organization row.
type OrganizationMember struct {
	OrganizationID string    `json:"organization_id" gorm:"type:uuid;primaryKey"`
	UserID         uint      `json:"user_id" gorm:"primaryKey"`
	Role           Role      `json:"role" gorm:"size:20;not null;default:'member'"`
	CreatedAt      time.Time `json:"created_at"`
}

func (OrganizationMember) TableName() string {
	return "organization_members"
}

// Client is a customer of an organization.
type Client struct {
	ID        string    `json:"id" gorm:"type:uuid;primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrganizationID string  `json:"organization_id" gorm:"type:uuid;not null;index"`
	Name           string  `json:"name" gorm:"not null"`
	Industry       *string `json:"industry"`
	ContactEmail   *string `json:"contactEmail"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Project belongs to one organization and one of its clients. The client
// must belong to the same organization; cross-org references are rejected
// before a row is created.
type Project struct {
	ID        string    `json:"id" gorm:"type:uuid;primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrganizationID string        `json:"organization_id" gorm:"type:uuid;not null;index"`
	ClientID       string        `json:"client_id" gorm:"type:uuid;not null;index"`
	Name           string        `json:"name" gorm:"not null"`
	Status         ProjectStatus `json:"status" gorm:"size:20;not null;default:'lead'"`
	Intake         *string       `json:"intake,omitempty" gorm:"type:text"`

	Client *Client `json:"client,omitempty" gorm:"foreignKey:ClientID"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ProposalPricing is the pricing sub-record of a proposal snapshot.
type ProposalPricing struct {
	Currency string   `json:"currency"`
	OneTime  *float64 `json:"oneTime,omitempty"`
	Monthly  *float64 `json:"monthly,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

// ProposalData is the immutable content snapshot fixed when a proposal
// version is created. Editing produces a new version, never a mutation.
type ProposalData struct {
	Overview    string          `json:"overview"`
	Scope       []string        `json:"scope"`
	Pricing     ProposalPricing `json:"pricing"`
	Assumptions []string        `json:"assumptions"`
	NextSteps   []string        `json:"nextSteps"`
}

// Proposal is one immutable version in a project's proposal lineage.
// (ProjectID, Version) is unique; versions start at 1 and only grow.
// The only permitted mutation after creation is the draft->sent transition.
type Proposal struct {
	ID        string    `json:"id" gorm:"type:uuid;primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrganizationID string `json:"organization_id" gorm:"type:uuid;not null;index"`
	ProjectID      string `json:"project_id" gorm:"type:uuid;not null;uniqueIndex:idx_proposal_project_version,priority:1"`
	Version        int    `json:"version" gorm:"not null;uniqueIndex:idx_proposal_project_version,priority:2"`

	Title  string         `json:"title" gorm:"not null"`
	Data   ProposalData   `json:"data" gorm:"serializer:json"`
	Status ProposalStatus `json:"status" gorm:"size:20;not null;default:'draft'"`
	SentAt *time.Time     `json:"sent_at"`
}

func (p *Proposal) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
