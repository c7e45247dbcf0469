// CloudMigrate Pro subscription plan catalog
// Static tier limits plus Stripe price/status mapping

package plans

import (
	"os"

	"cloudmigrate/pkg/models"
)

// Unlimited is the sentinel for dimensions with no ceiling.
const Unlimited = -1

// Limits defines the usage ceilings for a plan. Each value is a
// non-negative integer or Unlimited.
type Limits struct {
	MaxServers         int `json:"maxServers"`
	MaxPlans           int `json:"maxPlans"`
	MaxReportsPerMonth int `json:"maxReportsPerMonth"`
}

// ForPlan returns the limits for a plan. Unknown or missing plans fall
// back to the free tier's limits.
func ForPlan(plan models.Plan) Limits {
	switch plan {
	case models.PlanStarter:
		return Limits{MaxServers: 20, MaxPlans: 3, MaxReportsPerMonth: 5}
	case models.PlanPro:
		return Limits{MaxServers: 100, MaxPlans: Unlimited, MaxReportsPerMonth: Unlimited}
	case models.PlanEnterprise:
		return Limits{MaxServers: Unlimited, MaxPlans: Unlimited, MaxReportsPerMonth: Unlimited}
	default:
		return Limits{MaxServers: 5, MaxPlans: 1, MaxReportsPerMonth: 1}
	}
}

// TrialDays is the trial period granted when a paid plan is chosen at signup.
const TrialDays = 14

// Config holds the environment-based Stripe price configuration.
type Config struct {
	StripePriceStarter    string
	StripePricePro        string
	StripePriceEnterprise string
}

// LoadConfig reads the Stripe price IDs from the environment.
func LoadConfig() *Config {
	return &Config{
		StripePriceStarter:    os.Getenv("STRIPE_PRICE_STARTER"),
		StripePricePro:        os.Getenv("STRIPE_PRICE_PRO"),
		StripePriceEnterprise: os.Getenv("STRIPE_PRICE_ENTERPRISE"),
	}
}

// PriceID returns the Stripe price ID for a paid plan, or "" for free or
// unknown plans.
func (c *Config) PriceID(plan models.Plan) string {
	switch plan {
	case models.PlanStarter:
		return c.StripePriceStarter
	case models.PlanPro:
		return c.StripePricePro
	case models.PlanEnterprise:
		return c.StripePriceEnterprise
	}
	return ""
}

// PlanForPriceID maps a Stripe price ID back to a plan. An empty price ID
// means free; an unrecognized one reports ok=false so the caller can keep
// the previously stored plan instead of silently downgrading.
func (c *Config) PlanForPriceID(priceID string) (models.Plan, bool) {
	switch {
	case priceID == "":
		return models.PlanFree, true
	case c.StripePriceStarter != "" && priceID == c.StripePriceStarter:
		return models.PlanStarter, true
	case c.StripePricePro != "" && priceID == c.StripePricePro:
		return models.PlanPro, true
	case c.StripePriceEnterprise != "" && priceID == c.StripePriceEnterprise:
		return models.PlanEnterprise, true
	}
	return models.PlanFree, false
}

// MapStripeStatus maps a Stripe subscription status string to the local
// enum. Stripe's "paused" has no local state and collapses to past_due.
func MapStripeStatus(status string) models.SubscriptionStatus {
	switch status {
	case "active":
		return models.StatusActive
	case "trialing":
		return models.StatusTrialing
	case "past_due", "paused":
		return models.StatusPastDue
	case "canceled":
		return models.StatusCanceled
	case "unpaid":
		return models.StatusUnpaid
	case "incomplete":
		return models.StatusIncomplete
	case "incomplete_expired":
		return models.StatusIncompleteExpired
	default:
		return models.StatusIncomplete
	}
}
