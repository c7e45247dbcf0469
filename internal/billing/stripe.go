// CloudMigrate Pro Stripe integration
// Checkout/portal session creation and webhook event parsing

package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"cloudmigrate/internal/logging"
	"cloudmigrate/internal/plans"
	"cloudmigrate/pkg/models"

	"github.com/stripe/stripe-go/v76"
	portalsession "github.com/stripe/stripe-go/v76/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured  = errors.New("stripe is not configured")
	ErrInvalidWebhook = errors.New("invalid webhook signature")
	ErrInvalidPlan    = errors.New("plan has no checkout price")
)

// StripeService wraps the Stripe API for subscription checkout, the billing
// portal, and webhook verification.
type StripeService struct {
	secretKey     string
	webhookSecret string
	planConfig    *plans.Config
}

// NewStripeService creates a Stripe service. An empty secretKey falls back
// to the STRIPE_SECRET_KEY environment variable.
func NewStripeService(secretKey string, planConfig *plans.Config) *StripeService {
	if secretKey == "" {
		secretKey = os.Getenv("STRIPE_SECRET_KEY")
	}
	stripe.Key = secretKey

	return &StripeService{
		secretKey:     secretKey,
		webhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		planConfig:    planConfig,
	}
}

// IsConfigured returns true if Stripe credentials are present.
func (s *StripeService) IsConfigured() bool {
	return s.secretKey != ""
}

// EnsureCustomer creates a Stripe customer for the user. The caller persists
// the returned ID only after this succeeds: the external record exists
// before any local mutation, never the other way around.
func (s *StripeService) EnsureCustomer(ctx context.Context, user *models.User) (string, error) {
	if !s.IsConfigured() {
		return "", ErrNotConfigured
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.Name),
		Metadata: map[string]string{
			"userId": strconv.FormatUint(uint64(user.ID), 10),
		},
	}
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}
	return c.ID, nil
}

// CheckoutResult is the redirect target for a newly created checkout session.
type CheckoutResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreateCheckoutSession starts a subscription checkout for a paid plan.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, customerID string, userID uint, plan models.Plan, successURL, cancelURL string) (*CheckoutResult, error) {
	if !s.IsConfigured() {
		return nil, ErrNotConfigured
	}

	priceID := s.planConfig.PriceID(plan)
	if priceID == "" {
		return nil, ErrInvalidPlan
	}

	metadata := map[string]string{
		"userId": strconv.FormatUint(uint64(userID), 10),
	}
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.Metadata = metadata

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// CreatePortalSession opens the Stripe billing portal for a customer.
func (s *StripeService) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if !s.IsConfigured() {
		return "", ErrNotConfigured
	}

	sess, err := portalsession.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create billing portal session: %w", err)
	}
	return sess.URL, nil
}

// ParseWebhook verifies a webhook payload and, for subscription-relevant
// event types, converts it to a full subscription snapshot. Events that do
// not affect the local subscription return (nil, nil) and are acknowledged
// without effect.
func (s *StripeService) ParseWebhook(payload []byte, signature string) (*Snapshot, error) {
	var event stripe.Event
	if s.webhookSecret != "" {
		var err error
		event, err = webhook.ConstructEvent(payload, signature, s.webhookSecret)
		if err != nil {
			logging.L().Warn("webhook signature verification failed", zap.Error(err))
			return nil, ErrInvalidWebhook
		}
	} else {
		// Development without a webhook secret: trust the payload shape.
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
		}
	}

	logging.L().Info("processing stripe webhook", zap.String("type", string(event.Type)))

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to parse subscription event: %w", err)
		}
		return s.snapshotFromSubscription(&sub), nil

	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("failed to parse checkout session: %w", err)
		}
		// The subscription.created event carries the authoritative state;
		// a completed checkout only links the identifiers.
		snap := &Snapshot{
			UserID:     userIDFromMetadata(sess.Metadata),
			LinkOnly:   true,
			CustomerID: stripeID(sess.Customer != nil, func() string { return sess.Customer.ID }),
		}
		if sess.Subscription != nil {
			snap.SubscriptionID = sess.Subscription.ID
		}
		return snap, nil

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("failed to parse invoice: %w", err)
		}
		if inv.Subscription == nil {
			return nil, nil
		}
		snap := &Snapshot{
			SubscriptionID: inv.Subscription.ID,
			Status:         models.StatusPastDue,
			StatusOnly:     true,
			CustomerID:     stripeID(inv.Customer != nil, func() string { return inv.Customer.ID }),
		}
		return snap, nil
	}

	return nil, nil
}

func (s *StripeService) snapshotFromSubscription(sub *stripe.Subscription) *Snapshot {
	snap := &Snapshot{
		UserID:            userIDFromMetadata(sub.Metadata),
		SubscriptionID:    sub.ID,
		Status:            plans.MapStripeStatus(string(sub.Status)),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CustomerID:        stripeID(sub.Customer != nil, func() string { return sub.Customer.ID }),
	}

	if sub.Status == stripe.SubscriptionStatusCanceled {
		snap.Status = models.StatusCanceled
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		snap.PriceID = sub.Items.Data[0].Price.ID
		if plan, ok := s.planConfig.PlanForPriceID(snap.PriceID); ok {
			snap.Plan = plan
			snap.PlanKnown = true
		}
	}

	snap.CurrentPeriodStart = unixTime(sub.CurrentPeriodStart)
	snap.CurrentPeriodEnd = unixTime(sub.CurrentPeriodEnd)
	snap.TrialEndsAt = unixTime(sub.TrialEnd)
	snap.CanceledAt = unixTime(sub.CanceledAt)

	return snap
}

func userIDFromMetadata(metadata map[string]string) uint {
	raw, ok := metadata["userId"]
	if !ok {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

func stripeID(ok bool, get func() string) string {
	if !ok {
		return ""
	}
	return get()
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
