// CloudMigrate Pro subscription reconciliation
// Applies webhook-derived subscription snapshots to the local store

package billing

import (
	"context"
	"time"

	"cloudmigrate/internal/logging"
	"cloudmigrate/pkg/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Snapshot is the subscription state extracted from a single Stripe event.
// Whole-snapshot application keeps reconciliation idempotent: replaying the
// same event converges on the same row.
type Snapshot struct {
	UserID             uint
	CustomerID         string
	SubscriptionID     string
	PriceID            string
	Plan               models.Plan
	PlanKnown          bool
	Status             models.SubscriptionStatus
	CancelAtPeriodEnd  bool
	TrialEndsAt        *time.Time
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CanceledAt         *time.Time

	// LinkOnly snapshots (checkout completion) attach Stripe identifiers
	// without touching plan or status.
	LinkOnly bool
	// StatusOnly snapshots (payment failure) update status alone.
	StatusOnly bool
}

// Reconciler applies subscription snapshots to user subscriptions.
type Reconciler struct {
	db *gorm.DB
}

func NewReconciler(db *gorm.DB) *Reconciler {
	return &Reconciler{db: db}
}

// ApplySnapshot resolves the snapshot to a local subscription and applies
// it, returning the affected user's ID so callers can invalidate derived
// state. Snapshots that cannot be matched to a known user return a zero ID
// without effect so Stripe does not retry them forever.
func (r *Reconciler) ApplySnapshot(ctx context.Context, snap *Snapshot) (uint, error) {
	if snap == nil {
		return 0, nil
	}

	var userID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := r.resolve(tx, snap)
		if err != nil {
			return err
		}
		if sub == nil {
			logging.L().Warn("webhook did not match any local subscription",
				zap.String("stripe_subscription_id", snap.SubscriptionID),
				zap.String("stripe_customer_id", snap.CustomerID))
			return nil
		}

		if snap.CustomerID != "" {
			sub.StripeCustomerID = strPtr(snap.CustomerID)
		}
		if snap.SubscriptionID != "" {
			sub.StripeSubscriptionID = strPtr(snap.SubscriptionID)
		}

		switch {
		case snap.LinkOnly:
			// Identifiers only; subscription.created carries the rest.
		case snap.StatusOnly:
			sub.Status = snap.Status
		default:
			if snap.PlanKnown {
				sub.Plan = snap.Plan
			}
			sub.Status = snap.Status
			sub.CancelAtPeriodEnd = snap.CancelAtPeriodEnd
			sub.TrialEndsAt = snap.TrialEndsAt
			sub.CurrentPeriodStart = snap.CurrentPeriodStart
			sub.CurrentPeriodEnd = snap.CurrentPeriodEnd
			sub.CanceledAt = snap.CanceledAt
			if snap.PriceID != "" {
				sub.StripePriceID = strPtr(snap.PriceID)
			}
		}

		if err := tx.Save(sub).Error; err != nil {
			return err
		}
		userID = sub.UserID

		logging.L().Info("reconciled subscription",
			zap.Uint("user_id", sub.UserID),
			zap.String("plan", string(sub.Plan)),
			zap.String("status", string(sub.Status)))
		return nil
	})
	return userID, err
}

// resolve finds the local subscription the snapshot refers to, trying
// explicit user metadata first, then the Stripe subscription ID, then the
// Stripe customer ID.
func (r *Reconciler) resolve(tx *gorm.DB, snap *Snapshot) (*models.Subscription, error) {
	var sub models.Subscription

	if snap.UserID != 0 {
		err := tx.Where("user_id = ?", snap.UserID).First(&sub).Error
		if err == nil {
			return &sub, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}

	if snap.SubscriptionID != "" {
		err := tx.Where("stripe_subscription_id = ?", snap.SubscriptionID).First(&sub).Error
		if err == nil {
			return &sub, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}

	if snap.CustomerID != "" {
		err := tx.Where("stripe_customer_id = ?", snap.CustomerID).First(&sub).Error
		if err == nil {
			return &sub, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}

	return nil, nil
}

func strPtr(s string) *string {
	return &s
}
