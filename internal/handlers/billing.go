// CloudMigrate Pro billing endpoints
// Checkout, billing portal and the Stripe webhook

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"cloudmigrate/internal/billing"
	"cloudmigrate/internal/logging"
	"cloudmigrate/internal/metrics"
	"cloudmigrate/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxWebhookSize bounds webhook payload reads.
const maxWebhookSize = 1 << 20

// CreateCheckout starts a subscription checkout for a paid plan.
func (h *Handler) CreateCheckout(c *gin.Context) {
	userID := mustUserID(c)
	ctx := c.Request.Context()

	var input struct {
		Plan models.Plan `json:"plan"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || !input.Plan.IsValid() || input.Plan == models.PlanFree {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.Auth.UserByID(ctx, userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	customerID, err := h.ensureStripeCustomer(c, user)
	if err != nil {
		internalError(c, err)
		return
	}

	result, err := h.Stripe.CreateCheckoutSession(ctx, customerID, userID, input.Plan,
		h.AppBaseURL+"/billing/success", h.AppBaseURL+"/billing/cancel")
	if err != nil {
		if errors.Is(err, billing.ErrInvalidPlan) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreatePortal opens the Stripe billing portal.
func (h *Handler) CreatePortal(c *gin.Context) {
	userID := mustUserID(c)
	ctx := c.Request.Context()

	user, err := h.Auth.UserByID(ctx, userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if user.Subscription == nil || user.Subscription.StripeCustomerID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	url, err := h.Stripe.CreatePortalSession(ctx, *user.Subscription.StripeCustomerID, h.AppBaseURL+"/billing")
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Webhook receives Stripe events, verifies the signature and applies the
// derived subscription snapshot. Unmatched events are acknowledged so
// Stripe stops retrying.
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	eventType := peekEventType(payload)
	snap, err := h.Stripe.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, billing.ErrInvalidWebhook) {
			metrics.Get().RecordWebhook(eventType, "rejected")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		metrics.Get().RecordWebhook(eventType, "error")
		internalError(c, err)
		return
	}
	if snap == nil {
		metrics.Get().RecordWebhook(eventType, "ignored")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	userID, err := h.Reconciler.ApplySnapshot(c.Request.Context(), snap)
	if err != nil {
		logging.L().Error("failed to apply subscription snapshot", zap.Error(err))
		metrics.Get().RecordWebhook(eventType, "error")
		internalError(c, err)
		return
	}

	if h.Cache != nil && userID != 0 {
		h.Cache.InvalidateOverview(c.Request.Context(), userID)
	}
	metrics.Get().RecordWebhook(eventType, "applied")
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// ensureStripeCustomer returns the user's Stripe customer ID, creating
// the remote customer first and persisting the ID only after that
// succeeds.
func (h *Handler) ensureStripeCustomer(c *gin.Context, user *models.User) (string, error) {
	if user.Subscription != nil && user.Subscription.StripeCustomerID != nil {
		return *user.Subscription.StripeCustomerID, nil
	}

	ctx := c.Request.Context()
	customerID, err := h.Stripe.EnsureCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	err = h.Database.DB.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ?", user.ID).
		Update("stripe_customer_id", customerID).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return "", err
	}
	return customerID, nil
}

func peekEventType(payload []byte) string {
	var probe struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(payload, &probe) != nil || probe.Type == "" {
		return "unknown"
	}
	return probe.Type
}
