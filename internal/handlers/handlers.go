// CloudMigrate Pro HTTP handlers
// Session endpoints and the account overview

package handlers

import (
	"errors"
	"net/http"

	"cloudmigrate/internal/auth"
	"cloudmigrate/internal/billing"
	"cloudmigrate/internal/cache"
	"cloudmigrate/internal/db"
	"cloudmigrate/internal/metrics"
	"cloudmigrate/internal/middleware"
	"cloudmigrate/internal/msp"
	"cloudmigrate/internal/plans"
	"cloudmigrate/internal/usage"
	"cloudmigrate/pkg/models"

	"github.com/gin-gonic/gin"
)

// Handler carries the services behind the HTTP surface.
type Handler struct {
	Database   *db.Database
	Auth       *auth.Service
	JWT        *auth.JWTService
	Cookies    *auth.CookieConfig
	Ledger     *usage.Ledger
	Stripe     *billing.StripeService
	Reconciler *billing.Reconciler
	MSP        *msp.Service
	Cache      *cache.Cache
	AppBaseURL string
}

// Signup creates an account and opens a session.
func (h *Handler) Signup(c *gin.Context) {
	var input auth.SignupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.Auth.Signup(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
		case errors.Is(err, auth.ErrInvalidSignup):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		default:
			internalError(c, err)
		}
		return
	}

	plan := input.Plan
	if plan == "" {
		plan = models.PlanFree
	}
	metrics.Get().SignupsTotal.WithLabelValues(string(plan)).Inc()

	if !h.openSession(c, user.ID) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login authenticates and opens a session.
func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.Auth.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		internalError(c, err)
		return
	}

	if !h.openSession(c, user.ID) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout clears the session cookie.
func (h *Handler) Logout(c *gin.Context) {
	auth.ClearTokenCookie(c, h.Cookies)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// overviewPayload is the /api/me response body.
type overviewPayload struct {
	User         *models.User         `json:"user"`
	Subscription *models.Subscription `json:"subscription"`
	Usage        *models.UsageMonth   `json:"usage"`
	Limits       plans.Limits         `json:"limits"`
}

// Me returns the account overview: user, subscription, current month
// usage and the active plan's limits. Served from cache when possible;
// the cache never feeds entitlement checks.
func (h *Handler) Me(c *gin.Context) {
	userID := mustUserID(c)
	ctx := c.Request.Context()

	var cached overviewPayload
	if h.Cache != nil && h.Cache.GetOverview(ctx, userID, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	user, err := h.Auth.UserByID(ctx, userID)
	if err != nil {
		// The cookie outlived the account.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	month, err := h.Ledger.CurrentMonth(ctx, userID)
	if err != nil {
		internalError(c, err)
		return
	}

	payload := overviewPayload{
		User:         user,
		Subscription: user.Subscription,
		Usage:        month,
		Limits:       limitsFor(user.Subscription),
	}
	if h.Cache != nil {
		h.Cache.SetOverview(ctx, userID, payload)
	}
	c.JSON(http.StatusOK, payload)
}

// Health reports service liveness and database reachability.
func (h *Handler) Health(c *gin.Context) {
	if err := h.Database.Health(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) openSession(c *gin.Context, userID uint) bool {
	token, err := h.JWT.GenerateToken(userID)
	if err != nil {
		internalError(c, err)
		return false
	}
	auth.SetTokenCookie(c, token, h.Cookies)
	return true
}

func limitsFor(sub *models.Subscription) plans.Limits {
	if sub == nil {
		return plans.ForPlan(models.PlanFree)
	}
	return plans.ForPlan(sub.Plan)
}

// mustUserID reads the session user set by the auth middleware.
func mustUserID(c *gin.Context) uint {
	id, _ := middleware.UserID(c)
	return id
}

func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

// limitDenied writes the structured 403 for an entitlement denial.
func limitDenied(c *gin.Context, limitErr *plans.LimitError) {
	metrics.Get().RecordLimitDenial(limitErr.Dimension)
	c.JSON(http.StatusForbidden, gin.H{
		"error": limitErr.Code(),
		"limit": limitErr.Limit,
	})
}

// mspError maps MSP service errors onto the uniform error payloads.
func mspError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, msp.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, msp.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, msp.ErrProposalSent):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, msp.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
	default:
		internalError(c, err)
	}
}
