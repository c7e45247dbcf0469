// CloudMigrate Pro app state endpoints
// Opaque snapshot storage with entitlement-checked usage recomputation

package handlers

import (
	"errors"
	"io"
	"net/http"

	"cloudmigrate/internal/metrics"
	"cloudmigrate/internal/plans"
	"cloudmigrate/internal/usage"
	"cloudmigrate/pkg/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxStateSize bounds the stored snapshot at 1MB.
const maxStateSize = 1 << 20

// GetAppState returns the stored snapshot, or an empty object for fresh
// accounts.
func (h *Handler) GetAppState(c *gin.Context) {
	userID := mustUserID(c)

	var state models.AppState
	err := h.Database.DB.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).First(&state).Error
	if err == gorm.ErrRecordNotFound {
		c.Data(http.StatusOK, "application/json", []byte("{}"))
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(state.Data))
}

// PutAppState persists the snapshot and recomputes declared usage from
// it. The entitlement check gates both writes: a denial stores nothing.
func (h *Handler) PutAppState(c *gin.Context) {
	userID := mustUserID(c)
	ctx := c.Request.Context()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxStateSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if len(body) > maxStateSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "invalid_request"})
		return
	}

	declared, err := usage.DeclaredFromSnapshot(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	limits, err := h.currentLimits(c)
	if err != nil {
		internalError(c, err)
		return
	}

	err = h.Database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := h.Ledger.SetDeclaredTx(tx, userID, limits, declared); err != nil {
			return err
		}
		state := models.AppState{UserID: userID, Data: string(body)}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).Create(&state).Error
	})
	if err != nil {
		var limitErr *plans.LimitError
		if errors.As(err, &limitErr) {
			limitDenied(c, limitErr)
			return
		}
		internalError(c, err)
		return
	}

	if h.Cache != nil {
		h.Cache.InvalidateOverview(ctx, userID)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "usage": declared})
}

// ReportUsage records one generated report against the monthly quota.
func (h *Handler) ReportUsage(c *gin.Context) {
	userID := mustUserID(c)
	ctx := c.Request.Context()

	limits, err := h.currentLimits(c)
	if err != nil {
		internalError(c, err)
		return
	}

	month, err := h.Ledger.IncrementReports(ctx, userID, limits)
	if err != nil {
		var limitErr *plans.LimitError
		if errors.As(err, &limitErr) {
			limitDenied(c, limitErr)
			return
		}
		internalError(c, err)
		return
	}

	metrics.Get().ReportsTotal.Inc()
	if h.Cache != nil {
		h.Cache.InvalidateOverview(ctx, userID)
	}
	c.JSON(http.StatusOK, gin.H{"usage": month})
}

// currentLimits resolves the caller's plan limits from the live
// subscription row, never from cache.
func (h *Handler) currentLimits(c *gin.Context) (plans.Limits, error) {
	userID := mustUserID(c)

	var sub models.Subscription
	err := h.Database.DB.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).First(&sub).Error
	if err == gorm.ErrRecordNotFound {
		return plans.ForPlan(models.PlanFree), nil
	}
	if err != nil {
		return plans.Limits{}, err
	}
	return plans.ForPlan(sub.Plan), nil
}
