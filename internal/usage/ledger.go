// CloudMigrate Pro usage ledger
// Per-user per-calendar-month counters with plan-limit enforcement

package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloudmigrate/internal/plans"
	"cloudmigrate/pkg/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// YearMonth encodes a timestamp's calendar month as year*100+month,
// e.g. 202601 for January 2026. Computed in UTC.
func YearMonth(t time.Time) int {
	t = t.UTC()
	return t.Year()*100 + int(t.Month())
}

// Declared is the server-derived usage for the set-to dimensions. Client
// submitted totals are never trusted; both values are recomputed from the
// assessment snapshot on every save.
type Declared struct {
	Servers int
	Plans   int
}

// snapshotFields is the subset of the opaque app-state blob the ledger
// reads for usage accounting. Everything else passes through uninspected.
type snapshotFields struct {
	Assessment struct {
		PhysicalServers float64 `json:"physicalServers"`
		VirtualMachines float64 `json:"virtualMachines"`
	} `json:"assessment"`
	Planning struct {
		CloudProvider     string `json:"cloudProvider"`
		MigrationStrategy string `json:"migrationStrategy"`
	} `json:"planning"`
}

// DeclaredFromSnapshot recomputes declared usage from a raw app-state
// snapshot. Servers is physical+virtual truncated to non-negative integers;
// a migration plan counts once both a provider and a strategy are chosen.
func DeclaredFromSnapshot(raw []byte) (Declared, error) {
	var snap snapshotFields
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Declared{}, fmt.Errorf("invalid app state snapshot: %w", err)
	}

	servers := clampCount(snap.Assessment.PhysicalServers) + clampCount(snap.Assessment.VirtualMachines)

	planCount := 0
	if snap.Planning.CloudProvider != "" && snap.Planning.MigrationStrategy != "" {
		planCount = 1
	}

	return Declared{Servers: servers, Plans: planCount}, nil
}

func clampCount(v float64) int {
	n := int(v)
	if n < 0 {
		return 0
	}
	return n
}

// Ledger reads and mutates UsageMonth rows. All writes go through exactly
// two paths: SetDeclared (servers/plans) and IncrementReports.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLedger creates a ledger over db using the real clock.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// NewLedgerWithClock creates a ledger with an injected clock.
func NewLedgerWithClock(db *gorm.DB, now func() time.Time) *Ledger {
	return &Ledger{db: db, now: now}
}

// CurrentMonth returns the UsageMonth row for the user's current calendar
// month, creating a zeroed row if absent. The create is an atomic
// insert-if-absent so concurrent first accesses converge on one row.
func (l *Ledger) CurrentMonth(ctx context.Context, userID uint) (*models.UsageMonth, error) {
	return l.monthRow(l.db.WithContext(ctx), userID, YearMonth(l.now()))
}

func (l *Ledger) monthRow(tx *gorm.DB, userID uint, yearMonth int) (*models.UsageMonth, error) {
	row := models.UsageMonth{UserID: userID, YearMonth: yearMonth}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "year_month"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to ensure usage month row: %w", err)
	}

	var current models.UsageMonth
	if err := tx.Where("user_id = ? AND year_month = ?", userID, yearMonth).
		First(&current).Error; err != nil {
		return nil, fmt.Errorf("failed to load usage month row: %w", err)
	}
	return &current, nil
}

// SetDeclared checks the declared totals against the plan's ceilings and,
// only if both pass, persists them on the current month's row. A denied
// check leaves the ledger untouched; the limit check and the write are one
// decision inside a single transaction.
func (l *Ledger) SetDeclared(ctx context.Context, userID uint, limits plans.Limits, declared Declared) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return l.SetDeclaredTx(tx, userID, limits, declared)
	})
}

// SetDeclaredTx is SetDeclared inside a caller-owned transaction, so a
// snapshot write and its usage update can commit or fail together.
func (l *Ledger) SetDeclaredTx(tx *gorm.DB, userID uint, limits plans.Limits, declared Declared) error {
	if err := plans.CheckDeclared("servers", limits.MaxServers, declared.Servers); err != nil {
		return err
	}
	if err := plans.CheckDeclared("plans", limits.MaxPlans, declared.Plans); err != nil {
		return err
	}

	yearMonth := YearMonth(l.now())
	if _, err := l.monthRow(tx, userID, yearMonth); err != nil {
		return err
	}
	return tx.Model(&models.UsageMonth{}).
		Where("user_id = ? AND year_month = ?", userID, yearMonth).
		Updates(map[string]interface{}{
			"servers": declared.Servers,
			"plans":   declared.Plans,
		}).Error
}

// IncrementReports atomically bumps the monthly report counter if it is
// still under the plan's ceiling, stamping last_report_at. The compare and
// the increment are a single conditional UPDATE so two concurrent calls at
// the ceiling cannot both pass. Returns the updated row on success.
func (l *Ledger) IncrementReports(ctx context.Context, userID uint, limits plans.Limits) (*models.UsageMonth, error) {
	now := l.now().UTC()
	yearMonth := YearMonth(now)

	var updated models.UsageMonth
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := l.monthRow(tx, userID, yearMonth); err != nil {
			return err
		}

		res := tx.Model(&models.UsageMonth{}).
			Where("user_id = ? AND year_month = ?", userID, yearMonth).
			Where("? = ? OR reports_this_month < ?", limits.MaxReportsPerMonth, plans.Unlimited, limits.MaxReportsPerMonth).
			Updates(map[string]interface{}{
				"reports_this_month": gorm.Expr("reports_this_month + 1"),
				"last_report_at":     now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to increment report count: %w", res.Error)
		}

		if err := tx.Where("user_id = ? AND year_month = ?", userID, yearMonth).
			First(&updated).Error; err != nil {
			return err
		}

		if res.RowsAffected == 0 {
			return plans.CheckIncrement("reports", limits.MaxReportsPerMonth, updated.ReportsThisMonth)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
