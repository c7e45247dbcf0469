package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloudmigrate/internal/plans"
	"cloudmigrate/pkg/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UsageMonth{}))
	return db
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestYearMonth(t *testing.T) {
	assert.Equal(t, 202401, YearMonth(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, 202412, YearMonth(time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC)))
	// computed in UTC, not local time
	loc := time.FixedZone("UTC+13", 13*3600)
	assert.Equal(t, 202401, YearMonth(time.Date(2024, 2, 1, 3, 0, 0, 0, loc)))
}

func TestDeclaredFromSnapshot(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Declared
	}{
		{
			name: "servers sum physical and virtual",
			raw:  `{"assessment":{"physicalServers":3,"virtualMachines":4}}`,
			want: Declared{Servers: 7, Plans: 0},
		},
		{
			name: "negative counts clamp to zero",
			raw:  `{"assessment":{"physicalServers":-5,"virtualMachines":2}}`,
			want: Declared{Servers: 2, Plans: 0},
		},
		{
			name: "fractional counts truncate",
			raw:  `{"assessment":{"physicalServers":2.9,"virtualMachines":0}}`,
			want: Declared{Servers: 2, Plans: 0},
		},
		{
			name: "plan requires both provider and strategy",
			raw:  `{"planning":{"cloudProvider":"aws","migrationStrategy":"lift-shift"}}`,
			want: Declared{Servers: 0, Plans: 1},
		},
		{
			name: "provider alone is not a plan",
			raw:  `{"planning":{"cloudProvider":"aws"}}`,
			want: Declared{Servers: 0, Plans: 0},
		},
		{
			name: "unknown fields ignored",
			raw:  `{"assessment":{"physicalServers":1,"currentCost":500},"dashboard":{"x":1}}`,
			want: Declared{Servers: 1, Plans: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeclaredFromSnapshot([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DeclaredFromSnapshot([]byte("not json"))
	assert.Error(t, err)
}

func TestCurrentMonthCreatesZeroedRow(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerWithClock(db, fixedClock(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)))

	row, err := ledger.CurrentMonth(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 202401, row.YearMonth)
	assert.Equal(t, 0, row.Servers)
	assert.Equal(t, 0, row.ReportsThisMonth)
	assert.Nil(t, row.LastReportAt)

	// Second access returns the same row, not a duplicate.
	again, err := ledger.CurrentMonth(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, row.ID, again.ID)

	var count int64
	db.Model(&models.UsageMonth{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSetDeclaredWithinLimit(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerWithClock(db, fixedClock(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)))
	free := plans.ForPlan(models.PlanFree)

	// Exactly at the ceiling is allowed (inclusive check).
	err := ledger.SetDeclared(context.Background(), 1, free, Declared{Servers: 5, Plans: 1})
	require.NoError(t, err)

	row, err := ledger.CurrentMonth(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, row.Servers)
	assert.Equal(t, 1, row.Plans)
}

func TestSetDeclaredOverLimitLeavesLedgerUnchanged(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerWithClock(db, fixedClock(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)))
	free := plans.ForPlan(models.PlanFree)

	require.NoError(t, ledger.SetDeclared(context.Background(), 1, free, Declared{Servers: 5, Plans: 0}))

	err := ledger.SetDeclared(context.Background(), 1, free, Declared{Servers: 6, Plans: 0})
	var limitErr *plans.LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, "limit_servers", limitErr.Code())
	assert.Equal(t, 5, limitErr.Limit)

	// The denied write left the last allowed value in place.
	row, err := ledger.CurrentMonth(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, row.Servers)
}

func TestSetDeclaredAllowedAfterUpgrade(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerWithClock(db, fixedClock(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)))

	free := plans.ForPlan(models.PlanFree)
	err := ledger.SetDeclared(context.Background(), 1, free, Declared{Servers: 6, Plans: 0})
	assert.Error(t, err)

	// After an external upgrade to starter the same declaration passes.
	starter := plans.ForPlan(models.PlanStarter)
	require.NoError(t, ledger.SetDeclared(context.Background(), 1, starter, Declared{Servers: 6, Plans: 0}))

	row, err := ledger.CurrentMonth(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 6, row.Servers)
}

func TestIncrementReportsUnderThenAtLimit(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)
	ledger := NewLedgerWithClock(db, fixedClock(now))
	free := plans.ForPlan(models.PlanFree) // maxReportsPerMonth = 1

	row, err := ledger.IncrementReports(context.Background(), 1, free)
	require.NoError(t, err)
	assert.Equal(t, 1, row.ReportsThisMonth)
	require.NotNil(t, row.LastReportAt)
	assert.WithinDuration(t, now, *row.LastReportAt, time.Second)

	// Second attempt is denied without mutation.
	_, err = ledger.IncrementReports(context.Background(), 1, free)
	var limitErr *plans.LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, "limit_reports", limitErr.Code())
	assert.Equal(t, 1, limitErr.Limit)

	after, err := ledger.CurrentMonth(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, after.ReportsThisMonth)
}

func TestIncrementReportsUnlimited(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerWithClock(db, fixedClock(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)))
	pro := plans.ForPlan(models.PlanPro)

	for i := 1; i <= 10; i++ {
		row, err := ledger.IncrementReports(context.Background(), 1, pro)
		require.NoError(t, err)
		assert.Equal(t, i, row.ReportsThisMonth)
	}
}

func TestMonthIsolation(t *testing.T) {
	db := newTestDB(t)
	jan := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
	free := plans.ForPlan(models.PlanFree)

	janLedger := NewLedgerWithClock(db, fixedClock(jan))
	_, err := janLedger.IncrementReports(context.Background(), 1, free)
	require.NoError(t, err)
	require.NoError(t, janLedger.SetDeclared(context.Background(), 1, free, Declared{Servers: 4, Plans: 1}))

	// A new month starts from a fresh zeroed row; January is untouched.
	febLedger := NewLedgerWithClock(db, fixedClock(feb))
	febRow, err := febLedger.CurrentMonth(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 202402, febRow.YearMonth)
	assert.Equal(t, 0, febRow.ReportsThisMonth)
	assert.Equal(t, 0, febRow.Servers)

	var janRow models.UsageMonth
	require.NoError(t, db.Where("user_id = ? AND year_month = ?", 1, 202401).First(&janRow).Error)
	assert.Equal(t, 1, janRow.ReportsThisMonth)
	assert.Equal(t, 4, janRow.Servers)

	// February operations never touch the January row.
	_, err = febLedger.IncrementReports(context.Background(), 1, free)
	require.NoError(t, err)
	require.NoError(t, db.Where("user_id = ? AND year_month = ?", 1, 202401).First(&janRow).Error)
	assert.Equal(t, 1, janRow.ReportsThisMonth)
}
