package auth

import (
	"context"
	"testing"
	"time"

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
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Subscription{}))
	return db
}

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)
	assert.True(t, VerifyPassword("correct horse battery", hash))
	assert.False(t, VerifyPassword("wrong password", hash))
}

func TestValidatePassword(t *testing.T) {
	assert.Error(t, ValidatePassword("short"))
	assert.NoError(t, ValidatePassword("longenough"))
}

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret-at-least-20-chars", "cloudmigrate")

	token, err := svc.GenerateToken(42)
	require.NoError(t, err)

	userID, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)

	_, err = svc.ValidateToken(token + "x")
	assert.Error(t, err)

	other := NewJWTService("another-secret-entirely-here", "cloudmigrate")
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestSignupFreePlan(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	user, err := svc.Signup(context.Background(), SignupInput{
		Name:        "Ada",
		CompanyName: "Ada Consulting",
		Email:       "Ada@Example.COM",
		Password:    "a-strong-password",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)

	var sub models.Subscription
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&sub).Error)
	assert.Equal(t, models.PlanFree, sub.Plan)
	assert.Equal(t, models.StatusActive, sub.Status)
	assert.Nil(t, sub.TrialEndsAt)
}

func TestSignupPaidPlanStartsTrial(t *testing.T) {
	db := newTestDB(t)
	fixed := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	svc := NewServiceWithClock(db, func() time.Time { return fixed })

	user, err := svc.Signup(context.Background(), SignupInput{
		Name:     "Bob",
		Email:    "bob@example.com",
		Password: "a-strong-password",
		Plan:     models.PlanStarter,
	})
	require.NoError(t, err)

	var sub models.Subscription
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&sub).Error)
	assert.Equal(t, models.PlanStarter, sub.Plan)
	assert.Equal(t, models.StatusTrialing, sub.Status)
	require.NotNil(t, sub.TrialEndsAt)
	assert.True(t, fixed.Add(14*24*time.Hour).Equal(*sub.TrialEndsAt))
}

func TestSignupValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Name: "X", Email: "not-an-email", Password: "a-strong-password"})
	assert.ErrorIs(t, err, ErrInvalidSignup)

	_, err = svc.Signup(ctx, SignupInput{Name: "", Email: "x@example.com", Password: "a-strong-password"})
	assert.ErrorIs(t, err, ErrInvalidSignup)

	_, err = svc.Signup(ctx, SignupInput{Name: "X", Email: "x@example.com", Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidSignup)

	_, err = svc.Signup(ctx, SignupInput{Name: "X", Email: "x@example.com", Password: "a-strong-password", Plan: "platinum"})
	assert.ErrorIs(t, err, ErrInvalidSignup)
}

func TestSignupDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Name: "A", Email: "dup@example.com", Password: "a-strong-password"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, SignupInput{Name: "B", Email: "DUP@example.com", Password: "a-strong-password"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	created, err := svc.Signup(ctx, SignupInput{Name: "A", Email: "login@example.com", Password: "a-strong-password"})
	require.NoError(t, err)

	user, err := svc.Login(ctx, "Login@Example.com", "a-strong-password")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = svc.Login(ctx, "login@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown email reads identically to a bad password.
	_, err = svc.Login(ctx, "nobody@example.com", "a-strong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
