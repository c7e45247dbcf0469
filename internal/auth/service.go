// CloudMigrate Pro account service
// Signup and login backed by bcrypt and GORM

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloudmigrate/internal/plans"
	"cloudmigrate/pkg/models"

	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidSignup      = errors.New("invalid signup")
)

// Service creates accounts and authenticates users.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

func NewServiceWithClock(db *gorm.DB, now func() time.Time) *Service {
	return &Service{db: db, now: now}
}

// SignupInput is the account creation payload.
type SignupInput struct {
	Name        string      `json:"name"`
	CompanyName string      `json:"companyName"`
	Email       string      `json:"email"`
	Password    string      `json:"password"`
	Plan        models.Plan `json:"plan"`
}

// Signup creates a user with a default subscription. Free accounts start
// active; paid plans start a trial and are confirmed by checkout later.
func (s *Service) Signup(ctx context.Context, input SignupInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	name := strings.TrimSpace(input.Name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidSignup)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSignup)
	}
	if err := ValidatePassword(input.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSignup, err.Error())
	}
	plan := input.Plan
	if plan == "" {
		plan = models.PlanFree
	}
	if !plan.IsValid() {
		return nil, fmt.Errorf("%w: unknown plan", ErrInvalidSignup)
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		CompanyName:  strings.TrimSpace(input.CompanyName),
		PasswordHash: hash,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		sub := &models.Subscription{
			UserID: user.ID,
			Plan:   plan,
			Status: models.StatusActive,
		}
		if plan != models.PlanFree {
			trialEnd := s.now().UTC().Add(plans.TrialDays * 24 * time.Hour)
			sub.Status = models.StatusTrialing
			sub.TrialEndsAt = &trialEnd
		}
		return tx.Create(sub).Error
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates an email/password pair. Unknown emails and wrong
// passwords return the same error.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// UserByID loads a user with their subscription.
func (s *Service) UserByID(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Subscription").First(&user, userID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
