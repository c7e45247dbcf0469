// CloudMigrate Pro database layer
// GORM over PostgreSQL with auto-migration

package db

import (
	"fmt"
	"time"

	"cloudmigrate/internal/logging"
	"cloudmigrate/pkg/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM database instance
type Database struct {
	DB *gorm.DB
}

// NewDatabase connects to PostgreSQL and runs migrations.
func NewDatabase(dsn string) (*Database, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	database := &Database{DB: db}

	if err := database.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logging.L().Info("database connected")
	return database, nil
}

// Migrate runs database migrations
func (d *Database) Migrate() error {
	err := d.DB.AutoMigrate(
		&models.User{},
		&models.Subscription{},
		&models.AppState{},
		&models.UsageMonth{},
		&models.Organization{},
		&models.OrganizationMember{},
		&models.Client{},
		&models.Project{},
		&models.Proposal{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return d.createIndexes()
}

// createIndexes creates additional database indexes for performance
func (d *Database) createIndexes() error {
	d.DB.Exec("CREATE INDEX IF NOT EXISTS idx_subscriptions_stripe_sub ON subscriptions(stripe_subscription_id) WHERE stripe_subscription_id IS NOT NULL")
	d.DB.Exec("CREATE INDEX IF NOT EXISTS idx_subscriptions_stripe_cust ON subscriptions(stripe_customer_id) WHERE stripe_customer_id IS NOT NULL")
	d.DB.Exec("CREATE INDEX IF NOT EXISTS idx_clients_org ON clients(organization_id)")
	d.DB.Exec("CREATE INDEX IF NOT EXISTS idx_projects_client ON projects(client_id)")
	d.DB.Exec("CREATE INDEX IF NOT EXISTS idx_proposals_org ON proposals(organization_id)")
	return nil
}

// Health checks database connectivity
func (d *Database) Health() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction wraps a function in a database transaction
func (d *Database) Transaction(fn func(*gorm.DB) error) error {
	return d.DB.Transaction(fn)
}
