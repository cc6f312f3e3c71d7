// Package migration creates the schema on startup so local and self-hosted
// deployments work out of the box. Postgres runs the embedded SQL
// migrations; other dialects fall back to gorm auto-migration.
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	contentdomain "github.com/storyforge/storyforge/internal/contentitem/domain"
	creditdomain "github.com/storyforge/storyforge/internal/credit/domain"
	generationdomain "github.com/storyforge/storyforge/internal/generation/domain"
	notificationdomain "github.com/storyforge/storyforge/internal/notification/domain"
	orgdomain "github.com/storyforge/storyforge/internal/organization/domain"
	usagedomain "github.com/storyforge/storyforge/internal/usage/domain"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate covers the non-postgres dialects used for local development.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.BrandProfile{},
		&contentdomain.ContentItem{},
		&generationdomain.GenerationBatch{},
		&generationdomain.QueueEntry{},
		&creditdomain.CreditBalance{},
		&creditdomain.CreditTransaction{},
		&usagedomain.UsageRecord{},
		&notificationdomain.Notification{},
	)
}
