package database

import (
	"fmt"

	"github.com/einstein-academy/course-registration/pkg/logger"

	"gorm.io/gorm"
)

type Migration struct {
	ID          string
	Description string
	SQL         string
}

// migrations run in order; applied IDs are tracked in schema_migrations.
var migrations = []Migration{
	{
		ID:          "001_create_students",
		Description: "students snapshot table",
		SQL: `CREATE TABLE IF NOT EXISTS students (
			student_id TEXT PRIMARY KEY,
			name TEXT,
			email TEXT,
			gpa DOUBLE PRECISION NOT NULL DEFAULT 0,
			year INT NOT NULL DEFAULT 1,
			interests JSONB NOT NULL DEFAULT '[]',
			completed_courses JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
	},
	{
		ID:          "002_create_courses",
		Description: "courses snapshot table",
		SQL: `CREATE TABLE IF NOT EXISTS courses (
			course_id TEXT PRIMARY KEY,
			name TEXT,
			capacity INT NOT NULL CHECK (capacity > 0),
			current_enrollment INT NOT NULL DEFAULT 0,
			prerequisites JSONB NOT NULL DEFAULT '[]',
			tags JSONB NOT NULL DEFAULT '[]',
			min_gpa DOUBLE PRECISION NOT NULL DEFAULT 0,
			preferred_years JSONB NOT NULL DEFAULT '[]',
			booking_state TEXT NOT NULL DEFAULT 'booking_closed',
			booking_opens_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
	},
	{
		ID:          "003_create_allocation_outcomes",
		Description: "allocation outcomes audit table",
		SQL: `CREATE TABLE IF NOT EXISTS allocation_outcomes (
			outcome_id UUID PRIMARY KEY,
			student_id TEXT NOT NULL,
			course_id TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT,
			score DOUBLE PRECISION,
			waitlist_position INT,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
	},
	{
		ID:          "004_outcomes_student_index",
		Description: "index allocation outcomes by student",
		SQL:         `CREATE INDEX IF NOT EXISTS idx_outcomes_student ON allocation_outcomes (student_id, recorded_at);`,
	},
}

type MigrationRunner struct {
	db *gorm.DB
}

func NewMigrationRunner(db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{db: db}
}

func (mr *MigrationRunner) createMigrationsTable() error {
	sql := `CREATE TABLE IF NOT EXISTS schema_migrations (
		id VARCHAR(255) PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMPTZ DEFAULT NOW()
	);`

	return mr.db.Exec(sql).Error
}

func (mr *MigrationRunner) appliedMigrations() (map[string]bool, error) {
	var ids []string
	if err := mr.db.Raw("SELECT id FROM schema_migrations ORDER BY id").Scan(&ids).Error; err != nil {
		return nil, err
	}

	applied := make(map[string]bool, len(ids))
	for _, id := range ids {
		applied[id] = true
	}
	return applied, nil
}

// RunMigrations applies any pending migrations in order.
func (mr *MigrationRunner) RunMigrations() error {
	if err := mr.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := mr.appliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.ID] {
			continue
		}

		logger.Info("Applying migration %s: %s", migration.ID, migration.Description)

		err := mr.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(migration.SQL).Error; err != nil {
				return err
			}
			return tx.Exec(
				"INSERT INTO schema_migrations (id, description) VALUES (?, ?)",
				migration.ID, migration.Description,
			).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.ID, err)
		}
	}

	return nil
}

// RunMigrations is the package-level entry point used by the CLI.
func RunMigrations(db *gorm.DB) error {
	return NewMigrationRunner(db).RunMigrations()
}
