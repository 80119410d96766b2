package infra

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kentonium3/bake-tracker/internal/model"
)

// NewDatabase establishes a GORM connection backed by pgx and runs
// AutoMigrate to create / update all tables. Lot rows rely on Postgres
// gen_random_uuid() defaults, so the pgcrypto extension is ensured first.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates the schema. Also used by integration
// tests against throwaway containers.
func RunMigrations(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return fmt.Errorf("ensure pgcrypto: %w", err)
	}

	if err := db.AutoMigrate(
		&model.Supplier{},
		&model.Material{},
		&model.MaterialUnit{},
		&model.Product{},
		&model.Lot{},
		&model.FinishedUnit{},
		&model.Recipe{},
		&model.RecipeIngredient{},
		&model.Batch{},
		&model.Assembly{},
		&model.GiftPackage{},
		&model.Composition{},
		&model.CompositionAssignment{},
		&model.AssemblyRun{},
		&model.AssemblyRunItem{},
		&model.StockMovement{},
		&model.UnitCostHistory{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}

	// Lots back assignments restrictively: a lot with live assignments
	// cannot be deleted. AutoMigrate cannot express ON DELETE RESTRICT on
	// an existing FK, so it is applied idempotently here.
	restrict := `DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_assignments_lot_restrict') THEN
    ALTER TABLE composition_assignments
        ADD CONSTRAINT fk_assignments_lot_restrict
        FOREIGN KEY (lot_id) REFERENCES lots (id) ON DELETE RESTRICT;
  END IF;
END $$`
	if err := db.Exec(restrict).Error; err != nil {
		return fmt.Errorf("restrict assignment lots: %w", err)
	}
	return nil
}
