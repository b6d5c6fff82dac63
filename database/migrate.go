package database

import (
	"fmt"

	"boltz-license-backend/models"

	"gorm.io/gorm"
)

// Migrate applies idempotent schema migrations. PostgreSQL additionally gets
// a status CHECK constraint, composite indexes and the key generator function.
func Migrate(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&models.Profile{},
			&models.License{},
			&models.ApiLog{},
			&models.IdempotencyKey{},
		); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}

		if tx.Dialector.Name() != "postgres" {
			return nil
		}

		indexes := []string{
			`CREATE INDEX IF NOT EXISTS idx_licenses_created_by_updated ON licenses (created_by, updated_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_licenses_user_updated ON licenses (user_id, updated_at DESC)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		check := `
DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_constraint
		WHERE conrelid = 'licenses'::regclass
		  AND conname  = 'chk_licenses_status'
	) THEN
		ALTER TABLE licenses
		ADD CONSTRAINT chk_licenses_status
		CHECK (status IN ('Active', 'Expired', 'Suspended'));
	END IF;
END $$;`
		if err := tx.Exec(check).Error; err != nil {
			return fmt.Errorf("check constraint migration failed: %w", err)
		}

		keyFn := `
CREATE OR REPLACE FUNCTION generate_license_key() RETURNS text AS $$
	SELECT 'BOLTZ-'
		|| upper(substr(md5(random()::text), 1, 6)) || '-'
		|| upper(substr(md5(random()::text), 1, 6)) || '-'
		|| upper(substr(md5(random()::text), 1, 6));
$$ LANGUAGE sql VOLATILE;`
		if err := tx.Exec(keyFn).Error; err != nil {
			return fmt.Errorf("key generator migration failed: %w", err)
		}
		return nil
	})
}
