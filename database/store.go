package database

import (
	"context"

	"boltz-license-backend/models"
)

// Store is the persisted license table, its audit log and the profiles that
// own licenses.
type Store interface {
	FindByKey(ctx context.Context, key string) (*models.License, error)
	UpdateByID(ctx context.Context, id string, fields map[string]any) error
	InsertAuditLog(ctx context.Context, entry *models.ApiLog) error

	ListLicenses(ctx context.Context, filter models.LicenseFilter) ([]models.License, error)
	GetLicense(ctx context.Context, id string) (*models.License, error)
	CreateLicense(ctx context.Context, license *models.License) error
	DeleteLicense(ctx context.Context, id string) error
	ListAuditLogs(ctx context.Context, licenseID string, limit int) ([]models.ApiLog, error)

	CreateProfile(ctx context.Context, profile *models.Profile) error
	FindProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	FindProfileByID(ctx context.Context, id string) (*models.Profile, error)

	Ping(ctx context.Context) error
}
