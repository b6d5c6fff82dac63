package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"boltz-license-backend/models"

	"gorm.io/gorm"
)

// GormStore implements Store over a relational database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func (s *GormStore) FindByKey(ctx context.Context, key string) (*models.License, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	var license models.License
	// Struct conditions quote the column; "key" is reserved in MySQL.
	if err := s.db.WithContext(ctx).Where(&models.License{Key: key}).First(&license).Error; err != nil {
		return nil, translate(err)
	}
	return &license, nil
}

func (s *GormStore) UpdateByID(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.License{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) InsertAuditLog(ctx context.Context, entry *models.ApiLog) error {
	return translate(s.db.WithContext(ctx).Create(entry).Error)
}

func (s *GormStore) ListLicenses(ctx context.Context, filter models.LicenseFilter) ([]models.License, error) {
	q := s.db.WithContext(ctx).Model(&models.License{}).Preload("User")
	if filter.CreatedBy != "" {
		q = q.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.UpdatedSince != nil {
		q = q.Where("updated_at > ?", *filter.UpdatedSince)
	}

	var licenses []models.License
	if err := q.Order("created_at DESC").Find(&licenses).Error; err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	return licenses, nil
}

func (s *GormStore) GetLicense(ctx context.Context, id string) (*models.License, error) {
	var license models.License
	if err := s.db.WithContext(ctx).Preload("User").Where("id = ?", id).First(&license).Error; err != nil {
		return nil, translate(err)
	}
	return &license, nil
}

func (s *GormStore) CreateLicense(ctx context.Context, license *models.License) error {
	return translate(s.db.WithContext(ctx).Omit("User").Create(license).Error)
}

func (s *GormStore) DeleteLicense(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.License{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListAuditLogs(ctx context.Context, licenseID string, limit int) ([]models.ApiLog, error) {
	var logs []models.ApiLog
	err := s.db.WithContext(ctx).
		Where("license_id = ?", licenseID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

func (s *GormStore) CreateProfile(ctx context.Context, profile *models.Profile) error {
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	return translate(s.db.WithContext(ctx).Create(profile).Error)
}

func (s *GormStore) FindProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&profile).Error
	if err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

func (s *GormStore) FindProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
