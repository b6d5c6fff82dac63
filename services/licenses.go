package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"boltz-license-backend/database"
	"boltz-license-backend/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Caller is the authenticated identity a request acts as.
type Caller struct {
	ID   string
	Role models.Role
}

type LicenseStore interface {
	ListLicenses(ctx context.Context, filter models.LicenseFilter) ([]models.License, error)
	GetLicense(ctx context.Context, id string) (*models.License, error)
	CreateLicense(ctx context.Context, license *models.License) error
	UpdateByID(ctx context.Context, id string, fields map[string]any) error
	DeleteLicense(ctx context.Context, id string) error
	ListAuditLogs(ctx context.Context, licenseID string, limit int) ([]models.ApiLog, error)
	FindProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
}

type ListOptions struct {
	Status       models.LicenseStatus
	UpdatedSince *time.Time
}

type CreateLicenseInput struct {
	Application string
	UserEmail   string
	ExpiresAt   *time.Time
	Status      models.LicenseStatus
}

type UpdateLicenseInput struct {
	Application *string
	Status      *models.LicenseStatus
	ExpiresAt   *time.Time
	ClearExpiry bool
	ClearHWID   bool
}

type Stats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Expired      int `json:"expired"`
	Suspended    int `json:"suspended"`
	Applications int `json:"applications"`
}

const (
	maxKeyAttempts    = 3
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
)

// LicenseService is the dashboard-facing license management, scoped by caller role.
type LicenseService struct {
	store LicenseStore
	keys  KeyGenerator
	log   *zap.Logger
}

func NewLicenseService(store LicenseStore, keys KeyGenerator, log *zap.Logger) *LicenseService {
	return &LicenseService{store: store, keys: keys, log: log}
}

// scope translates a caller into the rows it may see.
func scope(caller Caller) (models.LicenseFilter, error) {
	switch caller.Role {
	case models.RoleAdmin:
		return models.LicenseFilter{}, nil
	case models.RoleReseller:
		return models.LicenseFilter{CreatedBy: caller.ID}, nil
	case models.RoleUser:
		return models.LicenseFilter{UserID: caller.ID}, nil
	}
	return models.LicenseFilter{}, ErrForbidden
}

func canSee(caller Caller, l *models.License) bool {
	switch caller.Role {
	case models.RoleAdmin:
		return true
	case models.RoleReseller:
		return l.CreatedBy != nil && *l.CreatedBy == caller.ID
	case models.RoleUser:
		return l.UserID != nil && *l.UserID == caller.ID
	}
	return false
}

func canManage(caller Caller, l *models.License) bool {
	switch caller.Role {
	case models.RoleAdmin:
		return true
	case models.RoleReseller:
		return l.CreatedBy != nil && *l.CreatedBy == caller.ID
	}
	return false
}

func (s *LicenseService) List(ctx context.Context, caller Caller, opts ListOptions) ([]models.License, error) {
	filter, err := scope(caller)
	if err != nil {
		return nil, err
	}
	filter.Status = opts.Status
	filter.UpdatedSince = opts.UpdatedSince
	return s.store.ListLicenses(ctx, filter)
}

func (s *LicenseService) Get(ctx context.Context, caller Caller, id string) (*models.License, error) {
	license, err := s.store.GetLicense(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrLicenseNotFound
	}
	if err != nil {
		return nil, err
	}
	if !canSee(caller, license) {
		return nil, ErrLicenseNotFound
	}
	return license, nil
}

func (s *LicenseService) Create(ctx context.Context, caller Caller, in CreateLicenseInput) (*models.License, error) {
	if !caller.Role.CanIssue() {
		return nil, ErrForbidden
	}
	in.Application = strings.TrimSpace(in.Application)
	if in.Application == "" {
		return nil, fmt.Errorf("%w: application is required", ErrInvalidInput)
	}
	status := in.Status
	if status == "" {
		status = models.StatusActive
	}
	if status != models.StatusActive && status != models.StatusSuspended {
		return nil, fmt.Errorf("%w: new licenses must be Active or Suspended", ErrInvalidInput)
	}

	var ownerID *string
	if email := strings.TrimSpace(in.UserEmail); email != "" {
		owner, err := s.store.FindProfileByEmail(ctx, email)
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		if err != nil {
			return nil, err
		}
		ownerID = &owner.ID
	}

	creator := caller.ID
	license := &models.License{
		Application: in.Application,
		Status:      status,
		ExpiresAt:   in.ExpiresAt,
		Metadata:    datatypes.JSONMap{},
		UserID:      ownerID,
		CreatedBy:   &creator,
	}

	for attempt := 1; ; attempt++ {
		key, err := s.keys.Generate(ctx)
		if err != nil {
			return nil, fmt.Errorf("generate license key: %w", err)
		}
		license.Key = key
		err = s.store.CreateLicense(ctx, license)
		if err == nil {
			break
		}
		if !errors.Is(err, database.ErrDuplicate) || attempt == maxKeyAttempts {
			return nil, fmt.Errorf("create license: %w", err)
		}
		s.log.Warn("license key collision, regenerating", zap.Int("attempt", attempt))
	}

	s.log.Info("license created",
		zap.String("license_id", license.ID),
		zap.String("application", license.Application),
		zap.String("created_by", caller.ID))
	return s.store.GetLicense(ctx, license.ID)
}

func (s *LicenseService) Update(ctx context.Context, caller Caller, id string, in UpdateLicenseInput) (*models.License, error) {
	license, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if !canManage(caller, license) {
		return nil, ErrForbidden
	}

	fields := map[string]any{}
	if in.Application != nil {
		app := strings.TrimSpace(*in.Application)
		if app == "" {
			return nil, fmt.Errorf("%w: application must not be empty", ErrInvalidInput)
		}
		fields["application"] = app
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status", ErrInvalidInput)
		}
		fields["status"] = *in.Status
	}
	switch {
	case in.ClearExpiry:
		fields["expires_at"] = nil
	case in.ExpiresAt != nil:
		fields["expires_at"] = in.ExpiresAt
	}
	if in.ClearHWID && license.BoundHWID() != "" {
		meta := datatypes.JSONMap{}
		for k, v := range license.Metadata {
			if k != models.HWIDKey {
				meta[k] = v
			}
		}
		fields["metadata"] = meta
	}

	if len(fields) > 0 {
		if err := s.store.UpdateByID(ctx, id, fields); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, ErrLicenseNotFound
			}
			return nil, fmt.Errorf("update license: %w", err)
		}
		s.log.Info("license updated", zap.String("license_id", id), zap.String("by", caller.ID))
	}
	return s.store.GetLicense(ctx, id)
}

func (s *LicenseService) Delete(ctx context.Context, caller Caller, id string) error {
	license, err := s.Get(ctx, caller, id)
	if err != nil {
		return err
	}
	if !canManage(caller, license) {
		return ErrForbidden
	}
	if err := s.store.DeleteLicense(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrLicenseNotFound
		}
		return fmt.Errorf("delete license: %w", err)
	}
	s.log.Info("license deleted", zap.String("license_id", id), zap.String("by", caller.ID))
	return nil
}

func (s *LicenseService) AuditLogs(ctx context.Context, caller Caller, id string, limit int) ([]models.ApiLog, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}
	return s.store.ListAuditLogs(ctx, id, limit)
}

func (s *LicenseService) Stats(ctx context.Context, caller Caller) (Stats, error) {
	licenses, err := s.List(ctx, caller, ListOptions{})
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	apps := make(map[string]struct{})
	for _, l := range licenses {
		st.Total++
		switch l.Status {
		case models.StatusActive:
			st.Active++
		case models.StatusExpired:
			st.Expired++
		case models.StatusSuspended:
			st.Suspended++
		}
		apps[l.Application] = struct{}{}
	}
	st.Applications = len(apps)
	return st, nil
}
