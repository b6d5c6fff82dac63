package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"boltz-license-backend/database"
	"boltz-license-backend/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	MsgKeyRequired         = "License key is required"
	MsgInvalidKey          = "Invalid license key"
	MsgWrongApplication    = "License key is not valid for this application"
	MsgExpired             = "License has expired"
	MsgHWIDMismatch        = "Hardware ID mismatch"
	MsgValid               = "License key is valid"
	MsgInternalServerError = "Internal server error"
)

// VerificationStore is the slice of the store verification depends on.
type VerificationStore interface {
	FindByKey(ctx context.Context, key string) (*models.License, error)
	UpdateByID(ctx context.Context, id string, fields map[string]any) error
	InsertAuditLog(ctx context.Context, entry *models.ApiLog) error
}

type VerifyInput struct {
	LicenseKey      string
	ApplicationName string
	HWID            string

	// Caller network metadata recorded in the audit log.
	IPAddress string
	UserAgent string
}

type VerificationData struct {
	LicenseID   string               `json:"licenseId"`
	Application string               `json:"application"`
	Status      models.LicenseStatus `json:"status"`
	ExpiresAt   *time.Time           `json:"expiresAt"`
}

type Verifier struct {
	store       VerificationStore
	log         *zap.Logger
	now         func() time.Time
	enforceHWID bool
}

type VerifierOption func(*Verifier)

// WithHWIDEnforcement toggles rejection of a hwid that differs from the bound one.
func WithHWIDEnforcement(enabled bool) VerifierOption {
	return func(v *Verifier) { v.enforceHWID = enabled }
}

func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

func NewVerifier(store VerificationStore, log *zap.Logger, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		store:       store,
		log:         log,
		now:         time.Now,
		enforceHWID: true,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func fail(kind FailureKind, msg string) *VerifyError {
	return &VerifyError{Kind: kind, Message: msg}
}

func internal(err error) *VerifyError {
	return &VerifyError{Kind: KindInternal, Message: MsgInternalServerError, Err: err}
}

// statusMessage names a non-active status, e.g. "License is suspended".
func statusMessage(status models.LicenseStatus) string {
	switch status {
	case models.StatusExpired, models.StatusSuspended:
		return "License is " + strings.ToLower(string(status))
	default:
		return "License status is invalid"
	}
}

// Verify runs the ordered validation pipeline. The first failing check wins;
// the only writes are the expiry transition, the first hwid bind and the
// audit entry.
func (v *Verifier) Verify(ctx context.Context, in VerifyInput) (VerificationData, error) {
	if strings.TrimSpace(in.LicenseKey) == "" {
		return VerificationData{}, fail(KindInvalidInput, MsgKeyRequired)
	}

	license, err := v.store.FindByKey(ctx, in.LicenseKey)
	if errors.Is(err, database.ErrNotFound) {
		return VerificationData{}, fail(KindNotFound, MsgInvalidKey)
	}
	if err != nil {
		return VerificationData{}, internal(err)
	}

	if in.ApplicationName != "" && in.ApplicationName != license.Application {
		return VerificationData{}, fail(KindPolicy, MsgWrongApplication)
	}

	if license.Status != models.StatusActive {
		return VerificationData{}, fail(KindPolicy, statusMessage(license.Status))
	}

	if license.IsExpiredAt(v.now()) {
		err := v.store.UpdateByID(ctx, license.ID, map[string]any{"status": models.StatusExpired})
		if err != nil {
			return VerificationData{}, internal(err)
		}
		v.log.Info("license expired",
			zap.String("license_id", license.ID),
			zap.Timep("expires_at", license.ExpiresAt))
		return VerificationData{}, fail(KindPolicy, MsgExpired)
	}

	if in.HWID != "" {
		bound := license.BoundHWID()
		switch {
		case bound == "":
			meta := datatypes.JSONMap{}
			for k, val := range license.Metadata {
				meta[k] = val
			}
			meta[models.HWIDKey] = in.HWID
			if err := v.store.UpdateByID(ctx, license.ID, map[string]any{"metadata": meta}); err != nil {
				return VerificationData{}, internal(err)
			}
			license.Metadata = meta
			v.log.Info("hwid bound", zap.String("license_id", license.ID))
		case bound != in.HWID && v.enforceHWID:
			return VerificationData{}, fail(KindPolicy, MsgHWIDMismatch)
		}
	}

	v.audit(ctx, license, in)

	return VerificationData{
		LicenseID:   license.ID,
		Application: license.Application,
		Status:      license.Status,
		ExpiresAt:   license.ExpiresAt,
	}, nil
}

// audit appends the verify entry. A failed insert is logged, not returned:
// the verification itself already succeeded.
func (v *Verifier) audit(ctx context.Context, license *models.License, in VerifyInput) {
	entry := &models.ApiLog{
		LicenseID: &license.ID,
		Action:    models.ActionVerify,
		IPAddress: optional(in.IPAddress),
		UserAgent: optional(in.UserAgent),
		Metadata: datatypes.JSONMap{
			"hwid":        nullable(in.HWID),
			"application": nullable(in.ApplicationName),
		},
	}
	if err := v.store.InsertAuditLog(ctx, entry); err != nil {
		v.log.Warn("audit log insert failed",
			zap.String("license_id", license.ID),
			zap.Error(err))
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
