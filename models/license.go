package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// HWIDKey is the metadata key holding the hardware id a license is bound to.
const HWIDKey = "hwid"

type License struct {
	ID          string            `json:"id" gorm:"primaryKey;size:36"`
	Key         string            `json:"key" gorm:"size:128;not null;uniqueIndex"`
	Application string            `json:"application" gorm:"not null;index"`
	Status      LicenseStatus     `json:"status" gorm:"size:16;not null;default:Active;index"`
	ExpiresAt   *time.Time        `json:"expires_at"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	UserID      *string           `json:"user_id" gorm:"size:36;index"`
	User        *Profile          `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:SET NULL"`
	CreatedBy   *string           `json:"created_by" gorm:"size:36;index"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"index"`
}

func (license *License) BeforeCreate(tx *gorm.DB) (err error) {
	if license.ID == "" {
		license.ID = uuid.NewString()
	}
	if license.Status == "" {
		license.Status = StatusActive
	}
	return
}

// AfterFind canonicalises status casing for rows written outside the API.
// Unknown values are left alone so verification can reject them.
func (license *License) AfterFind(tx *gorm.DB) (err error) {
	license.NormalizeStatus()
	return
}

// NormalizeStatus rewrites a known status to its canonical spelling.
func (license *License) NormalizeStatus() {
	if status, err := ParseLicenseStatus(string(license.Status)); err == nil {
		license.Status = status
	}
}

// BoundHWID returns the hardware id stored in metadata, or "" when unbound.
// Non-string values (numbers written by hand, for instance) still count as a
// binding and are compared in their printed form.
func (license *License) BoundHWID() string {
	if license.Metadata == nil {
		return ""
	}
	switch v := license.Metadata[HWIDKey].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// IsExpiredAt reports whether the expiry timestamp lies before now.
func (license *License) IsExpiredAt(now time.Time) bool {
	return license.ExpiresAt != nil && license.ExpiresAt.Before(now)
}

// LicenseFilter narrows ListLicenses. Empty fields are ignored.
type LicenseFilter struct {
	CreatedBy    string
	UserID       string
	Status       LicenseStatus
	UpdatedSince *time.Time
}
