package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActionVerify is the audit action written by license verification.
const ActionVerify = "verify"

// ApiLog is an append-only audit entry.
type ApiLog struct {
	ID        string            `json:"id" gorm:"primaryKey;size:36"`
	LicenseID *string           `json:"license_id" gorm:"size:36;index:idx_api_logs_license_created,priority:1"`
	Action    string            `json:"action" gorm:"size:32;not null"`
	IPAddress *string           `json:"ip_address" gorm:"size:64"`
	UserAgent *string           `json:"user_agent"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `json:"created_at" gorm:"index:idx_api_logs_license_created,priority:2"`
}

func (log *ApiLog) BeforeCreate(tx *gorm.DB) (err error) {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	return
}
