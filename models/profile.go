package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Profile struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Email     string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      Role      `json:"role" gorm:"size:16;not null;default:user"`
	Password  []byte    `json:"-" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (profile *Profile) BeforeCreate(tx *gorm.DB) (err error) {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.Role == "" {
		profile.Role = RoleUser
	}
	return
}

func (profile *Profile) SetPassword(password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return err
	}
	profile.Password = hashed
	return nil
}

func (profile *Profile) ComparePassword(password string) error {
	return bcrypt.CompareHashAndPassword(profile.Password, []byte(password))
}

// DisplayName joins first and last name; empty when either is missing.
func (profile *Profile) DisplayName() string {
	if profile.FirstName == "" || profile.LastName == "" {
		return ""
	}
	return strings.TrimSpace(profile.FirstName + " " + profile.LastName)
}
