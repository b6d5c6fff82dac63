package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LicenseStatus is the closed set of states a license can be in.
type LicenseStatus string

const (
	StatusActive    LicenseStatus = "Active"
	StatusExpired   LicenseStatus = "Expired"
	StatusSuspended LicenseStatus = "Suspended"
)

// ParseLicenseStatus accepts any casing of a known status.
func ParseLicenseStatus(s string) (LicenseStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return StatusActive, nil
	case "expired":
		return StatusExpired, nil
	case "suspended":
		return StatusSuspended, nil
	}
	return "", fmt.Errorf("unknown license status %q", s)
}

func (s LicenseStatus) Valid() bool {
	switch s {
	case StatusActive, StatusExpired, StatusSuspended:
		return true
	}
	return false
}

func (s *LicenseStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseLicenseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Role is the dashboard role of a profile.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReseller Role = "reseller"
	RoleUser     Role = "user"
)

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "reseller":
		return RoleReseller, nil
	case "user":
		return RoleUser, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// CanIssue reports whether the role may create and manage licenses.
func (r Role) CanIssue() bool {
	return r == RoleAdmin || r == RoleReseller
}
