package services

import (
	"errors"
	"fmt"
)

var (
	ErrForbidden          = errors.New("forbidden")
	ErrLicenseNotFound    = errors.New("license not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

// FailureKind classifies a failed verification.
type FailureKind int

const (
	KindInvalidInput FailureKind = iota + 1
	KindNotFound
	KindPolicy
	KindInternal
)

func (k FailureKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindPolicy:
		return "policy"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// VerifyError is returned for every verification that does not succeed.
// Message is safe to show to callers; Err is only for logs.
type VerifyError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *VerifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *VerifyError) Unwrap() error {
	return e.Err
}
