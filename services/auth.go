package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"boltz-license-backend/database"
	"boltz-license-backend/models"

	"go.uber.org/zap"
)

type ProfileStore interface {
	CreateProfile(ctx context.Context, profile *models.Profile) error
	FindProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	FindProfileByID(ctx context.Context, id string) (*models.Profile, error)
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthService manages dashboard profiles. Self-registration always yields
// the user role; elevated roles are granted administratively.
type AuthService struct {
	store ProfileStore
	log   *zap.Logger
}

func NewAuthService(store ProfileStore, log *zap.Logger) *AuthService {
	return &AuthService{store: store, log: log}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.Profile, error) {
	profile := &models.Profile{
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      models.RoleUser,
	}
	if err := profile.SetPassword(in.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.CreateProfile(ctx, profile); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	s.log.Info("profile registered", zap.String("user_id", profile.ID))
	return profile, nil
}

// Login checks credentials. Unknown email and wrong password are indistinguishable.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Profile, error) {
	profile, err := s.store.FindProfileByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := profile.ComparePassword(password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return profile, nil
}

func (s *AuthService) Profile(ctx context.Context, id string) (*models.Profile, error) {
	profile, err := s.store.FindProfileByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return profile, err
}
