package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"boltz-license-backend/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MemoryStore is an in-process Store selected with STORE_URL=memory://.
// Rows are copied on the way in and out so callers never share state with it.
type MemoryStore struct {
	mu       sync.RWMutex
	licenses map[string]models.License // by id
	logs     []models.ApiLog
	profiles map[string]models.Profile // by id
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		licenses: make(map[string]models.License),
		profiles: make(map[string]models.Profile),
		now:      time.Now,
	}
}

func copyMap(m datatypes.JSONMap) datatypes.JSONMap {
	if m == nil {
		return nil
	}
	out := make(datatypes.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyLicense(l models.License) models.License {
	l.Metadata = copyMap(l.Metadata)
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		l.ExpiresAt = &t
	}
	l.User = nil
	l.NormalizeStatus() // same as the GORM AfterFind hook
	return l
}

func (s *MemoryStore) withOwner(l models.License) models.License {
	out := copyLicense(l)
	if out.UserID != nil {
		if p, ok := s.profiles[*out.UserID]; ok {
			out.User = &p
		}
	}
	return out
}

func (s *MemoryStore) FindByKey(ctx context.Context, key string) (*models.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.licenses {
		if l.Key == key && key != "" {
			out := copyLicense(l)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateByID(ctx context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.licenses[id]
	if !ok {
		return ErrNotFound
	}
	for col, v := range fields {
		switch col {
		case "status":
			switch st := v.(type) {
			case models.LicenseStatus:
				l.Status = st
			case string:
				l.Status = models.LicenseStatus(st)
			default:
				return fmt.Errorf("status: unexpected type %T", v)
			}
		case "application":
			app, ok := v.(string)
			if !ok {
				return fmt.Errorf("application: unexpected type %T", v)
			}
			l.Application = app
		case "metadata":
			switch m := v.(type) {
			case datatypes.JSONMap:
				l.Metadata = copyMap(m)
			case map[string]any:
				l.Metadata = copyMap(m)
			case nil:
				l.Metadata = nil
			default:
				return fmt.Errorf("metadata: unexpected type %T", v)
			}
		case "expires_at":
			switch t := v.(type) {
			case *time.Time:
				if t == nil {
					l.ExpiresAt = nil
				} else {
					tt := *t
					l.ExpiresAt = &tt
				}
			case time.Time:
				l.ExpiresAt = &t
			case nil:
				l.ExpiresAt = nil
			default:
				return fmt.Errorf("expires_at: unexpected type %T", v)
			}
		default:
			return fmt.Errorf("column %q is not updatable", col)
		}
	}
	l.UpdatedAt = s.now()
	s.licenses[id] = l
	return nil
}

func (s *MemoryStore) InsertAuditLog(ctx context.Context, entry *models.ApiLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	stored := *entry
	stored.Metadata = copyMap(entry.Metadata)
	s.logs = append(s.logs, stored)
	return nil
}

func (s *MemoryStore) ListLicenses(ctx context.Context, filter models.LicenseFilter) ([]models.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.License, 0, len(s.licenses))
	for _, l := range s.licenses {
		if filter.CreatedBy != "" && (l.CreatedBy == nil || *l.CreatedBy != filter.CreatedBy) {
			continue
		}
		if filter.UserID != "" && (l.UserID == nil || *l.UserID != filter.UserID) {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.UpdatedSince != nil && !l.UpdatedAt.After(*filter.UpdatedSince) {
			continue
		}
		out = append(out, s.withOwner(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) GetLicense(ctx context.Context, id string) (*models.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.licenses[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := s.withOwner(l)
	return &out, nil
}

func (s *MemoryStore) CreateLicense(ctx context.Context, license *models.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.licenses {
		if l.Key == license.Key {
			return ErrDuplicate
		}
	}
	if license.ID == "" {
		license.ID = uuid.NewString()
	}
	if license.Status == "" {
		license.Status = models.StatusActive
	}
	now := s.now()
	if license.CreatedAt.IsZero() {
		license.CreatedAt = now
	}
	license.UpdatedAt = now
	s.licenses[license.ID] = copyLicense(*license)
	return nil
}

func (s *MemoryStore) DeleteLicense(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.licenses[id]; !ok {
		return ErrNotFound
	}
	delete(s.licenses, id)
	return nil
}

func (s *MemoryStore) ListAuditLogs(ctx context.Context, licenseID string, limit int) ([]models.ApiLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ApiLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		l := s.logs[i]
		if l.LicenseID == nil || *l.LicenseID != licenseID {
			continue
		}
		out = append(out, l)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// AuditLogCount returns the number of audit entries written so far.
func (s *MemoryStore) AuditLogCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs)
}

func (s *MemoryStore) CreateProfile(ctx context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	for _, p := range s.profiles {
		if p.Email == profile.Email {
			return ErrDuplicate
		}
	}
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.Role == "" {
		profile.Role = models.RoleUser
	}
	now := s.now()
	profile.CreatedAt, profile.UpdatedAt = now, now
	s.profiles[profile.ID] = *profile
	return nil
}

func (s *MemoryStore) FindProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, p := range s.profiles {
		if p.Email == email {
			out := p
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
