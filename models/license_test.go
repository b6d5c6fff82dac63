package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestBoundHWID(t *testing.T) {
	tests := []struct {
		name string
		meta datatypes.JSONMap
		want string
	}{
		{"nil metadata", nil, ""},
		{"no hwid", datatypes.JSONMap{"note": "x"}, ""},
		{"null hwid", datatypes.JSONMap{HWIDKey: nil}, ""},
		{"empty hwid", datatypes.JSONMap{HWIDKey: ""}, ""},
		{"string hwid", datatypes.JSONMap{HWIDKey: "H1"}, "H1"},
		{"numeric hwid", datatypes.JSONMap{HWIDKey: float64(12345)}, "12345"},
		{"boolean hwid", datatypes.JSONMap{HWIDKey: true}, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := License{Metadata: tt.meta}
			assert.Equal(t, tt.want, l.BoundHWID())
		})
	}
}

func TestAfterFindNormalizesStatus(t *testing.T) {
	tests := []struct {
		stored LicenseStatus
		want   LicenseStatus
	}{
		{"active", StatusActive},
		{"SUSPENDED", StatusSuspended},
		{" Expired ", StatusExpired},
		{"Active", StatusActive},
		{"Revoked", "Revoked"},
	}
	for _, tt := range tests {
		l := License{Status: tt.stored}
		assert.NoError(t, l.AfterFind(nil))
		assert.Equal(t, tt.want, l.Status, string(tt.stored))
	}
}

func TestIsExpiredAt(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Second), now.Add(time.Second)

	assert.False(t, (&License{}).IsExpiredAt(now))
	assert.True(t, (&License{ExpiresAt: &past}).IsExpiredAt(now))
	assert.False(t, (&License{ExpiresAt: &now}).IsExpiredAt(now))
	assert.False(t, (&License{ExpiresAt: &future}).IsExpiredAt(now))
}
