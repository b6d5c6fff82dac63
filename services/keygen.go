package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// KeyGenerator produces new license keys.
type KeyGenerator interface {
	Generate(ctx context.Context) (string, error)
}

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomKeyGenerator builds BOLTZ-XXXXXX-XXXXXX-XXXXXX keys from a random source.
type RandomKeyGenerator struct {
	Prefix string
	Groups int
	Size   int
	Rand   io.Reader
}

func NewRandomKeyGenerator() *RandomKeyGenerator {
	return &RandomKeyGenerator{Prefix: "BOLTZ", Groups: 3, Size: 6, Rand: rand.Reader}
}

func (g *RandomKeyGenerator) Generate(ctx context.Context) (string, error) {
	max := big.NewInt(int64(len(keyAlphabet)))
	parts := make([]string, 0, g.Groups+1)
	if g.Prefix != "" {
		parts = append(parts, g.Prefix)
	}
	for i := 0; i < g.Groups; i++ {
		var b strings.Builder
		for j := 0; j < g.Size; j++ {
			n, err := rand.Int(g.Rand, max)
			if err != nil {
				return "", fmt.Errorf("read random: %w", err)
			}
			b.WriteByte(keyAlphabet[n.Int64()])
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "-"), nil
}

// DatabaseKeyGenerator asks the store's generate_license_key() function.
type DatabaseKeyGenerator struct {
	DB *gorm.DB
}

func (g *DatabaseKeyGenerator) Generate(ctx context.Context) (string, error) {
	var key string
	if err := g.DB.WithContext(ctx).Raw("SELECT generate_license_key()").Scan(&key).Error; err != nil {
		return "", fmt.Errorf("generate_license_key: %w", err)
	}
	return key, nil
}

// FallbackKeyGenerator uses Fallback whenever Primary fails or returns nothing.
type FallbackKeyGenerator struct {
	Primary  KeyGenerator
	Fallback KeyGenerator
	Log      *zap.Logger
}

func (g *FallbackKeyGenerator) Generate(ctx context.Context) (string, error) {
	key, err := g.Primary.Generate(ctx)
	if err == nil && strings.TrimSpace(key) != "" {
		return key, nil
	}
	if err == nil {
		err = errors.New("empty key")
	}
	if g.Log != nil {
		g.Log.Warn("primary key generator failed, using fallback", zap.Error(err))
	}
	return g.Fallback.Generate(ctx)
}
