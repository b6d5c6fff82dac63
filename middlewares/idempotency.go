package middlewares

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"boltz-license-backend/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxIdempotencyKeyLen = 128

// Idempotency processes Idempotency-Key for mutating HTTP methods. The first
// completed response is stored and replayed for identical retries. A nil db
// disables the guard (in-memory store).
func Idempotency(db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db == nil {
			return c.Next()
		}
		method := strings.ToUpper(c.Method())
		if method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch && method != fiber.MethodDelete {
			return c.Next()
		}

		key := strings.TrimSpace(c.Get("Idempotency-Key"))
		if key == "" {
			return c.Next()
		}
		if len(key) > maxIdempotencyKeyLen {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key too long")
		}

		userID, _ := c.Locals(localUserID).(string)
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "auth context missing")
		}

		path := c.OriginalURL() // includes query string
		reqHash := requestHash(method, path, c.Body(), userID)

		// ---- Phase 1: read or create the pending record
		existing, err := claimKey(db, models.IdempotencyKey{
			Key:         key,
			RequestHash: reqHash,
			Method:      method,
			Path:        path,
			UserID:      userID,
		})
		if err != nil {
			return err
		}
		if existing.RequestHash != reqHash {
			return fiber.NewError(fiber.StatusConflict, "Idempotency-Key reuse with different request")
		}
		replayed := existing.ResponseStatus != 0 && existing.ResponseBody != nil
		if replayed {
			c.Set("Idempotent-Replayed", "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(existing.ResponseStatus).Send(existing.ResponseBody)
		}

		if err := c.Next(); err != nil {
			return err
		}

		// ---- Phase 2: store the response (best effort)
		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			return nil
		}
		resp := c.Response().Body()
		blob := make([]byte, len(resp))
		copy(blob, resp)
		storeResponse(db, log, key, status, blob)
		return nil
	}
}

// storeResponse completes the record for key. The response has already been
// produced, so a failure only costs the replay and is logged.
func storeResponse(db *gorm.DB, log *zap.Logger, key string, status int, body []byte) {
	now := time.Now().UTC()
	err := db.Model(&models.IdempotencyKey{}).
		Where(&models.IdempotencyKey{Key: key}).
		Updates(map[string]any{
			"response_status": status,
			"response_body":   body,
			"completed_at":    &now,
		}).Error
	if err != nil {
		log.Warn("idempotency response not stored",
			zap.String("idempotency_key", key),
			zap.Int("status", status),
			zap.Error(err))
	}
}

// claimKey returns the stored record for rec.Key, inserting rec when none
// exists. A failed insert is re-read once; it means a concurrent request won.
// No transaction: a unique violation would abort it on PostgreSQL.
func claimKey(db *gorm.DB, rec models.IdempotencyKey) (models.IdempotencyKey, error) {
	var existing models.IdempotencyKey
	err := db.Where(&models.IdempotencyKey{Key: rec.Key}).First(&existing).Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return existing, fiber.NewError(fiber.StatusInternalServerError, "idempotency lookup failed")
	}
	if err := db.Create(&rec).Error; err == nil {
		return rec, nil
	}
	if err := db.Where(&models.IdempotencyKey{Key: rec.Key}).First(&existing).Error; err != nil {
		return existing, fiber.NewError(fiber.StatusInternalServerError, "idempotency create failed")
	}
	return existing, nil
}

// requestHash is sha256 over method|path|body|user.
func requestHash(method, path string, body []byte, userID string) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(path))
	h.Write([]byte{'\n'})
	h.Write(body)
	h.Write([]byte{'\n'})
	h.Write([]byte(userID))
	return hex.EncodeToString(h.Sum(nil))
}
