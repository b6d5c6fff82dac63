package middlewares

import (
	"net/http/httptest"
	"strings"
	"testing"

	"boltz-license-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// unreachableDB returns a handle whose every query fails to connect.
func unreachableDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.Open("postgres://boltz:pw@127.0.0.1:1/boltz?sslmode=disable&connect_timeout=1"), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               gormlogger.Discard,
	})
	require.NoError(t, err)
	return db
}

func TestStoreResponseLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	storeResponse(unreachableDB(t), zap.New(core), "key-1", fiber.StatusCreated, []byte(`{}`))

	entries := logs.FilterMessage("idempotency response not stored").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "key-1", fields["idempotency_key"])
	assert.EqualValues(t, fiber.StatusCreated, fields["status"])
	assert.NotEmpty(t, fields["error"])
}

func TestIdempotencyLookupFailureIsInternal(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	app.Post("/",
		func(c *fiber.Ctx) error {
			c.Locals(localUserID, "u1")
			c.Locals(localRole, models.RoleAdmin)
			return c.Next()
		},
		Idempotency(unreachableDB(t), zap.NewNop()),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) },
	)

	req := httptest.NewRequest(fiber.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Idempotency-Key", "abc")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestIdempotencyRejectsOverlongKey(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	app.Post("/", Idempotency(unreachableDB(t), zap.NewNop()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	req := httptest.NewRequest(fiber.MethodPost, "/", nil)
	req.Header.Set("Idempotency-Key", strings.Repeat("k", maxIdempotencyKeyLen+1))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
