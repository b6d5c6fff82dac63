package middlewares

import (
	"errors"
	"strings"
	"time"

	"boltz-license-backend/models"
	"boltz-license-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "

	localUserID = "userID"
	localRole   = "role"

	tokenTTL = 24 * time.Hour
)

// Claims is our custom JWT payload (subject=profile id, plus dashboard role).
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IsAuthenticatedHeader validates a Bearer token, enforces HS256, and populates c.Locals("userID","role").
func IsAuthenticatedHeader(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(secret) == 0 {
			return fiber.NewError(fiber.StatusInternalServerError, "server auth not configured")
		}

		h := c.Get(authHeader)
		if h == "" || !strings.HasPrefix(strings.ToLower(h), strings.ToLower(bearerPrefix)) {
			return fiber.NewError(fiber.StatusUnauthorized, "missing/invalid Authorization header")
		}
		raw := strings.TrimSpace(h[len(bearerPrefix):])
		if raw == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid bearer token")
		}

		parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		var claims Claims
		token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		role, err := models.ParseRole(claims.Role)
		if strings.TrimSpace(claims.Subject) == "" || err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "token missing subject/role")
		}

		c.Locals(localUserID, claims.Subject)
		c.Locals(localRole, role)

		return c.Next()
	}
}

// RequireRole rejects callers whose token role is not listed.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(localRole).(models.Role)
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "insufficient role")
	}
}

// CallerFrom returns the identity stashed by IsAuthenticatedHeader.
func CallerFrom(c *fiber.Ctx) services.Caller {
	id, _ := c.Locals(localUserID).(string)
	role, _ := c.Locals(localRole).(models.Role)
	return services.Caller{ID: id, Role: role}
}

// GenerateJWT signs a new HS256 token for the given profile, expiring in 24h.
func GenerateJWT(secret []byte, userID string, role models.Role) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("JWT secret not configured")
	}
	now := time.Now()
	claims := &Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
