package routes

import (
	"boltz-license-backend/controllers"
	"boltz-license-backend/database"
	"boltz-license-backend/metrics"
	"boltz-license-backend/middlewares"
	"boltz-license-backend/models"
	"boltz-license-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// verifyHeaders are the request headers browser clients of the public
// verification endpoint send.
const verifyHeaders = "authorization, x-client-info, apikey, content-type"

// Dependencies are the collaborators the route table hands to controllers.
type Dependencies struct {
	Store    database.Store
	DB       *gorm.DB // nil on the in-memory store; disables idempotency
	Verifier *services.Verifier
	Licenses *services.LicenseService
	Auth     *services.AuthService
	Metrics  *metrics.Metrics
	Secret   []byte
	// AllowedOrigins applies to the dashboard API only.
	AllowedOrigins string
	Log            *zap.Logger
}

// Register wires all HTTP routes.
func Register(app *fiber.App, deps Dependencies) {
	app.Get("/healthz", controllers.Health(deps.Store, deps.Log))
	app.Get("/metrics", deps.Metrics.Handler())

	// Public verification, open to every origin. Registered before the
	// /api group so its CORS policy wins for /api/verify.
	verifyCORS := cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST,OPTIONS",
		AllowHeaders: verifyHeaders,
	})
	verify := controllers.VerifyLicense(deps.Verifier, deps.Metrics, deps.Log)
	// cors passes OPTIONS without Access-Control-Request-Method through;
	// those still get the open headers and an empty 204.
	verifyOptions := func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		c.Set(fiber.HeaderAccessControlAllowHeaders, verifyHeaders)
		return c.SendStatus(fiber.StatusNoContent)
	}
	for _, path := range []string{"/functions/v1/verify-license", "/api/verify"} {
		app.Options(path, verifyCORS, verifyOptions)
		app.Post(path, verifyCORS, verify)
	}

	api := app.Group("/api")
	api.Use(cors.New(cors.Config{
		AllowOrigins:     deps.AllowedOrigins,
		AllowCredentials: false, // bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
	}))

	// Public auth endpoints
	api.Post("/registration", controllers.Register(deps.Auth))
	api.Post("/login", controllers.Login(deps.Auth, deps.Secret))
	api.Post("/logout", controllers.Logout)

	// Protected endpoints (JWT auth), scoped so unknown /api paths stay 404
	authenticated := middlewares.IsAuthenticatedHeader(deps.Secret)
	api.Get("/me", authenticated, controllers.Me(deps.Auth))

	issuers := middlewares.RequireRole(models.RoleAdmin, models.RoleReseller)

	licenses := api.Group("/licenses", authenticated, middlewares.Idempotency(deps.DB, deps.Log))
	licenses.Get("/", controllers.GetLicenses(deps.Licenses))
	licenses.Get("/stats", controllers.GetLicenseStats(deps.Licenses))
	licenses.Post("/", issuers, controllers.CreateLicense(deps.Licenses))
	licenses.Get("/:id", controllers.GetLicense(deps.Licenses))
	licenses.Patch("/:id", issuers, controllers.UpdateLicense(deps.Licenses))
	licenses.Delete("/:id", issuers, controllers.DeleteLicense(deps.Licenses))
	licenses.Get("/:id/logs", controllers.GetLicenseLogs(deps.Licenses))
}
