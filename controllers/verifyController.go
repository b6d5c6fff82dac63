package controllers

import (
	"encoding/json"
	"errors"

	"boltz-license-backend/metrics"
	"boltz-license-backend/services"
	"boltz-license-backend/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type verifyRequest struct {
	LicenseKey      string `json:"licenseKey"`
	ApplicationName string `json:"applicationName"`
	HWID            string `json:"hwid"`
}

// VerificationResult is the response body of every verification call.
type VerificationResult struct {
	Success bool                       `json:"success"`
	Message string                     `json:"message"`
	Data    *services.VerificationData `json:"data,omitempty"`
}

var kindStatus = map[services.FailureKind]int{
	services.KindInvalidInput: fiber.StatusBadRequest,
	services.KindNotFound:     fiber.StatusNotFound,
	services.KindPolicy:       fiber.StatusForbidden,
	services.KindInternal:     fiber.StatusInternalServerError,
}

// VerifyLicense is the public license check used by client applications.
func VerifyLicense(verifier *services.Verifier, m *metrics.Metrics, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req verifyRequest
		if body := c.Body(); len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				m.ObserveVerification(services.KindInvalidInput.String())
				return c.Status(fiber.StatusBadRequest).JSON(VerificationResult{
					Message: "Invalid request body",
				})
			}
		}

		data, err := verifier.Verify(c.UserContext(), services.VerifyInput{
			LicenseKey:      req.LicenseKey,
			ApplicationName: req.ApplicationName,
			HWID:            req.HWID,
			IPAddress:       utils.ClientIP(c.Get("X-Forwarded-For"), c.Get("X-Real-IP"), c.IP()),
			UserAgent:       c.Get(fiber.HeaderUserAgent),
		})
		if err != nil {
			var ve *services.VerifyError
			if !errors.As(err, &ve) {
				ve = &services.VerifyError{Kind: services.KindInternal, Message: services.MsgInternalServerError, Err: err}
			}
			if ve.Kind == services.KindInternal {
				log.Error("license verification failed", zap.Error(ve))
			}
			m.ObserveVerification(ve.Kind.String())
			return c.Status(kindStatus[ve.Kind]).JSON(VerificationResult{Message: ve.Message})
		}

		m.ObserveVerification("success")
		return c.Status(fiber.StatusOK).JSON(VerificationResult{
			Success: true,
			Message: services.MsgValid,
			Data:    &data,
		})
	}
}
