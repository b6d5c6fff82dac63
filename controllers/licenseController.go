package controllers

import (
	"fmt"
	"time"

	"boltz-license-backend/middlewares"
	"boltz-license-backend/models"
	"boltz-license-backend/services"
	"boltz-license-backend/utils"

	"github.com/gofiber/fiber/v2"
)

const noUserAssigned = "No user assigned"

type createLicenseRequest struct {
	Application string     `json:"application" validate:"required,max=255"`
	UserEmail   string     `json:"userEmail" validate:"omitempty,email"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	Status      string     `json:"status"`
}

type updateLicenseRequest struct {
	Application *string    `json:"application" validate:"omitempty,max=255"`
	Status      *string    `json:"status"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	ClearExpiry bool       `json:"clearExpiry"`
	ClearHWID   bool       `json:"clearHwid"`
}

// licenseView is a license row joined with its owner for dashboard tables.
type licenseView struct {
	models.License
	UserEmail string `json:"user_email"`
	UserName  string `json:"user_name"`
}

func toView(l models.License) licenseView {
	view := licenseView{License: l, UserEmail: noUserAssigned, UserName: noUserAssigned}
	if l.User != nil {
		view.UserEmail = l.User.Email
		view.UserName = l.User.DisplayName()
		if view.UserName == "" {
			view.UserName = l.User.Email
		}
	}
	return view
}

func parseStatus(raw string) (models.LicenseStatus, error) {
	status, err := models.ParseLicenseStatus(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", services.ErrInvalidInput, err)
	}
	return status, nil
}

func GetLicenses(svc *services.LicenseService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var opts services.ListOptions
		if raw := c.Query("status"); raw != "" {
			status, err := parseStatus(raw)
			if err != nil {
				return err
			}
			opts.Status = status
		}
		since, err := utils.ParseOptionalTime(c.Query("since"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "since must be an RFC3339 timestamp")
		}
		opts.UpdatedSince = since

		// taken before the read so a poll never misses a concurrent write
		refreshedAt := time.Now().UTC()
		licenses, err := svc.List(c.UserContext(), middlewares.CallerFrom(c), opts)
		if err != nil {
			return err
		}

		views := make([]licenseView, 0, len(licenses))
		for _, l := range licenses {
			views = append(views, toView(l))
		}
		return c.JSON(fiber.Map{
			"message":      "success",
			"licenses":     views,
			"refreshed_at": refreshedAt,
		})
	}
}

func GetLicenseStats(svc *services.LicenseService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := svc.Stats(c.UserContext(), middlewares.CallerFrom(c))
		if err != nil {
			return err
		}
		return c.JSON(stats)
	}
}

func GetLicense(svc *services.LicenseService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		license, err := svc.Get(c.UserContext(), middlewares.CallerFrom(c), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(toView(*license))
	}
}

func CreateLicense(svc *services.LicenseService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createLicenseRequest
		if err := middlewares.BindAndValidate(c, &req); err != nil {
			return err
		}

		in := services.CreateLicenseInput{
			Application: req.Application,
			UserEmail:   req.UserEmail,
			ExpiresAt:   req.ExpiresAt,
		}
		if req.Status != "" {
			status, err := parseStatus(req.Status)
			if err != nil {
				return err
			}
			in.Status = status
		}

		license, err := svc.Create(c.UserContext(), middlewares.CallerFrom(c), in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toView(*license))
	}
}

func UpdateLicense(svc *services.LicenseService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req updateLicenseRequest
		if err := middlewares.BindAndValidate(c, &req); err != nil {
			return err
		}

		in := services.UpdateLicenseInput{
			Application: req.Application,
			ExpiresAt:   req.ExpiresAt,
			ClearExpiry: req.ClearExpiry,
			ClearHWID:   req.ClearHWID,
		}
		if req.Status != nil {
			status, err := parseStatus(*req.Status)
			if err != nil {
				return err
			}
			in.Status = &status
		}

		license, err := svc.Update(c.UserContext(), middlewares.CallerFrom(c), c.Params("id"), in)
		if err != nil {
			return err
		}
		return c.JSON(toView(*license))
	}
}

func DeleteLicense(svc *services.LicenseService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Delete(c.UserContext(), middlewares.CallerFrom(c), c.Params("id")); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "success"})
	}
}

func GetLicenseLogs(svc *services.LicenseService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := utils.ParseIntDefault(c.Query("limit"), services.DefaultAuditLimit)
		logs, err := svc.AuditLogs(c.UserContext(), middlewares.CallerFrom(c), c.Params("id"), limit)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"message": "success",
			"logs":    logs,
		})
	}
}
