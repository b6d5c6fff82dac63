package controllers

import (
	"time"

	"boltz-license-backend/middlewares"
	"boltz-license-backend/services"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
	FirstName       string `json:"first_name" validate:"max=100"`
	LastName        string `json:"last_name" validate:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func Register(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req registerRequest
		if err := middlewares.BindAndValidate(c, &req); err != nil {
			return err
		}
		if req.Password != req.PasswordConfirm {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "passwords do not match",
			})
		}

		profile, err := auth.Register(c.UserContext(), services.RegisterInput{
			Email:     req.Email,
			Password:  req.Password,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(profile)
	}
}

func Login(auth *services.AuthService, secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req loginRequest
		if err := middlewares.BindAndValidate(c, &req); err != nil {
			return err
		}

		profile, err := auth.Login(c.UserContext(), req.Email, req.Password)
		if err != nil {
			return err
		}

		token, err := middlewares.GenerateJWT(secret, profile.ID, profile.Role)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user": fiber.Map{
				"id":    profile.ID,
				"name":  profile.DisplayName(),
				"email": profile.Email,
				"role":  profile.Role,
			},
		})
	}
}

func Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "jwt",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return c.JSON(fiber.Map{
		"message": "success",
	})
}

func Me(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		profile, err := auth.Profile(c.UserContext(), middlewares.CallerFrom(c).ID)
		if err != nil {
			return err
		}
		return c.JSON(profile)
	}
}
