package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/resqnet/backend/pkg/logger"
	"github.com/resqnet/backend/pkg/utils"
	"gorm.io/gorm"
)

// Version is the server version, injected at build time:
//
//	go build -ldflags "-X github.com/resqnet/backend/internal/handlers.Version=1.2.3"
var Version = "dev"

const apiVersion = "v1"

type versionResponse struct {
	Version    string `json:"version"`
	APIVersion string `json:"apiVersion"`
}

func GetVersion(c *fiber.Ctx) error {
	return utils.Success(c, fiber.StatusOK, versionResponse{
		Version:    Version,
		APIVersion: apiVersion,
	})
}

func Health(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			logger.Error("health_check_failed", err, nil)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	}
}
