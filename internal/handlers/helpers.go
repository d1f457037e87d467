package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/middleware"
	"github.com/resqnet/backend/internal/services"
	"github.com/resqnet/backend/internal/storage"
	"github.com/resqnet/backend/pkg/logger"
	"github.com/resqnet/backend/pkg/utils"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

func getRequestID(c *fiber.Ctx) string {
	return middleware.GetRequestID(c)
}

func currentActor(c *fiber.Ctx) (services.Actor, bool) {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return services.Actor{}, false
	}
	return services.ActorFromUser(user), true
}

// writeServiceError maps service error kinds onto HTTP statuses. Anything
// unclassified is logged and reported as a 500 with fallback as the message.
func writeServiceError(c *fiber.Ctx, err error, action, fallback string) error {
	var svcErr *services.Error
	message := fallback
	if errors.As(err, &svcErr) {
		message = svcErr.Error()
	}

	switch {
	case errors.Is(err, services.ErrValidation):
		return utils.Error(c, fiber.StatusBadRequest, message)
	case errors.Is(err, services.ErrNotFound):
		return utils.Error(c, fiber.StatusNotFound, message)
	case errors.Is(err, services.ErrForbidden):
		return utils.Error(c, fiber.StatusForbidden, message)
	case errors.Is(err, services.ErrConflict):
		return utils.Error(c, fiber.StatusConflict, message)
	}

	details := map[string]interface{}{
		"path":       c.Path(),
		"request_id": getRequestID(c),
	}
	if userID := logger.GetUserIDFromContext(c); userID != nil {
		logger.ErrorWithUser(*userID, action, err, details)
	} else {
		logger.Error(action, err, details)
	}
	return utils.Error(c, fiber.StatusInternalServerError, fallback)
}

func writeUploadError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		return utils.Error(c, fiber.StatusBadRequest, "only JPEG, PNG, WebP and PDF files are allowed")
	case errors.Is(err, storage.ErrTooLarge):
		return utils.Error(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, storage.ErrEmptyFile):
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}
	logger.Error("media_upload_failed", err, map[string]interface{}{
		"path":       c.Path(),
		"request_id": getRequestID(c),
	})
	return utils.Error(c, fiber.StatusBadGateway, "failed storing upload")
}

// splitList accepts repeated form values as well as comma separated ones.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// logAudit fills in request metadata and the acting user before queueing.
func logAudit(audit *services.AuditService, c *fiber.Ctx, entry services.AuditEntry) {
	entry.IPAddress = c.IP()
	entry.RequestID = getRequestID(c)
	if entry.UserID == nil {
		if user := middleware.GetCurrentUser(c); user != nil {
			id := user.ID
			entry.UserID = &id
		}
	}
	audit.LogAsync(entry)
}
