package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/resqnet/backend/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := c.Get(requestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = logger.GenerateRequestID()
		}
		c.Locals("requestID", requestID)
		c.Set(requestIDHeader, requestID)

		err := c.Next()

		latency := time.Since(start)
		statusCode := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				statusCode = fe.Code
			} else {
				statusCode = fiber.StatusInternalServerError
			}
		}

		userID := logger.GetUserIDFromContext(c)
		details := map[string]interface{}{
			"method":        c.Method(),
			"path":          c.Path(),
			"status_code":   statusCode,
			"latency_ms":    latency.Milliseconds(),
			"user_agent":    c.Get("User-Agent"),
			"ip":            c.IP(),
			"request_body":  logger.GetRequestBodySummary(c),
			"response_body": logger.GetResponseSizeSummary(c),
			"request_id":    requestID,
		}

		switch {
		case statusCode >= 500 && userID != nil:
			logger.ErrorWithUser(*userID, "http_request", err, details)
		case statusCode >= 500:
			logger.Error("http_request", err, details)
		case statusCode >= 400 && userID != nil:
			logger.WarnWithUser(*userID, "http_request", details)
		case statusCode >= 400:
			logger.Warn("http_request", details)
		case userID != nil:
			logger.InfoWithUser(*userID, "http_request", details)
		default:
			logger.Info("http_request", details)
		}

		return err
	}
}

func SecurityLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		statusCode := c.Response().StatusCode()
		var reason string
		switch statusCode {
		case fiber.StatusUnauthorized:
			reason = "unauthenticated"
		case fiber.StatusForbidden:
			reason = "access_denied"
		case fiber.StatusNotFound:
			reason = "not_found"
		default:
			return err
		}

		userID := logger.GetUserIDFromContext(c)
		details := map[string]interface{}{
			"method":  c.Method(),
			"path":    c.Path(),
			"ip":      c.IP(),
			"user_id": userID,
			"reason":  reason,
		}

		if userID != nil {
			logger.WarnWithUser(*userID, reason, details)
		} else {
			logger.Warn(reason+"_unauthenticated", details)
		}

		return err
	}
}

// GetRequestID returns the id assigned by RequestLogger.
func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestID").(string); ok {
		return id
	}
	return ""
}
