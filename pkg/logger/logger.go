package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var globalLogger *logrus.Logger

// New builds a JSON logrus logger writing to output at the given level name.
// Unknown levels fall back to info.
func New(output io.Writer, level string) *logrus.Logger {
	if output == nil {
		output = os.Stdout
	}

	l := logrus.New()
	l.SetOutput(output)
	l.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
			logrus.FieldKeyMsg:  "action",
		},
	})
	l.SetLevel(parseLevel(level))
	return l
}

// Init configures the global logger from LOG_LEVEL.
func Init() {
	globalLogger = New(os.Stdout, os.Getenv("LOG_LEVEL"))
}

// SetOutput replaces the global logger. Used by tests to capture entries.
func SetOutput(output io.Writer, level string) {
	globalLogger = New(output, level)
}

func parseLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

func entry(userID *string, details map[string]interface{}, err error) *logrus.Entry {
	fields := logrus.Fields{}
	if len(details) > 0 {
		fields["details"] = details
	}
	if userID != nil {
		fields["user_id"] = *userID
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	return globalLogger.WithFields(fields)
}

func Debug(action string, details map[string]interface{}) {
	if globalLogger != nil {
		entry(nil, details, nil).Debug(action)
	}
}

func Info(action string, details map[string]interface{}) {
	if globalLogger != nil {
		entry(nil, details, nil).Info(action)
	}
}

func InfoWithUser(userID string, action string, details map[string]interface{}) {
	if globalLogger != nil {
		entry(&userID, details, nil).Info(action)
	}
}

func Warn(action string, details map[string]interface{}) {
	if globalLogger != nil {
		entry(nil, details, nil).Warn(action)
	}
}

func WarnWithUser(userID string, action string, details map[string]interface{}) {
	if globalLogger != nil {
		entry(&userID, details, nil).Warn(action)
	}
}

func Error(action string, err error, details map[string]interface{}) {
	if globalLogger != nil {
		entry(nil, details, err).Error(action)
	}
}

func ErrorWithUser(userID string, action string, err error, details map[string]interface{}) {
	if globalLogger != nil {
		entry(&userID, details, err).Error(action)
	}
}

func GetUserIDFromContext(c *fiber.Ctx) *string {
	if userID := c.Locals("userID"); userID != nil {
		if id, ok := userID.(string); ok {
			return &id
		}
	}
	return nil
}

var sensitiveFields = []string{"password", "oldPassword", "newPassword", "refreshToken", "token", "idProofUrl"}

func redactSensitiveFields(jsonMap map[string]interface{}) {
	for _, field := range sensitiveFields {
		if _, exists := jsonMap[field]; exists {
			jsonMap[field] = "[REDACTED]"
		}
	}
}

func GetRequestBodySummary(c *fiber.Ctx) string {
	body := c.Body()
	if len(body) == 0 {
		return "empty"
	}

	if len(body) > 1024 {
		return fmt.Sprintf("large (%d bytes)", len(body))
	}

	var jsonMap map[string]interface{}
	if err := json.Unmarshal(body, &jsonMap); err == nil {
		redactSensitiveFields(jsonMap)
		if jsonBytes, err := json.Marshal(jsonMap); err == nil {
			if len(jsonBytes) > 200 {
				return string(jsonBytes[:200]) + "..."
			}
			return string(jsonBytes)
		}
	}

	return fmt.Sprintf("binary (%d bytes)", len(body))
}

func GetResponseSizeSummary(c *fiber.Ctx) string {
	response := c.Response()
	if response == nil {
		return "unknown"
	}

	body := response.Body()
	if len(body) == 0 {
		return "empty"
	}

	if len(body) > 1024 {
		return fmt.Sprintf("large (%d bytes)", len(body))
	}

	return fmt.Sprintf("small (%d bytes)", len(body))
}

func GenerateRequestID() string {
	return uuid.New().String()
}
