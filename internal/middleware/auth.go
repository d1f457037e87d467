package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/resqnet/backend/internal/models"
	"github.com/resqnet/backend/pkg/logger"
	"github.com/resqnet/backend/pkg/utils"
	"gorm.io/gorm"
)

const (
	currentUserKey = "currentUser"
	// userIDKey is read by logger.GetUserIDFromContext.
	userIDKey = "userID"
)

var (
	errMissingAuthHeader = errors.New("missing authorization header")
	errInvalidAuthFormat = errors.New("invalid authorization format")
)

// AuthMiddleware resolves the bearer access token to a users row. The role is
// taken from that row, never from the token, so promotions and demotions
// apply on the next request.
type AuthMiddleware struct {
	DB *gorm.DB
}

func NewAuthMiddleware(db *gorm.DB) *AuthMiddleware {
	return &AuthMiddleware{DB: db}
}

func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	token, err := bearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return rejectAuth(c, "jwt_bad_header", err.Error(), map[string]interface{}{
			"reason": err.Error(),
		})
	}

	claims, err := utils.ValidateToken(token)
	if err != nil {
		return rejectAuth(c, "jwt_validation_failed", "invalid or expired token", map[string]interface{}{
			"error": err.Error(),
		})
	}

	var user models.User
	err = a.DB.WithContext(c.UserContext()).Preload("VolunteerProfile").First(&user, "id = ?", claims.UserID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("jwt_user_lookup_failed", err, map[string]interface{}{
				"user_id": claims.UserID.String(),
			})
			return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
		}
		return rejectAuth(c, "jwt_user_not_found", "user not found", map[string]interface{}{
			"user_id": claims.UserID.String(),
		})
	}

	c.Locals(currentUserKey, &user)
	c.Locals(userIDKey, user.ID.String())
	return c.Next()
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingAuthHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errInvalidAuthFormat
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", errInvalidAuthFormat
	}
	return token, nil
}

func rejectAuth(c *fiber.Ctx, action, message string, details map[string]interface{}) error {
	details["ip"] = c.IP()
	details["path"] = c.Path()
	logger.Warn(action, details)
	return utils.Error(c, fiber.StatusUnauthorized, message)
}

// RequireRoles rejects callers whose role is not listed. It must run after
// RequireAuth.
func RequireRoles(roles ...models.UserRole) fiber.Handler {
	return roleGate("insufficient permissions", roles...)
}

// AdminOnly is RequireRoles(admin) with its own error message.
var AdminOnly = roleGate("admin access required", models.UserRoleAdmin)

func roleGate(denied string, roles ...models.UserRole) fiber.Handler {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		user := GetCurrentUser(c)
		if user == nil {
			return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
		}
		if _, ok := allowed[user.Role]; !ok {
			logger.WarnWithUser(user.ID.String(), "role_denied", map[string]interface{}{
				"role": string(user.Role),
				"path": c.Path(),
			})
			return utils.Error(c, fiber.StatusForbidden, denied)
		}
		return c.Next()
	}
}

// GetCurrentUser returns the user stored by RequireAuth, or nil on
// unauthenticated routes.
func GetCurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(currentUserKey).(*models.User)
	return user
}
