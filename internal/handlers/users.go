package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/resqnet/backend/internal/middleware"
	"github.com/resqnet/backend/internal/models"
	"github.com/resqnet/backend/internal/services"
	"github.com/resqnet/backend/pkg/logger"
	"github.com/resqnet/backend/pkg/utils"
	"gorm.io/gorm"
)

type UsersHandler struct {
	DB         *gorm.DB
	Volunteers *services.VolunteerService
	Audit      *services.AuditService
}

func NewUsersHandler(db *gorm.DB, volunteers *services.VolunteerService, audit *services.AuditService) *UsersHandler {
	return &UsersHandler{DB: db, Volunteers: volunteers, Audit: audit}
}

func (h *UsersHandler) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)
	search := strings.TrimSpace(c.Query("search"))
	role := models.UserRole(strings.TrimSpace(c.Query("role")))

	query := h.DB.Model(&models.User{})
	if search != "" {
		searchValue := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(name) LIKE ?", searchValue, searchValue)
	}
	if role != "" {
		if !role.Valid() {
			return utils.Error(c, fiber.StatusBadRequest, "invalid role")
		}
		query = query.Where("role = ?", role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting users")
	}

	var users []models.User
	if err := utils.ApplyPagination(query.Order("created_at DESC"), p).Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing users")
	}

	return utils.Paginated(c, users, p.Page, p.Limit, total)
}

func (h *UsersHandler) Get(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.DB.Preload("VolunteerProfile").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	return utils.Success(c, fiber.StatusOK, user)
}

type updateRoleRequest struct {
	Role models.UserRole `json:"role"`
}

func (h *UsersHandler) UpdateRole(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req updateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	admin := middleware.GetCurrentUser(c)
	if admin != nil && admin.ID == userID && req.Role != models.UserRoleAdmin {
		return utils.Error(c, fiber.StatusBadRequest, "admins cannot demote themselves")
	}

	user, err := h.Volunteers.ChangeRole(c.UserContext(), userID, req.Role)
	if err != nil {
		return writeServiceError(c, err, "user_role_change_failed", "failed updating role")
	}

	if admin != nil {
		logger.InfoWithUser(admin.ID.String(), "user_role_changed", map[string]interface{}{
			"target_user_id": userID.String(),
			"role":           string(user.Role),
		})
	}

	logAudit(h.Audit, c, services.AuditEntry{
		Action:       services.AuditAdminRoleChange,
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details:      map[string]interface{}{"role": string(user.Role)},
	})

	return utils.SuccessMessage(c, fiber.StatusOK, "User role updated", user)
}
