package handlers

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/resqnet/backend/internal/geo"
	"github.com/resqnet/backend/internal/middleware"
	"github.com/resqnet/backend/internal/models"
	"github.com/resqnet/backend/internal/services"
	"github.com/resqnet/backend/internal/storage"
	"github.com/resqnet/backend/pkg/logger"
	"github.com/resqnet/backend/pkg/utils"
	"gorm.io/gorm"
)

const refreshCookieName = "refreshToken"

type AuthHandler struct {
	DB            *gorm.DB
	Audit         *services.AuditService
	Volunteers    *services.VolunteerService
	Media         storage.MediaStore
	SecureCookies bool
}

func NewAuthHandler(db *gorm.DB, audit *services.AuditService, volunteers *services.VolunteerService, media storage.MediaStore, secureCookies bool) *AuthHandler {
	return &AuthHandler{DB: db, Audit: audit, Volunteers: volunteers, Media: media, SecureCookies: secureCookies}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)

	if _, err := mail.ParseAddress(req.Email); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid email")
	}
	if len(req.Password) < 8 {
		return utils.Error(c, fiber.StatusBadRequest, "password must be at least 8 characters")
	}
	if req.Name == "" || req.Phone == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name and phone are required")
	}

	var existing models.User
	if err := h.DB.First(&existing, "email = ?", req.Email).Error; err == nil {
		return utils.Error(c, fiber.StatusConflict, "email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking existing user")
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to hash password")
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: passwordHash,
		Role:         models.UserRoleUser,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating user")
	}

	logger.Info("user_registered", map[string]interface{}{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"role":    string(user.Role),
	})

	logAudit(h.Audit, c, services.AuditEntry{
		UserID:       &user.ID,
		Action:       services.AuditUserRegister,
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details:      map[string]interface{}{"email": user.Email},
	})

	return h.issueTokens(c, fiber.StatusCreated, "User registered successfully", &user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Email == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email and password are required")
	}

	var user models.User
	if err := h.DB.Preload("VolunteerProfile").First(&user, "email = ?", req.Email).Error; err != nil {
		logger.Warn("login_failed_user_not_found", map[string]interface{}{
			"email": req.Email,
			"ip":    c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		logger.Warn("login_failed_invalid_password", map[string]interface{}{
			"user_id": user.ID.String(),
			"email":   req.Email,
			"ip":      c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	logger.Info("user_login", map[string]interface{}{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"ip":      c.IP(),
	})

	logAudit(h.Audit, c, services.AuditEntry{
		UserID:       &user.ID,
		Action:       services.AuditUserLogin,
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details:      map[string]interface{}{"email": user.Email},
	})

	return h.issueTokens(c, fiber.StatusOK, "Login successful", &user)
}

func (h *AuthHandler) issueTokens(c *fiber.Ctx, status int, message string, user *models.User) error {
	accessToken, err := utils.GenerateToken(user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}
	refreshToken, err := utils.GenerateRefreshToken(user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    refreshToken,
		Path:     "/api/auth",
		Expires:  time.Now().Add(utils.RefreshTTL()),
		HTTPOnly: true,
		Secure:   h.SecureCookies,
		SameSite: fiber.CookieSameSiteStrictMode,
	})

	return utils.SuccessMessage(c, status, message, fiber.Map{"accessToken": accessToken, "user": user})
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token := c.Cookies(refreshCookieName)
	if token == "" {
		return utils.Error(c, fiber.StatusUnauthorized, "no refresh token found")
	}

	claims, err := utils.ValidateRefreshToken(token)
	if err != nil {
		logger.Warn("refresh_token_invalid", map[string]interface{}{
			"ip":    c.IP(),
			"error": err.Error(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired refresh token")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", claims.UserID).Error; err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "user not found")
	}

	accessToken, err := utils.GenerateToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}
	return utils.SuccessMessage(c, fiber.StatusOK, "Access token refreshed", fiber.Map{"accessToken": accessToken})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/auth",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.SecureCookies,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return utils.SuccessMessage(c, fiber.StatusOK, "Logged out successfully", nil)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, user)
}

type updateMeRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateMeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return utils.Error(c, fiber.StatusBadRequest, "name cannot be empty")
		}
		updates["name"] = name
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if phone == "" {
			return utils.Error(c, fiber.StatusBadRequest, "phone cannot be empty")
		}
		updates["phone"] = phone
	}
	if len(updates) == 0 {
		return utils.Success(c, fiber.StatusOK, user)
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating profile")
	}

	var updated models.User
	if err := h.DB.Preload("VolunteerProfile").First(&updated, "id = ?", user.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated profile")
	}

	logAudit(h.Audit, c, services.AuditEntry{
		Action:       services.AuditUserProfileUpdate,
		ResourceType: "user",
		ResourceID:   &user.ID,
	})

	return utils.Success(c, fiber.StatusOK, &updated)
}

type locationRequest struct {
	Location *geo.Point `json:"location"`
}

func (h *AuthHandler) UpdateLocation(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req locationRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Location == nil {
		return utils.Error(c, fiber.StatusBadRequest, "location is required")
	}

	updated, err := h.Volunteers.UpdateLocation(c.UserContext(), user.ID, *req.Location)
	if err != nil {
		return writeServiceError(c, err, "location_update_failed", "failed updating location")
	}

	logAudit(h.Audit, c, services.AuditEntry{
		Action:       services.AuditUserLocationUpdate,
		ResourceType: "user",
		ResourceID:   &user.ID,
	})

	return utils.SuccessMessage(c, fiber.StatusOK, "Location updated", updated)
}

func (h *AuthHandler) UploadProfileImage(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "no image uploaded")
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if strings.HasSuffix(strings.ToLower(contentType), "pdf") {
		return utils.Error(c, fiber.StatusBadRequest, "profile image must be an image")
	}
	if err := storage.ValidateUpload(contentType, fileHeader.Size); err != nil {
		return writeUploadError(c, err)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed reading upload")
	}
	defer file.Close()

	imageURL, err := h.Media.Store(c.UserContext(), "profile-images", fileHeader.Filename, file, fileHeader.Size, contentType)
	if err != nil {
		return writeUploadError(c, err)
	}

	previous := user.ProfileImageURL
	if err := h.DB.Model(&models.User{}).Where("id = ?", user.ID).Update("profile_image_url", imageURL).Error; err != nil {
		_ = h.Media.Delete(c.UserContext(), imageURL)
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating profile image")
	}
	if previous != nil && *previous != "" {
		if err := h.Media.Delete(c.UserContext(), *previous); err != nil {
			logger.Warn("profile_image_cleanup_failed", map[string]interface{}{
				"user_id": user.ID.String(),
				"url":     *previous,
			})
		}
	}

	logAudit(h.Audit, c, services.AuditEntry{
		Action:       services.AuditUserProfileUpdate,
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details:      map[string]interface{}{"profile_image": true},
	})

	return utils.SuccessMessage(c, fiber.StatusOK, "Profile image updated successfully", fiber.Map{"imageUrl": imageURL})
}
