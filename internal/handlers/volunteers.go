package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/resqnet/backend/internal/geo"
	"github.com/resqnet/backend/internal/middleware"
	"github.com/resqnet/backend/internal/services"
	"github.com/resqnet/backend/internal/storage"
	"github.com/resqnet/backend/pkg/logger"
	"github.com/resqnet/backend/pkg/utils"
)

type VolunteerHandler struct {
	Volunteers *services.VolunteerService
	Matching   *services.MatchingService
	Media      storage.MediaStore
	Audit      *services.AuditService
}

func NewVolunteerHandler(volunteers *services.VolunteerService, matching *services.MatchingService, media storage.MediaStore, audit *services.AuditService) *VolunteerHandler {
	return &VolunteerHandler{Volunteers: volunteers, Matching: matching, Media: media, Audit: audit}
}

// Register accepts either a multipart form carrying the idProof file or a
// JSON body with an already uploaded idProofUrl.
func (h *VolunteerHandler) Register(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var input services.RegisterVolunteerInput
	uploaded := ""

	if strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid multipart form")
		}
		input.Skills = splitList(form.Value["skills"])
		input.IDProofType = firstValue(form.Value["idProofType"])
		if raw := firstValue(form.Value["radiusKm"]); raw != "" {
			input.RadiusKm, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return utils.Error(c, fiber.StatusBadRequest, "invalid radiusKm")
			}
		}
		if raw := firstValue(form.Value["availability"]); raw != "" {
			available, err := strconv.ParseBool(raw)
			if err != nil {
				return utils.Error(c, fiber.StatusBadRequest, "invalid availability")
			}
			input.Availability = &available
		}

		files := form.File["idProof"]
		if len(files) == 0 {
			return utils.Error(c, fiber.StatusBadRequest, "idProof file is required")
		}
		fileHeader := files[0]
		contentType := fileHeader.Header.Get("Content-Type")
		if err := storage.ValidateUpload(contentType, fileHeader.Size); err != nil {
			return writeUploadError(c, err)
		}
		file, err := fileHeader.Open()
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "failed reading upload")
		}
		uploaded, err = h.Media.Store(c.UserContext(), "id-proofs", fileHeader.Filename, file, fileHeader.Size, contentType)
		file.Close()
		if err != nil {
			return writeUploadError(c, err)
		}
		input.IDProofURL = uploaded
	} else if err := c.BodyParser(&input); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	volunteer, err := h.Volunteers.Register(c.UserContext(), user.ID, input)
	if err != nil {
		if uploaded != "" {
			if delErr := h.Media.Delete(c.UserContext(), uploaded); delErr != nil {
				logger.Warn("id_proof_cleanup_failed", map[string]interface{}{
					"user_id": user.ID.String(),
					"url":     uploaded,
				})
			}
		}
		return writeServiceError(c, err, "volunteer_register_failed", "failed registering volunteer")
	}

	logger.InfoWithUser(user.ID.String(), "volunteer_registered", map[string]interface{}{
		"skills":    volunteer.VolunteerProfile.Skills,
		"radius_km": volunteer.VolunteerProfile.RadiusKm,
	})

	logAudit(h.Audit, c, services.AuditEntry{
		Action:       services.AuditVolunteerRegister,
		ResourceType: "user",
		ResourceID:   &volunteer.ID,
		Details:      map[string]interface{}{"id_proof_type": volunteer.VolunteerProfile.IDProofType},
	})

	return utils.SuccessMessage(c, fiber.StatusCreated, "Volunteer registered successfully", volunteer)
}

func (h *VolunteerHandler) Update(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var patch services.VolunteerPatch
	if err := c.BodyParser(&patch); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	volunteer, err := h.Volunteers.UpdateProfile(c.UserContext(), user.ID, patch)
	if err != nil {
		return writeServiceError(c, err, "volunteer_update_failed", "failed updating volunteer profile")
	}

	logAudit(h.Audit, c, services.AuditEntry{
		Action:       services.AuditVolunteerUpdate,
		ResourceType: "user",
		ResourceID:   &volunteer.ID,
	})

	return utils.SuccessMessage(c, fiber.StatusOK, "Volunteer profile updated", volunteer)
}

func (h *VolunteerHandler) List(c *fiber.Ctx) error {
	page := utils.ParsePagination(c)

	volunteers, total, err := h.Volunteers.List(c.UserContext(), page)
	if err != nil {
		return writeServiceError(c, err, "volunteer_list_failed", "failed fetching volunteers")
	}
	return utils.Paginated(c, volunteers, page.Page, page.Limit, total)
}

func (h *VolunteerHandler) Nearby(c *fiber.Ctx) error {
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	if errLng != nil || errLat != nil {
		return utils.Error(c, fiber.StatusBadRequest, "lng and lat are required numbers")
	}

	radiusKm := h.Matching.DefaultRadiusKm
	if raw := c.Query("radiusKm"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid radiusKm")
		}
		radiusKm = parsed
	}

	candidates, err := h.Matching.FindNearbyVolunteers(c.UserContext(), geo.NewPoint(lng, lat), radiusKm)
	if err != nil {
		return writeServiceError(c, err, "volunteer_nearby_failed", "failed finding volunteers")
	}
	return utils.Success(c, fiber.StatusOK, candidates)
}

type verifyRequest struct {
	Verified *bool `json:"verified"`
}

func (h *VolunteerHandler) Verify(c *fiber.Ctx) error {
	volunteerID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid volunteer id")
	}

	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Verified == nil {
		return utils.Error(c, fiber.StatusBadRequest, "verified is required")
	}

	volunteer, err := h.Volunteers.SetVerified(c.UserContext(), volunteerID, *req.Verified)
	if err != nil {
		return writeServiceError(c, err, "volunteer_verify_failed", "failed verifying volunteer")
	}

	logAudit(h.Audit, c, services.AuditEntry{
		Action:       services.AuditVolunteerVerify,
		ResourceType: "user",
		ResourceID:   &volunteer.ID,
		Details:      map[string]interface{}{"verified": *req.Verified},
	})

	return utils.SuccessMessage(c, fiber.StatusOK, "Volunteer verification updated", volunteer)
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
