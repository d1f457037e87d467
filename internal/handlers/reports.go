package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/models"
	"github.com/resqnet/backend/internal/services"
	"github.com/resqnet/backend/pkg/logger"
	"github.com/resqnet/backend/pkg/utils"
)

type ReportHandler struct {
	Reports     *services.ReportService
	Assignments *services.AssignmentService
	Matching    *services.MatchingService
	Audit       *services.AuditService
}

func NewReportHandler(reports *services.ReportService, assignments *services.AssignmentService, matching *services.MatchingService, audit *services.AuditService) *ReportHandler {
	return &ReportHandler{Reports: reports, Assignments: assignments, Matching: matching, Audit: audit}
}

func (h *ReportHandler) Create(c *fiber.Ctx) error {
	actor, ok := currentActor(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var input services.CreateReportInput
	if err := c.BodyParser(&input); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	report, err := h.Reports.Create(c.UserContext(), actor.ID, input)
	if err != nil {
		return writeServiceError(c, err, "report_create_failed", "failed creating report")
	}

	logger.InfoWithUser(actor.ID.String(), "report_created", map[string]interface{}{
		"report_id":      report.ID.String(),
		"emergency_type": report.EmergencyType,
		"priority":       report.PriorityLevel,
	})

	logAudit(h.Audit, c, services.AuditEntry{
		Action:       services.AuditReportCreate,
		ResourceType: "report",
		ResourceID:   &report.ID,
		Details: map[string]interface{}{
			"emergency_type": report.EmergencyType,
			"priority":       report.PriorityLevel,
		},
	})

	return utils.SuccessMessage(c, fiber.StatusCreated, "Report created successfully", report)
}

func (h *ReportHandler) List(c *fiber.Ctx) error {
	actor, ok := currentActor(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	reports, err := h.Reports.List(c.UserContext(), actor)
	if err != nil {
		return writeServiceError(c, err, "report_list_failed", "failed fetching reports")
	}
	return utils.Success(c, fiber.StatusOK, reports)
}

func (h *ReportHandler) Get(c *fiber.Ctx) error {
	actor, ok := currentActor(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	reportID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid report id")
	}

	report, err := h.Reports.Get(c.UserContext(), actor, reportID)
	if err != nil {
		return writeServiceError(c, err, "report_get_failed", "failed fetching report")
	}
	return utils.Success(c, fiber.StatusOK, report)
}

type updateStatusRequest struct {
	Status      string  `json:"status"`
	VolunteerID *string `json:"volunteerId"`
}

func (h *ReportHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, ok := currentActor(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	reportID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid report id")
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	var volunteerID *uuid.UUID
	if req.VolunteerID != nil && *req.VolunteerID != "" {
		parsed, err := parseUUID(*req.VolunteerID)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid volunteer id")
		}
		volunteerID = &parsed
	}

	result, err := h.Assignments.Transition(c.UserContext(), actor, reportID, models.ReportStatus(req.Status), volunteerID)
	if err != nil {
		return writeServiceError(c, err, "report_transition_failed", "failed updating report status")
	}

	if result.Changed {
		details := map[string]interface{}{
			"from": string(result.From),
			"to":   string(result.Report.Status),
		}
		if result.Report.AssignedVolunteerID != nil {
			details["volunteer_id"] = result.Report.AssignedVolunteerID.String()
		}

		logger.InfoWithUser(actor.ID.String(), "report_transitioned", map[string]interface{}{
			"report_id": reportID.String(),
			"from":      string(result.From),
			"to":        string(result.Report.Status),
		})

		logAudit(h.Audit, c, services.AuditEntry{
			Action:       services.AuditReportTransition,
			ResourceType: "report",
			ResourceID:   &result.Report.ID,
			Details:      details,
		})
	}

	return utils.SuccessMessage(c, fiber.StatusOK, "Report status updated", result.Report)
}

func (h *ReportHandler) Candidates(c *fiber.Ctx) error {
	reportID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid report id")
	}

	var radiusKm float64
	if raw := c.Query("radiusKm"); raw != "" {
		radiusKm, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid radiusKm")
		}
	}

	candidates, err := h.Matching.CandidatesForReport(c.UserContext(), reportID, radiusKm)
	if err != nil {
		return writeServiceError(c, err, "report_candidates_failed", "failed finding volunteers")
	}
	return utils.Success(c, fiber.StatusOK, candidates)
}

func (h *ReportHandler) History(c *fiber.Ctx) error {
	reportID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid report id")
	}

	logs, err := h.Audit.ReportHistory(c.UserContext(), reportID)
	if err != nil {
		return writeServiceError(c, err, "report_history_failed", "failed fetching report history")
	}
	return utils.Success(c, fiber.StatusOK, logs)
}
