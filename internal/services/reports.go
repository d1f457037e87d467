package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/geo"
	"github.com/resqnet/backend/internal/models"
	"gorm.io/gorm"
)

type CreateReportInput struct {
	Text             string     `json:"text"`
	Location         *geo.Point `json:"location"`
	Address          string     `json:"address"`
	EmergencyType    string     `json:"emergencyType"`
	PriorityLevel    string     `json:"priorityLevel"`
	RequiredSupplies []string   `json:"requiredSupplies"`
}

// ContactCard is the subset of a user shown alongside a report.
type ContactCard struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone"`
}

type ReportView struct {
	models.Report
	Reporter          *ContactCard `json:"reporter"`
	AssignedVolunteer *ContactCard `json:"assignedVolunteer"`
}

type ReportService struct {
	DB *gorm.DB
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{DB: db}
}

func (s *ReportService) Create(ctx context.Context, reporterID uuid.UUID, input CreateReportInput) (*models.Report, error) {
	text := strings.TrimSpace(input.Text)
	emergencyType := strings.TrimSpace(input.EmergencyType)
	priority := strings.TrimSpace(input.PriorityLevel)

	if text == "" {
		return nil, validationError("text is required")
	}
	if input.Location == nil {
		return nil, validationError("location is required")
	}
	if err := input.Location.Validate(); err != nil {
		return nil, validationError("%v", err)
	}
	if emergencyType == "" {
		return nil, validationError("emergencyType is required")
	}
	if priority == "" {
		return nil, validationError("priorityLevel is required")
	}

	supplies := make([]string, 0, len(input.RequiredSupplies))
	for _, item := range input.RequiredSupplies {
		if item = strings.TrimSpace(item); item != "" {
			supplies = append(supplies, item)
		}
	}

	report := &models.Report{
		ReporterID:       reporterID,
		Text:             text,
		Location:         *input.Location,
		Address:          strings.TrimSpace(input.Address),
		EmergencyType:    emergencyType,
		PriorityLevel:    priority,
		RequiredSupplies: supplies,
		Status:           models.ReportStatusPending,
	}
	if err := s.DB.WithContext(ctx).Create(report).Error; err != nil {
		return nil, fmt.Errorf("creating report: %w", err)
	}
	return report, nil
}

// List returns the reports visible to actor, newest first.
func (s *ReportService) List(ctx context.Context, actor Actor) ([]ReportView, error) {
	var reports []models.Report
	query := scopeReports(s.DB.WithContext(ctx).Model(&models.Report{}), actor)
	if err := query.Order("reports.created_at DESC").Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	return s.views(ctx, reports)
}

func (s *ReportService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*ReportView, error) {
	var report models.Report
	if err := s.DB.WithContext(ctx).First(&report, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("report not found")
		}
		return nil, fmt.Errorf("loading report: %w", err)
	}
	if !canViewReport(actor, &report) {
		return nil, forbiddenError("you do not have access to this report")
	}

	views, err := s.views(ctx, []models.Report{report})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *ReportService) views(ctx context.Context, reports []models.Report) ([]ReportView, error) {
	views := make([]ReportView, len(reports))
	if len(reports) == 0 {
		return views, nil
	}

	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, r := range reports {
		if !seen[r.ReporterID] {
			seen[r.ReporterID] = true
			ids = append(ids, r.ReporterID)
		}
		if r.AssignedVolunteerID != nil && !seen[*r.AssignedVolunteerID] {
			seen[*r.AssignedVolunteerID] = true
			ids = append(ids, *r.AssignedVolunteerID)
		}
	}

	var users []models.User
	if err := s.DB.WithContext(ctx).
		Select("id", "name", "email", "phone").
		Where("id IN ?", ids).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("loading report contacts: %w", err)
	}
	cards := make(map[uuid.UUID]*ContactCard, len(users))
	for _, u := range users {
		cards[u.ID] = &ContactCard{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
	}

	for i, r := range reports {
		views[i] = ReportView{Report: r, Reporter: cards[r.ReporterID]}
		if r.AssignedVolunteerID != nil {
			views[i].AssignedVolunteer = cards[*r.AssignedVolunteerID]
		}
	}
	return views, nil
}
