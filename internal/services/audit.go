package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/models"
	"github.com/resqnet/backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	AuditUserRegister       = "user.register"
	AuditUserLogin          = "user.login"
	AuditUserProfileUpdate  = "user.profile_update"
	AuditUserLocationUpdate = "user.location_update"
	AuditReportCreate       = "report.create"
	AuditReportTransition   = "report.transition"
	AuditVolunteerRegister  = "volunteer.register"
	AuditVolunteerUpdate    = "volunteer.update"
	AuditVolunteerVerify    = "volunteer.verify"
	AuditAdminRoleChange    = "admin.role_change"
)

type AuditEntry struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]interface{}
	IPAddress    string
	RequestID    string
}

// AuditService persists audit rows from a bounded queue drained by a single
// goroutine. A full queue drops entries rather than blocking requests.
type AuditService struct {
	DB    *gorm.DB
	queue chan models.AuditLog

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAuditService(db *gorm.DB, queueSize int) *AuditService {
	if queueSize <= 0 {
		queueSize = 1000
	}
	s := &AuditService{
		DB:    db,
		queue: make(chan models.AuditLog, queueSize),
		done:  make(chan struct{}),
	}
	go s.processQueue()
	return s
}

func (s *AuditService) LogAsync(entry AuditEntry) {
	if s == nil {
		return
	}

	row := models.AuditLog{
		UserID:       entry.UserID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		IPAddress:    entry.IPAddress,
		RequestID:    entry.RequestID,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.queue <- row:
	default:
		logger.Warn("audit_queue_full", map[string]interface{}{
			"action":  entry.Action,
			"dropped": true,
		})
	}
}

func (s *AuditService) processQueue() {
	defer close(s.done)
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("audit_log_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
		}
	}
}

// Close stops accepting entries and waits for queued rows to be written.
func (s *AuditService) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReportHistory returns the audit rows recorded against a report, oldest first.
func (s *AuditService) ReportHistory(ctx context.Context, reportID uuid.UUID) ([]models.AuditLog, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.Report{}).Where("id = ?", reportID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("checking report: %w", err)
	}
	if count == 0 {
		return nil, notFoundError("report not found")
	}

	var logs []models.AuditLog
	if err := s.DB.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", "report", reportID).
		Order("created_at ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("loading report history: %w", err)
	}
	return logs, nil
}
