package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/geo"
)

type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "pending"
	ReportStatusAssigned ReportStatus = "assigned"
	ReportStatusResolved ReportStatus = "resolved"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusPending, ReportStatusAssigned, ReportStatusResolved:
		return true
	default:
		return false
	}
}

// Report is an incident filed by a user. EmergencyType and PriorityLevel are
// deliberately open vocabulary.
type Report struct {
	BaseModel
	ReporterID          uuid.UUID    `json:"reporterId" gorm:"type:uuid;not null;index"`
	Text                string       `json:"text" gorm:"type:text;not null"`
	Location            geo.Point    `json:"location" gorm:"embedded;embeddedPrefix:location_"`
	Address             string       `json:"address" gorm:"type:text"`
	EmergencyType       string       `json:"emergencyType" gorm:"type:varchar(100);not null;index"`
	PriorityLevel       string       `json:"priorityLevel" gorm:"type:varchar(50);not null"`
	RequiredSupplies    []string     `json:"requiredSupplies" gorm:"type:jsonb;serializer:json"`
	Status              ReportStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	AssignedVolunteerID *uuid.UUID   `json:"assignedVolunteerId" gorm:"type:uuid;index"`
	ResolvedAt          *time.Time   `json:"resolvedAt,omitempty"`
}

func (Report) TableName() string {
	return "reports"
}
