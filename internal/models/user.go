package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/geo"
)

type UserRole string

const (
	UserRoleUser      UserRole = "user"
	UserRoleVolunteer UserRole = "volunteer"
	UserRoleAdmin     UserRole = "admin"
)

// Valid reports whether r is one of the three known roles.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleUser, UserRoleVolunteer, UserRoleAdmin:
		return true
	default:
		return false
	}
}

type User struct {
	BaseModel
	Name             string            `json:"name" gorm:"type:varchar(120);not null"`
	Email            string            `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Phone            string            `json:"phone" gorm:"type:varchar(40);not null"`
	PasswordHash     string            `json:"-" gorm:"type:text;not null"`
	Role             UserRole          `json:"role" gorm:"type:varchar(20);not null;default:'user';index"`
	ProfileImageURL  *string           `json:"profileImageURL,omitempty" gorm:"type:text"`
	Location         geo.Point         `json:"location" gorm:"embedded;embeddedPrefix:location_"`
	VolunteerProfile *VolunteerProfile `json:"volunteerProfile" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (User) TableName() string {
	return "users"
}

// IsVolunteer is true only for a volunteer carrying a loaded profile.
func (u *User) IsVolunteer() bool {
	return u != nil && u.Role == UserRoleVolunteer && u.VolunteerProfile != nil
}

// VolunteerProfile exists exactly when the owning user has the volunteer role.
type VolunteerProfile struct {
	BaseModel
	UserID             uuid.UUID `json:"-" gorm:"type:uuid;uniqueIndex;not null"`
	Skills             []string  `json:"skills" gorm:"type:jsonb;serializer:json"`
	Availability       bool      `json:"availability" gorm:"not null;default:false;index"`
	RadiusKm           float64   `json:"radiusKm" gorm:"type:double precision;not null;default:5"`
	Verified           bool      `json:"verified" gorm:"not null;default:false"`
	IDProofType        string    `json:"idProofType" gorm:"type:varchar(50)"`
	IDProofURL         string    `json:"idProofURL" gorm:"type:text"`
	IDProofVerified    bool      `json:"idProofVerified" gorm:"not null;default:false"`
	TotalCasesResolved int       `json:"totalCasesResolved" gorm:"not null;default:0"`
	AverageRating      float64   `json:"averageRating" gorm:"type:double precision;not null;default:0"`
	Badges             []string  `json:"badges" gorm:"type:jsonb;serializer:json"`
	JoinedAt           time.Time `json:"joinedAt"`
}

func (VolunteerProfile) TableName() string {
	return "volunteer_profiles"
}
