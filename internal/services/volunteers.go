package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/geo"
	"github.com/resqnet/backend/internal/geoindex"
	"github.com/resqnet/backend/internal/models"
	"github.com/resqnet/backend/pkg/logger"
	"github.com/resqnet/backend/pkg/utils"
	"gorm.io/gorm"
)

type RegisterVolunteerInput struct {
	Skills       []string `json:"skills"`
	Availability *bool    `json:"availability"`
	RadiusKm     float64  `json:"radiusKm"`
	IDProofType  string   `json:"idProofType"`
	IDProofURL   string   `json:"idProofUrl"`
}

// VolunteerPatch lists the only profile fields a volunteer may change.
type VolunteerPatch struct {
	Skills       *[]string `json:"skills"`
	Availability *bool     `json:"availability"`
	RadiusKm     *float64  `json:"radiusKm"`
}

type VolunteerService struct {
	DB    *gorm.DB
	Index geoindex.Index
}

func NewVolunteerService(db *gorm.DB, index geoindex.Index) *VolunteerService {
	return &VolunteerService{DB: db, Index: index}
}

func normalizeSkills(skills []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		key := strings.ToLower(skill)
		if skill == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, skill)
	}
	return out
}

func validRadius(km float64) bool {
	return !math.IsNaN(km) && !math.IsInf(km, 0) && km > 0
}

// Register promotes a plain user to volunteer. The role change and the new
// profile are written together.
func (s *VolunteerService) Register(ctx context.Context, userID uuid.UUID, input RegisterVolunteerInput) (*models.User, error) {
	skills := normalizeSkills(input.Skills)
	if len(skills) == 0 {
		return nil, validationError("at least one skill is required")
	}
	if !validRadius(input.RadiusKm) {
		return nil, validationError("radiusKm must be a positive number")
	}
	if strings.TrimSpace(input.IDProofType) == "" || strings.TrimSpace(input.IDProofURL) == "" {
		return nil, validationError("idProofType and idProof are required")
	}

	availability := true
	if input.Availability != nil {
		availability = *input.Availability
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("user not found")
			}
			return fmt.Errorf("loading user: %w", err)
		}
		if user.Role != models.UserRoleUser {
			return conflictError("only regular users can register as volunteers")
		}

		result := tx.Model(&models.User{}).
			Where("id = ? AND role = ?", userID, models.UserRoleUser).
			Update("role", models.UserRoleVolunteer)
		if result.Error != nil {
			return fmt.Errorf("promoting user: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return conflictError("user role changed concurrently")
		}

		// Clear any soft-deleted profile left by an earlier demotion so the
		// unique user_id index accepts the new row.
		if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&models.VolunteerProfile{}).Error; err != nil {
			return fmt.Errorf("clearing old volunteer profile: %w", err)
		}

		profile := &models.VolunteerProfile{
			UserID:      userID,
			Skills:      skills,
			RadiusKm:    input.RadiusKm,
			IDProofType: strings.TrimSpace(input.IDProofType),
			IDProofURL:  strings.TrimSpace(input.IDProofURL),
			Badges:      []string{},
			JoinedAt:    time.Now().UTC(),
		}
		if err := tx.Create(profile).Error; err != nil {
			return fmt.Errorf("creating volunteer profile: %w", err)
		}
		// Availability has a column default, so false must be written explicitly.
		if err := tx.Model(profile).Update("availability", availability).Error; err != nil {
			return fmt.Errorf("setting availability: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.reloadAndSync(ctx, userID)
}

func (s *VolunteerService) UpdateProfile(ctx context.Context, userID uuid.UUID, patch VolunteerPatch) (*models.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsVolunteer() {
		return nil, forbiddenError("only volunteers can update a volunteer profile")
	}

	profile := user.VolunteerProfile
	var columns []string
	if patch.Skills != nil {
		skills := normalizeSkills(*patch.Skills)
		if len(skills) == 0 {
			return nil, validationError("at least one skill is required")
		}
		profile.Skills = skills
		columns = append(columns, "skills")
	}
	if patch.Availability != nil {
		profile.Availability = *patch.Availability
		columns = append(columns, "availability")
	}
	if patch.RadiusKm != nil {
		if !validRadius(*patch.RadiusKm) {
			return nil, validationError("radiusKm must be a positive number")
		}
		profile.RadiusKm = *patch.RadiusKm
		columns = append(columns, "radius_km")
	}
	if len(columns) == 0 {
		return user, nil
	}

	// Select forces zero values such as availability=false to be written.
	if err := s.DB.WithContext(ctx).Model(profile).Select(columns).Updates(profile).Error; err != nil {
		return nil, fmt.Errorf("updating volunteer profile: %w", err)
	}
	return s.reloadAndSync(ctx, userID)
}

// UpdateLocation stores a new position for any user.
func (s *VolunteerService) UpdateLocation(ctx context.Context, userID uuid.UUID, point geo.Point) (*models.User, error) {
	if err := point.Validate(); err != nil {
		return nil, validationError("%v", err)
	}

	result := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"location_longitude": point.Longitude,
			"location_latitude":  point.Latitude,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("updating location: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, notFoundError("user not found")
	}
	return s.reloadAndSync(ctx, userID)
}

func (s *VolunteerService) SetVerified(ctx context.Context, volunteerID uuid.UUID, verified bool) (*models.User, error) {
	user, err := s.loadUser(ctx, volunteerID)
	if err != nil {
		return nil, err
	}
	if !user.IsVolunteer() {
		return nil, validationError("user %s is not a volunteer", volunteerID)
	}

	if err := s.DB.WithContext(ctx).Model(user.VolunteerProfile).Updates(map[string]interface{}{
		"verified":          verified,
		"id_proof_verified": verified,
	}).Error; err != nil {
		return nil, fmt.Errorf("updating verification: %w", err)
	}
	return s.loadUser(ctx, volunteerID)
}

func (s *VolunteerService) List(ctx context.Context, page utils.PaginationParams) ([]models.User, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.UserRoleVolunteer)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting volunteers: %w", err)
	}

	var users []models.User
	if err := utils.ApplyPagination(query, page).
		Preload("VolunteerProfile").
		Order("created_at DESC").
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("listing volunteers: %w", err)
	}
	return users, total, nil
}

// ChangeRole switches a user between admin and user. Leaving the volunteer
// role drops the profile in the same transaction.
func (s *VolunteerService) ChangeRole(ctx context.Context, userID uuid.UUID, role models.UserRole) (*models.User, error) {
	if !role.Valid() {
		return nil, validationError("unknown role %q", role)
	}
	if role == models.UserRoleVolunteer {
		return nil, validationError("users become volunteers through volunteer registration")
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("user not found")
			}
			return fmt.Errorf("loading user: %w", err)
		}
		if user.Role == role {
			return nil
		}
		if err := tx.Model(&user).Update("role", role).Error; err != nil {
			return fmt.Errorf("updating role: %w", err)
		}
		if user.Role == models.UserRoleVolunteer {
			if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&models.VolunteerProfile{}).Error; err != nil {
				return fmt.Errorf("removing volunteer profile: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.reloadAndSync(ctx, userID)
}

func (s *VolunteerService) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Preload("VolunteerProfile").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("user not found")
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &user, nil
}

func (s *VolunteerService) reloadAndSync(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	// The row is already committed. A failed sync leaves the index stale
	// until the next successful sync or `resqctl reindex`.
	if s.Index != nil {
		if err := s.Index.Sync(ctx, user); err != nil {
			logger.Error("geo_index_sync_failed", err, map[string]interface{}{
				"user_id": user.ID.String(),
			})
		}
	}
	return user, nil
}

// Reindex pushes every volunteer through Sync. Used after switching geo backends.
func (s *VolunteerService) Reindex(ctx context.Context) (int, error) {
	if s.Index == nil {
		return 0, nil
	}
	var users []models.User
	if err := s.DB.WithContext(ctx).Preload("VolunteerProfile").
		Where("role = ?", models.UserRoleVolunteer).
		Find(&users).Error; err != nil {
		return 0, fmt.Errorf("loading volunteers: %w", err)
	}
	for i := range users {
		if err := s.Index.Sync(ctx, &users[i]); err != nil {
			return i, fmt.Errorf("syncing volunteer %s: %w", users[i].ID, err)
		}
	}
	return len(users), nil
}
