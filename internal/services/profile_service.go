package services

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "geumjjoki/internal/errors"
	"geumjjoki/internal/models"
	"geumjjoki/internal/pagination"
)

// profileService handles points, experience and levels.
type profileService struct {
	db *gorm.DB
}

// NewProfileService creates a new ProfileServicer.
func NewProfileService(db *gorm.DB) ProfileServicer {
	return &profileService{db: db}
}

// GetProfile returns the user's balances, creating an empty profile on first read.
func (s *profileService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile *models.UserProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		profile, err = ensureProfile(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// GetPointHistory lists the user's point ledger, newest first.
func (s *profileService) GetPointHistory(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.PointTransaction], error) {
	page.Defaults()

	base := s.db.WithContext(ctx).Model(&models.PointTransaction{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var entries []models.PointTransaction
	if err := base.Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(entries, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ApplyPointChange credits or debits the profile under its row lock and records
// the change in the point ledger.
func (s *profileService) ApplyPointChange(ctx context.Context, tx *gorm.DB, userID string, change PointChange) (*models.UserProfile, error) {
	tx = tx.WithContext(ctx)

	profile, err := lockProfile(tx, userID)
	if err != nil {
		return nil, err
	}

	experience := profile.Experience + change.Experience
	level := models.LevelForExperience(experience)

	// The balance guard holds even if the row lock is unavailable, as in SQLite.
	res := tx.Model(&models.UserProfile{}).
		Where("id = ? AND point + ? >= 0", profile.ID, change.Points).
		Updates(map[string]interface{}{
			"point":      gorm.Expr("point + ?", change.Points),
			"experience": gorm.Expr("experience + ?", change.Experience),
			"level":      level,
		})
	if res.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.ErrInsufficientPoints
	}

	if err := tx.Where("id = ?", profile.ID).First(profile).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	entry := &models.PointTransaction{
		UserID:           userID,
		Change:           change.Points,
		ExperienceChange: change.Experience,
		BalanceAfter:     profile.Point,
		Reason:           change.Reason,
		ReferenceType:    change.ReferenceType,
		ReferenceID:      change.ReferenceID,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return profile, nil
}

// ensureProfile returns the user's profile, inserting an empty one if missing.
// Concurrent first inserts are absorbed by ON CONFLICT DO NOTHING.
func ensureProfile(tx *gorm.DB, userID string) (*models.UserProfile, error) {
	var user models.User
	if err := tx.Select("id").Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	fresh := &models.UserProfile{UserID: userID, Level: 1}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(fresh).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var profile models.UserProfile
	if err := tx.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &profile, nil
}

// lockProfile returns the user's profile holding its row lock until the
// transaction ends. Joins and credits for one user serialize on it.
func lockProfile(tx *gorm.DB, userID string) (*models.UserProfile, error) {
	if _, err := ensureProfile(tx, userID); err != nil {
		return nil, err
	}

	var profile models.UserProfile
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&profile).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &profile, nil
}
