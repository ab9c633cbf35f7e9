package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"geumjjoki/internal/clock"
	apperrors "geumjjoki/internal/errors"
	"geumjjoki/internal/events"
	"geumjjoki/internal/models"
	"geumjjoki/internal/pagination"
)

// rewardService handles the reward shop.
type rewardService struct {
	db        *gorm.DB
	clock     clock.Clock
	profiles  ProfileServicer
	publisher events.Publisher
}

// NewRewardService creates a new RewardServicer.
func NewRewardService(db *gorm.DB, clk clock.Clock, profiles ProfileServicer, publisher events.Publisher) RewardServicer {
	return &rewardService{db: db, clock: clk, profiles: profiles, publisher: publisher}
}

// CreateReward adds an item to the shop.
func (s *rewardService) CreateReward(ctx context.Context, input RewardInput) (*models.Reward, error) {
	name := strings.TrimSpace(input.Name)
	switch {
	case name == "":
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
	case input.Cost <= 0:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "cost must be greater than zero")
	case input.ValidDays <= 0:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "valid_days must be greater than zero")
	}

	category := input.Category
	if category == "" {
		category = "etc"
	}
	reward := &models.Reward{
		Name:        name,
		Description: input.Description,
		Cost:        input.Cost,
		ValidDays:   input.ValidDays,
		IsActive:    true,
		Category:    category,
	}
	if err := s.db.WithContext(ctx).Create(reward).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return reward, nil
}

// GetActiveRewards lists rewards available for redemption, cheapest first.
func (s *rewardService) GetActiveRewards(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Reward], error) {
	page.Defaults()

	base := s.db.WithContext(ctx).Model(&models.Reward{}).Where("is_active = ?", true)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rewards []models.Reward
	if err := base.Scopes(pagination.Paginate(page)).Order("cost, name").Find(&rewards).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(rewards, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// RedeemReward debits the reward's cost and issues a redemption valid for the
// reward's valid_days. Debit, redemption and ledger row commit together.
func (s *rewardService) RedeemReward(ctx context.Context, userID, rewardID string) (*models.RewardRedemption, error) {
	now := s.clock.Now()

	var redemption *models.RewardRedemption
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reward models.Reward
		if err := tx.Where("id = ?", rewardID).First(&reward).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrRewardNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if !reward.IsActive {
			return apperrors.ErrRewardInactive
		}

		redemption = &models.RewardRedemption{
			UserID:     userID,
			RewardID:   reward.ID,
			Cost:       reward.Cost,
			Status:     models.RedemptionStatusAvailable,
			RedeemedAt: now,
			ExpireAt:   now.AddDate(0, 0, reward.ValidDays),
		}
		if err := tx.Create(redemption).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if _, err := s.profiles.ApplyPointChange(ctx, tx, userID, PointChange{
			Points:        -reward.Cost,
			Reason:        models.PointReasonRewardRedemption,
			ReferenceType: "reward_redemption",
			ReferenceID:   redemption.ID,
		}); err != nil {
			return err
		}
		redemption.Reward = &reward
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, events.Event{
		Type:       events.TypeRewardRedeemed,
		UserID:     userID,
		RewardID:   rewardID,
		Points:     -redemption.Cost,
		OccurredAt: now,
	})
	return redemption, nil
}

// GetUserRedemptions lists the user's redemptions, newest first. Redemptions
// past their expiry are reported as expired.
func (s *rewardService) GetUserRedemptions(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.RewardRedemption], error) {
	page.Defaults()

	base := s.db.WithContext(ctx).Model(&models.RewardRedemption{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var redemptions []models.RewardRedemption
	if err := base.Preload("Reward").
		Scopes(pagination.Paginate(page)).
		Order("redeemed_at DESC").
		Find(&redemptions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now := s.clock.Now()
	for i := range redemptions {
		redemptions[i].Status = redemptions[i].EffectiveStatus(now)
	}

	result := pagination.NewPageResponse(redemptions, page.Page, page.PageSize, totalItems)
	return &result, nil
}
