package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"geumjjoki/internal/clock"
	apperrors "geumjjoki/internal/errors"
	"geumjjoki/internal/events"
	"geumjjoki/internal/logger"
	"geumjjoki/internal/models"
	"geumjjoki/internal/telemetry"
)

// JoinChallenge starts a new attempt for userID. Checks run in a fixed order
// and the first failure is returned:
//
//  1. the challenge has finished
//  2. the posting window is shorter than goal_days
//  3. 7- and 28-day programs need a category and enough prior spending in it
//  4. the user already runs this challenge
//  5. the user already runs a challenge in this category
//  6. the challenge is not joinable right now
//
// The checks and the insert share one transaction holding the user's profile
// row lock; partial unique indexes reject any duplicate that slips through.
func (s *challengeService) JoinChallenge(ctx context.Context, userID, challengeID string) (*models.UserChallenge, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "challenge.join", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("challenge.id", challengeID),
	))
	defer span.End()

	unlock := s.locks.Lock(userID)
	defer unlock()

	now, loc := s.clock.Now(), s.clock.Location()

	var (
		uc        *models.UserChallenge
		challenge *models.Challenge
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		challenge, err = findChallenge(tx.Where("is_active = ?", true), challengeID)
		if err != nil {
			return err
		}
		if _, err := lockProfile(tx, userID); err != nil {
			return err
		}

		uc, err = validateJoin(tx, userID, challenge, now, loc)
		if err != nil {
			return err
		}

		if err := tx.Create(uc).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errDuplicateAttempt
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := s.attribution.AttachUserChallenge(ctx, tx, uc); err != nil {
			return err
		}
		return tx.Where("id = ?", uc.ID).First(uc).Error
	})
	if errors.Is(err, errDuplicateAttempt) {
		// A concurrent join won the unique index; report which one it hit.
		err = duplicateJoinError(s.db.WithContext(ctx), userID, challenge)
	}
	if err != nil {
		return nil, recordSpanError(span, err)
	}

	logger.Named("challenge").Infow("user joined challenge",
		"user_id", userID,
		"challenge_id", challengeID,
		"user_challenge_id", uc.ID,
		"previous_expense", uc.PreviousExpense,
		"target_expense", uc.TargetExpense,
	)
	publish(ctx, s.publisher, events.Event{
		Type:            events.TypeUserChallengeJoined,
		UserID:          userID,
		ChallengeID:     challengeID,
		UserChallengeID: uc.ID,
		Status:          string(uc.Status),
		OccurredAt:      now,
	})
	return uc, nil
}

var errDuplicateAttempt = errors.New("duplicate active user challenge")

// validateJoin runs the ordered join checks and builds the new attempt.
func validateJoin(tx *gorm.DB, userID string, challenge *models.Challenge, now time.Time, loc *time.Location) (*models.UserChallenge, error) {
	status := challenge.StatusAt(now, loc)

	// 1. finished
	if status == models.ChallengeStatusClosed || challenge.EndDate.Before(now) {
		return nil, apperrors.ErrChallengeFinished
	}

	// 2. structurally impossible
	if challenge.PostingDays(loc) < challenge.GoalDays {
		return nil, apperrors.ErrPeriodTooShort
	}

	// 3. prior spending baseline
	var previous, target int64
	if models.ProgramLengths[challenge.GoalDays] {
		if challenge.CategoryID == nil {
			return nil, apperrors.ErrCategoryRequired
		}
		prior, err := priorSpend(tx, userID, *challenge.CategoryID, challenge.GoalDays, clock.DateOf(now, loc))
		if err != nil {
			return nil, err
		}
		if prior < challenge.GoalAmount {
			return nil, apperrors.WithMessage(apperrors.ErrInsufficientPriorSpend, fmt.Sprintf(
				"at least %d won of spending in the last %d days is required, current spending is %d won",
				challenge.GoalAmount, challenge.GoalDays, prior))
		}
		previous = prior
		target = max(0, prior-challenge.GoalAmount)
	}

	// 4. same challenge, 5. same category
	if err := activeConflict(tx, userID, challenge); err != nil {
		return nil, err
	}

	// 6. joinable now
	if status != models.ChallengeStatusJoinable {
		return nil, apperrors.ErrNotJoinable
	}

	return &models.UserChallenge{
		UserID:            userID,
		ChallengeID:       challenge.ID,
		CategoryID:        challenge.CategoryID,
		TargetExpense:     target,
		PreviousExpense:   previous,
		TotalExpense:      0,
		ProgressPercent:   0,
		Status:            models.UserChallengeStatusActive,
		InstanceStartDate: now,
		InstanceEndDate:   now.AddDate(0, 0, challenge.GoalDays),
	}, nil
}

// activeConflict reports a running attempt that blocks userID from joining
// challenge: the same challenge first, then the same category.
func activeConflict(tx *gorm.DB, userID string, challenge *models.Challenge) error {
	var count int64
	if err := tx.Model(&models.UserChallenge{}).
		Where("user_id = ? AND challenge_id = ? AND status = ?", userID, challenge.ID, models.UserChallengeStatusActive).
		Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrAlreadyActiveChallenge
	}

	if challenge.CategoryID != nil {
		if err := tx.Model(&models.UserChallenge{}).
			Where("user_id = ? AND category_id = ? AND status = ?", userID, *challenge.CategoryID, models.UserChallengeStatusActive).
			Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			return apperrors.ErrAlreadyActiveCategory
		}
	}
	return nil
}

// duplicateJoinError maps a unique index violation on insert to the conflict
// that caused it. It runs after the failed transaction has rolled back.
func duplicateJoinError(db *gorm.DB, userID string, challenge *models.Challenge) error {
	if err := activeConflict(db, userID, challenge); err != nil {
		return err
	}
	return apperrors.ErrAlreadyActiveChallenge
}

// priorSpend sums the user's spending in the root of categoryID and all of its
// descendants over [today-days, today-1]. Today is still accumulating and is excluded.
func priorSpend(tx *gorm.DB, userID, categoryID string, days int, today time.Time) (int64, error) {
	tree, err := loadCategoryTree(tx)
	if err != nil {
		return 0, err
	}
	root, err := rootOf(tree, categoryID)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := tx.Model(&models.Expense{}).
		Where("user_id = ? AND category_id IN ? AND date >= ? AND date <= ?",
			userID, tree.Subtree(root.ID), clock.AddDays(today, -days), clock.AddDays(today, -1)).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return total, nil
}
