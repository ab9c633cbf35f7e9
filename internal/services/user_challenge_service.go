package services

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"geumjjoki/internal/clock"
	apperrors "geumjjoki/internal/errors"
	"geumjjoki/internal/events"
	"geumjjoki/internal/logger"
	"geumjjoki/internal/models"
	"geumjjoki/internal/pagination"
	"geumjjoki/internal/telemetry"
)

// settleConcurrency bounds parallel settlements in a sweep.
const settleConcurrency = 4

// userChallengeService handles a user's attempts and their settlement.
type userChallengeService struct {
	db        *gorm.DB
	clock     clock.Clock
	profiles  ProfileServicer
	publisher events.Publisher
	locks     *UserLocks
}

// NewUserChallengeService creates a new UserChallengeServicer.
func NewUserChallengeService(db *gorm.DB, clk clock.Clock, profiles ProfileServicer, publisher events.Publisher, locks *UserLocks) UserChallengeServicer {
	return &userChallengeService{
		db:        db,
		clock:     clk,
		profiles:  profiles,
		publisher: publisher,
		locks:     locks,
	}
}

// GetUserChallenges lists the user's attempts, newest first. Attempts whose
// window has closed are settled before the list is read.
func (s *userChallengeService) GetUserChallenges(ctx context.Context, userID string, status *models.UserChallengeStatus, page pagination.PageRequest) (*pagination.PageResponse[models.UserChallenge], error) {
	page.Defaults()

	if err := s.settleUserDue(ctx, userID); err != nil {
		return nil, err
	}

	base := s.db.WithContext(ctx).Model(&models.UserChallenge{}).Where("user_id = ?", userID)
	if status != nil {
		base = base.Where("status = ?", *status)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var ucs []models.UserChallenge
	if err := base.Preload("Challenge").
		Scopes(pagination.Paginate(page)).
		Order("instance_start_date DESC").
		Find(&ucs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now, loc := s.clock.Now(), s.clock.Location()
	for i := range ucs {
		if ucs[i].Challenge != nil {
			ucs[i].Challenge.WithStatus(now, loc)
		}
	}

	result := pagination.NewPageResponse(ucs, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetUserChallengeByID returns one attempt owned by userID, settling it first if due.
func (s *userChallengeService) GetUserChallengeByID(ctx context.Context, userID, userChallengeID string) (*models.UserChallenge, error) {
	uc, err := s.findOwned(ctx, userID, userChallengeID)
	if err != nil {
		return nil, err
	}

	if uc.IsActive() && uc.WindowClosed(clock.Today(s.clock), s.clock.Location()) {
		if _, err := s.Settle(ctx, uc.ID); err != nil {
			return nil, err
		}
		if uc, err = s.findOwned(ctx, userID, userChallengeID); err != nil {
			return nil, err
		}
	}

	if uc.Challenge != nil {
		uc.Challenge.WithStatus(s.clock.Now(), s.clock.Location())
	}
	return uc, nil
}

// GetUserChallengeStatus summarizes an attempt's derived state.
func (s *userChallengeService) GetUserChallengeStatus(ctx context.Context, userID, userChallengeID string) (*UserChallengeStatusView, error) {
	uc, err := s.GetUserChallengeByID(ctx, userID, userChallengeID)
	if err != nil {
		return nil, err
	}

	view := &UserChallengeStatusView{
		ID:              uc.ID,
		Status:          uc.Status,
		TotalExpense:    uc.TotalExpense,
		TargetExpense:   uc.TargetExpense,
		ProgressPercent: uc.ProgressPercent,
	}
	if uc.Challenge != nil {
		view.ChallengeStatus = uc.Challenge.ComputedStatus
	}
	if uc.IsActive() {
		view.DaysRemaining = max(0, clock.DaysBetween(clock.Today(s.clock), uc.WindowEnd(s.clock.Location())))
	}
	return view, nil
}

// Settle moves an active attempt whose window has closed to succeeded or failed
// and credits the reward on success. The conditional status update is the
// exactly-once guard: a second call finds no active row and changes nothing.
func (s *userChallengeService) Settle(ctx context.Context, userChallengeID string) (*SettlementResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "user_challenge.settle", trace.WithAttributes(
		attribute.String("user_challenge.id", userChallengeID),
	))
	defer span.End()

	db := s.db.WithContext(ctx)

	var owner models.UserChallenge
	if err := db.Select("id", "user_id").Where("id = ?", userChallengeID).First(&owner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, recordSpanError(span, apperrors.ErrUserChallengeNotFound)
		}
		return nil, recordSpanError(span, apperrors.Wrap(apperrors.ErrInternalServer, err))
	}

	unlock := s.locks.Lock(owner.UserID)
	defer unlock()

	now, loc := s.clock.Now(), s.clock.Location()
	today := clock.DateOf(now, loc)

	result := &SettlementResult{}
	err := db.Transaction(func(tx *gorm.DB) error {
		var uc models.UserChallenge
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", userChallengeID).
			First(&uc).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		challenge, err := findChallenge(tx.Unscoped(), uc.ChallengeID)
		if err != nil {
			return err
		}
		uc.Challenge = challenge
		result.UserChallenge = &uc

		if !uc.IsActive() || !uc.WindowClosed(today, loc) {
			return nil
		}

		outcome := models.UserChallengeStatusFailed
		if uc.Succeeded() {
			outcome = models.UserChallengeStatusSucceeded
		}

		res := tx.Model(&models.UserChallenge{}).
			Where("id = ? AND status = ?", uc.ID, models.UserChallengeStatusActive).
			Updates(map[string]interface{}{
				"status":     outcome,
				"settled_at": now,
			})
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected != 1 {
			// Settled elsewhere between the read and the update.
			if err := tx.Where("id = ?", uc.ID).First(&uc).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			return nil
		}
		uc.Status = outcome
		uc.SettledAt = &now

		if outcome == models.UserChallengeStatusSucceeded && uc.Challenge != nil && uc.Challenge.PointReward > 0 {
			reward := uc.Challenge.PointReward
			if _, err := s.profiles.ApplyPointChange(ctx, tx, uc.UserID, PointChange{
				Points:        reward,
				Experience:    reward * models.ExperiencePerPoint,
				Reason:        models.PointReasonChallengeSuccess,
				ReferenceType: "user_challenge",
				ReferenceID:   uc.ID,
			}); err != nil {
				return err
			}
		}
		result.Settled = true
		return nil
	})
	if err != nil {
		return nil, recordSpanError(span, err)
	}

	if result.Settled {
		uc := result.UserChallenge
		var points int64
		if uc.Status == models.UserChallengeStatusSucceeded && uc.Challenge != nil {
			points = uc.Challenge.PointReward
		}
		logger.Named("settlement").Infow("user challenge settled",
			"user_challenge_id", uc.ID,
			"user_id", uc.UserID,
			"status", uc.Status,
			"total_expense", uc.TotalExpense,
			"target_expense", uc.TargetExpense,
			"points", points,
		)
		publish(ctx, s.publisher, events.Event{
			Type:            events.TypeUserChallengeSettled,
			UserID:          uc.UserID,
			ChallengeID:     uc.ChallengeID,
			UserChallengeID: uc.ID,
			Status:          string(uc.Status),
			Points:          points,
			OccurredAt:      now,
		})
	}
	return result, nil
}

// SettleDue settles every active attempt whose window has closed. A failing
// attempt is logged and counted; the sweep carries on with the rest.
func (s *userChallengeService) SettleDue(ctx context.Context) (*SettleDueResult, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.UserChallenge{}).
		Where("status = ? AND instance_end_date < ?", models.UserChallengeStatusActive, s.clock.Now()).
		Pluck("id", &ids).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.settleAll(ctx, ids), nil
}

// settleUserDue settles the user's attempts whose window has closed.
func (s *userChallengeService) settleUserDue(ctx context.Context, userID string) error {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.UserChallenge{}).
		Where("user_id = ? AND status = ? AND instance_end_date < ?", userID, models.UserChallengeStatusActive, s.clock.Now()).
		Pluck("id", &ids).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	for _, id := range ids {
		if _, err := s.Settle(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *userChallengeService) settleAll(ctx context.Context, ids []string) *SettleDueResult {
	result := &SettleDueResult{Checked: len(ids)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(settleConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			res, err := s.Settle(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Errors++
				logger.Named("settlement").Errorw("failed to settle user challenge", "user_challenge_id", id, "error", err)
			case !res.Settled:
			case res.UserChallenge.Status == models.UserChallengeStatusSucceeded:
				result.Succeeded++
			default:
				result.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()
	return result
}

// findOwned loads an attempt and rejects readers other than its owner.
func (s *userChallengeService) findOwned(ctx context.Context, userID, userChallengeID string) (*models.UserChallenge, error) {
	var uc models.UserChallenge
	if err := s.db.WithContext(ctx).Preload("Challenge").
		Where("id = ?", userChallengeID).
		First(&uc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserChallengeNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if uc.UserID != userID {
		return nil, apperrors.ErrForbidden
	}
	return &uc, nil
}
