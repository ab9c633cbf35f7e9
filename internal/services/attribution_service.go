package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"geumjjoki/internal/clock"
	apperrors "geumjjoki/internal/errors"
	"geumjjoki/internal/logger"
	"geumjjoki/internal/models"
	"geumjjoki/internal/telemetry"
)

// attributionService keeps expense links and user challenge totals consistent.
type attributionService struct {
	db    *gorm.DB
	clock clock.Clock
	locks *UserLocks
}

// NewAttributionService creates a new AttributionServicer.
func NewAttributionService(db *gorm.DB, clk clock.Clock, locks *UserLocks) AttributionServicer {
	return &attributionService{db: db, clock: clk, locks: locks}
}

// AttributeExpense relinks expense and recomputes every affected total. It must
// run inside the transaction that wrote the expense.
func (s *attributionService) AttributeExpense(ctx context.Context, tx *gorm.DB, expense *models.Expense, previousLink *string) error {
	ctx, span := telemetry.Tracer().Start(ctx, "attribution.expense", trace.WithAttributes(
		attribute.String("expense.id", expense.ID),
		attribute.String("user.id", expense.UserID),
	))
	defer span.End()

	tx = tx.WithContext(ctx)

	var target *string
	if !expense.DeletedAt.Valid {
		tree, err := loadCategoryTree(tx)
		if err != nil {
			return recordSpanError(span, err)
		}
		active, err := activeUserChallenges(tx, expense.UserID)
		if err != nil {
			return recordSpanError(span, err)
		}
		if uc := pickUserChallenge(active, tree, expense, s.clock.Location()); uc != nil {
			target = &uc.ID
		}
	}

	if !sameLink(expense.UserChallengeID, target) {
		if err := tx.Unscoped().Model(&models.Expense{}).
			Where("id = ?", expense.ID).
			Update("user_challenge_id", target).Error; err != nil {
			return recordSpanError(span, apperrors.Wrap(apperrors.ErrInternalServer, err))
		}
		expense.UserChallengeID = target
	}

	for _, id := range distinctLinks(previousLink, target) {
		if _, err := s.Recompute(ctx, tx, id); err != nil {
			return recordSpanError(span, err)
		}
	}
	return nil
}

// Recompute sets total_expense to the sum of the linked, live expenses inside
// the attempt's window. Settled attempts are returned unchanged.
func (s *attributionService) Recompute(ctx context.Context, tx *gorm.DB, userChallengeID string) (*models.UserChallenge, error) {
	tx = tx.WithContext(ctx)

	var uc models.UserChallenge
	if err := tx.Where("id = ?", userChallengeID).First(&uc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserChallengeNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !uc.IsActive() {
		return &uc, nil
	}

	loc := s.clock.Location()
	var total int64
	if err := tx.Model(&models.Expense{}).
		Where("user_challenge_id = ? AND date >= ? AND date <= ?", uc.ID, uc.WindowStart(loc), uc.WindowEnd(loc)).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	progress := models.ProgressPercent(uc.PreviousExpense, total)
	if total == uc.TotalExpense && progress == uc.ProgressPercent {
		return &uc, nil
	}
	if err := tx.Model(&uc).Updates(map[string]interface{}{
		"total_expense":    total,
		"progress_percent": progress,
	}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	uc.TotalExpense = total
	uc.ProgressPercent = progress
	return &uc, nil
}

// AttachUserChallenge runs attribution for the owner's expenses dated inside
// uc's window that are unlinked or linked to another running attempt.
func (s *attributionService) AttachUserChallenge(ctx context.Context, tx *gorm.DB, uc *models.UserChallenge) error {
	tx = tx.WithContext(ctx)
	loc := s.clock.Location()

	active, err := activeUserChallenges(tx, uc.UserID)
	if err != nil {
		return err
	}
	activeIDs := make([]string, 0, len(active))
	for _, a := range active {
		activeIDs = append(activeIDs, a.ID)
	}

	var expenses []models.Expense
	if err := tx.Where("user_id = ? AND category_id IS NOT NULL AND date >= ? AND date <= ?",
		uc.UserID, uc.WindowStart(loc), uc.WindowEnd(loc)).
		Where("(user_challenge_id IS NULL OR user_challenge_id IN ?)", activeIDs).
		Find(&expenses).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for i := range expenses {
		e := &expenses[i]
		if err := s.AttributeExpense(ctx, tx, e, e.UserChallengeID); err != nil {
			return err
		}
	}
	return nil
}

// Reattribute relinks every unlocked expense of userID against their active
// attempts and recomputes all of them. Running it twice yields the same state.
func (s *attributionService) Reattribute(ctx context.Context, userID string) (*ReattributeResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "attribution.reattribute", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	unlock := s.locks.Lock(userID)
	defer unlock()

	result := &ReattributeResult{UserID: userID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockProfile(tx, userID); err != nil {
			return err
		}
		tree, err := loadCategoryTree(tx)
		if err != nil {
			return err
		}
		active, err := activeUserChallenges(tx, userID)
		if err != nil {
			return err
		}
		activeIDs := make([]string, 0, len(active))
		for _, uc := range active {
			activeIDs = append(activeIDs, uc.ID)
		}

		// Expenses linked to settled attempts are frozen.
		q := tx.Where("user_id = ?", userID)
		if len(activeIDs) > 0 {
			q = q.Where("(user_challenge_id IS NULL OR user_challenge_id IN ?)", activeIDs)
		} else {
			q = q.Where("user_challenge_id IS NULL")
		}
		var expenses []models.Expense
		if err := q.Find(&expenses).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		result.ExpensesScanned = len(expenses)

		loc := s.clock.Location()
		for i := range expenses {
			e := &expenses[i]
			var target *string
			if uc := pickUserChallenge(active, tree, e, loc); uc != nil {
				target = &uc.ID
			}
			if sameLink(e.UserChallengeID, target) {
				continue
			}
			if err := tx.Model(&models.Expense{}).Where("id = ?", e.ID).
				Update("user_challenge_id", target).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			result.LinksChanged++
		}

		for _, id := range activeIDs {
			if _, err := s.Recompute(ctx, tx, id); err != nil {
				return err
			}
			result.Recomputed++
		}
		return nil
	})
	if err != nil {
		return nil, recordSpanError(span, err)
	}

	if result.LinksChanged > 0 {
		logger.Named("attribution").Infow("reattributed user ledger",
			"user_id", userID,
			"expenses", result.ExpensesScanned,
			"links_changed", result.LinksChanged,
		)
	}
	return result, nil
}

// activeUserChallenges returns userID's running attempts, earliest first.
func activeUserChallenges(tx *gorm.DB, userID string) ([]models.UserChallenge, error) {
	var active []models.UserChallenge
	if err := tx.Where("user_id = ? AND status = ?", userID, models.UserChallengeStatusActive).
		Order("instance_start_date").
		Find(&active).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return active, nil
}

// pickUserChallenge chooses the attempt an expense belongs to: same owner,
// window covering the expense date, and a challenge category under the same
// root as the expense's category. The closest category wins: an exact match
// first, then the nearest ancestor, then any other category of the root.
// Ties go to the earliest attempt.
func pickUserChallenge(active []models.UserChallenge, tree *models.CategoryTree, expense *models.Expense, loc *time.Location) *models.UserChallenge {
	if expense.CategoryID == nil || len(active) == 0 {
		return nil
	}
	lineage, err := tree.Lineage(*expense.CategoryID)
	if err != nil {
		if errors.Is(err, models.ErrCategoryCycle) {
			logger.Named("attribution").Warnw("category tree contains a cycle", "category_id", *expense.CategoryID)
		}
		return nil
	}
	rootID := lineage[len(lineage)-1]
	distance := make(map[string]int, len(lineage))
	for i, id := range lineage {
		distance[id] = i
	}

	day := clock.DateOf(expense.Date, time.UTC)
	type candidate struct {
		uc   *models.UserChallenge
		rank int
	}
	var matches []candidate
	for i := range active {
		uc := &active[i]
		if uc.UserID != expense.UserID || uc.CategoryID == nil || !uc.Covers(day, loc) {
			continue
		}
		if d, ok := distance[*uc.CategoryID]; ok {
			matches = append(matches, candidate{uc: uc, rank: d})
			continue
		}
		if root, err := tree.Root(*uc.CategoryID); err == nil && root.ID == rootID {
			matches = append(matches, candidate{uc: uc, rank: len(lineage)})
		}
	}
	if len(matches) == 0 {
		return nil
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].rank != matches[j].rank {
			return matches[i].rank < matches[j].rank
		}
		return matches[i].uc.InstanceStartDate.Before(matches[j].uc.InstanceStartDate)
	})
	return matches[0].uc
}

func sameLink(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func distinctLinks(links ...*string) []string {
	seen := make(map[string]struct{}, len(links))
	var out []string
	for _, l := range links {
		if l == nil {
			continue
		}
		if _, dup := seen[*l]; dup {
			continue
		}
		seen[*l] = struct{}{}
		out = append(out, *l)
	}
	return out
}

// recordSpanError marks span failed and returns err unchanged.
func recordSpanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
