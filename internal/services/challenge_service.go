package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"geumjjoki/internal/clock"
	apperrors "geumjjoki/internal/errors"
	"geumjjoki/internal/events"
	"geumjjoki/internal/logger"
	"geumjjoki/internal/models"
	"geumjjoki/internal/pagination"
)

// challengeService handles the challenge catalog and joins.
type challengeService struct {
	db          *gorm.DB
	clock       clock.Clock
	attribution AttributionServicer
	publisher   events.Publisher
	locks       *UserLocks
}

// NewChallengeService creates a new ChallengeServicer.
func NewChallengeService(db *gorm.DB, clk clock.Clock, attribution AttributionServicer, publisher events.Publisher, locks *UserLocks) ChallengeServicer {
	return &challengeService{
		db:          db,
		clock:       clk,
		attribution: attribution,
		publisher:   publisher,
		locks:       locks,
	}
}

// CreateChallenge adds a challenge to the catalog.
func (s *challengeService) CreateChallenge(ctx context.Context, input ChallengeInput) (*models.Challenge, error) {
	title := strings.TrimSpace(input.Title)
	switch {
	case title == "":
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "title is required")
	case input.GoalDays <= 0:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "goal_days must be greater than zero")
	case input.GoalAmount < 0:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "goal_amount must not be negative")
	case input.PointReward < 0:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "point_reward must not be negative")
	case !input.EndDate.After(input.StartDate):
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end_date must be after start_date")
	}

	db := s.db.WithContext(ctx)
	if input.CategoryID != nil {
		if _, err := findCategory(db, *input.CategoryID); err != nil {
			return nil, err
		}
	}

	challenge := &models.Challenge{
		Title:       title,
		Content:     input.Content,
		CategoryID:  input.CategoryID,
		GoalAmount:  input.GoalAmount,
		GoalDays:    input.GoalDays,
		PointReward: input.PointReward,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		IsActive:    true,
	}
	if err := db.Create(challenge).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return challenge.WithStatus(s.clock.Now(), s.clock.Location()), nil
}

// GetChallenges lists challenges ordered by computed status (joinable first),
// then by the requested sort field. Status is derived per call, so filtering
// and ordering by it happen in memory.
func (s *challengeService) GetChallenges(ctx context.Context, page pagination.PageRequest, filter ChallengeFilter) (*pagination.PageResponse[models.Challenge], error) {
	page.Defaults()

	q := s.db.WithContext(ctx).Model(&models.Challenge{})
	if filter.Title != nil && *filter.Title != "" {
		q = q.Where("title LIKE ?", "%"+*filter.Title+"%")
	}
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.GoalDays != nil {
		q = q.Where("goal_days = ?", *filter.GoalDays)
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}

	var challenges []models.Challenge
	if err := q.Preload("Category").Find(&challenges).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now, loc := s.clock.Now(), s.clock.Location()
	filtered := make([]models.Challenge, 0, len(challenges))
	for i := range challenges {
		c := challenges[i].WithStatus(now, loc)
		if filter.Status != nil && c.ComputedStatus != *filter.Status {
			continue
		}
		filtered = append(filtered, *c)
	}

	sortChallenges(filtered, filter.Sort)
	result := pagination.Slice(filtered, page)
	return &result, nil
}

// sortChallenges orders by status rank, then by field. "-" reverses the field
// order; "-computed_status" reverses the rank order instead. An empty field
// means newest start date first.
func sortChallenges(challenges []models.Challenge, field string) {
	if field == "" {
		field = "-start_date"
	}
	desc := strings.HasPrefix(field, "-")
	field = strings.TrimPrefix(field, "-")

	less := func(a, b *models.Challenge) bool {
		switch field {
		case "end_date":
			return a.EndDate.Before(b.EndDate)
		case "goal_amount":
			return a.GoalAmount < b.GoalAmount
		case "point_reward":
			return a.PointReward < b.PointReward
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return a.StartDate.Before(b.StartDate)
		}
	}

	sort.SliceStable(challenges, func(i, j int) bool {
		a, b := &challenges[i], &challenges[j]
		ra, rb := models.StatusRank(a.ComputedStatus), models.StatusRank(b.ComputedStatus)
		if field == "computed_status" {
			if ra != rb {
				if desc {
					return ra > rb
				}
				return ra < rb
			}
			return a.StartDate.Before(b.StartDate)
		}
		if ra != rb {
			return ra < rb
		}
		if desc {
			return less(b, a)
		}
		return less(a, b)
	})
}

// GetChallengeByID retrieves a challenge with its status resolved at call time.
func (s *challengeService) GetChallengeByID(ctx context.Context, challengeID string) (*models.Challenge, error) {
	challenge, err := findChallenge(s.db.WithContext(ctx).Preload("Category"), challengeID)
	if err != nil {
		return nil, err
	}
	return challenge.WithStatus(s.clock.Now(), s.clock.Location()), nil
}

// GetChallengeStatus resolves a challenge's lifecycle state at call time.
func (s *challengeService) GetChallengeStatus(ctx context.Context, challengeID string) (models.ChallengeStatus, error) {
	challenge, err := findChallenge(s.db.WithContext(ctx), challengeID)
	if err != nil {
		return "", err
	}
	return challenge.StatusAt(s.clock.Now(), s.clock.Location()), nil
}

func findChallenge(db *gorm.DB, challengeID string) (*models.Challenge, error) {
	var challenge models.Challenge
	if err := db.Where("id = ?", challengeID).First(&challenge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrChallengeNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &challenge, nil
}

// publish sends e after commit. Delivery failures are logged, never returned.
func publish(ctx context.Context, p events.Publisher, e events.Event) {
	if p == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	if err := p.Publish(ctx, e); err != nil {
		logger.Named("events").Warnw("failed to publish event", "type", e.Type, "error", err)
	}
}
