// Package maintenance runs the batch jobs an external scheduler triggers:
// settling closed attempts and rebuilding expense links.
package maintenance

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"geumjjoki/internal/models"
	"geumjjoki/internal/services"
)

// UserSource lists the users a reattribution pass must visit.
type UserSource interface {
	ActiveUserIDs(ctx context.Context) ([]string, error)
}

// Settler settles every attempt whose window has closed.
type Settler interface {
	SettleDue(ctx context.Context) (*services.SettleDueResult, error)
}

// Reattributor rebuilds one user's expense links.
type Reattributor interface {
	Reattribute(ctx context.Context, userID string) (*services.ReattributeResult, error)
}

// UserError records a user the pass could not reattribute.
type UserError struct {
	UserID string
	Err    error
}

// ReattributeRun contains the outcome of a reattribution pass.
type ReattributeRun struct {
	Users           int
	ExpensesScanned int
	LinksChanged    int
	Recomputed      int
	Errors          []UserError
	Duration        time.Duration
}

// Runner executes maintenance passes.
type Runner struct {
	users       UserSource
	settler     Settler
	attribution Reattributor
	concurrency int
	log         *zap.SugaredLogger
}

// NewRunner creates a Runner. Concurrency below 1 is treated as 1.
func NewRunner(users UserSource, settler Settler, attribution Reattributor, concurrency int, log *zap.SugaredLogger) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{users: users, settler: settler, attribution: attribution, concurrency: concurrency, log: log}
}

// Settle runs one settlement sweep.
func (r *Runner) Settle(ctx context.Context) (*services.SettleDueResult, error) {
	start := time.Now()
	result, err := r.settler.SettleDue(ctx)
	if err != nil {
		return nil, err
	}
	r.log.Infow("settlement sweep completed",
		"checked", result.Checked,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"errors", result.Errors,
		"duration", time.Since(start).String(),
	)
	return result, nil
}

// Reattribute rebuilds links for every user with an active attempt. A user
// that fails is recorded and the pass carries on with the rest.
func (r *Runner) Reattribute(ctx context.Context) (*ReattributeRun, error) {
	start := time.Now()
	userIDs, err := r.users.ActiveUserIDs(ctx)
	if err != nil {
		return nil, err
	}

	run := &ReattributeRun{Users: len(userIDs)}
	if len(userIDs) == 0 {
		r.log.Info("no users with active challenges, nothing to do")
		run.Duration = time.Since(start)
		return run, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			res, err := r.attribution.Reattribute(gctx, userID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				run.Errors = append(run.Errors, UserError{UserID: userID, Err: err})
				return nil
			}
			run.ExpensesScanned += res.ExpensesScanned
			run.LinksChanged += res.LinksChanged
			run.Recomputed += res.Recomputed
			return nil
		})
	}
	_ = g.Wait()

	run.Duration = time.Since(start)
	r.log.Infow("reattribution completed",
		"users", run.Users,
		"links_changed", run.LinksChanged,
		"recomputed", run.Recomputed,
		"errors", len(run.Errors),
		"duration", run.Duration.String(),
	)
	for _, e := range run.Errors {
		r.log.Warnw("reattribution failed", "user_id", e.UserID, "error", e.Err.Error())
	}
	return run, nil
}

type dbUserSource struct {
	db *gorm.DB
}

// NewUserSource lists users from the user_challenges table.
func NewUserSource(db *gorm.DB) UserSource {
	return &dbUserSource{db: db}
}

func (s *dbUserSource) ActiveUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.UserChallenge{}).
		Where("status = ?", models.UserChallengeStatusActive).
		Distinct().Order("user_id").Pluck("user_id", &ids).Error
	return ids, err
}
