package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"geumjjoki/internal/models"
	"geumjjoki/internal/pagination"
	"geumjjoki/internal/testutil"
)

func TestCreateChallenge(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, joinDay)
	food := testutil.CreateTestCategory(t, env.db, "식품", nil)

	valid := ChallengeInput{
		Title:       " 식비 줄이기 ",
		CategoryID:  &food.ID,
		GoalAmount:  50000,
		GoalDays:    7,
		PointReward: 100,
		StartDate:   day(2026, 3, 1),
		EndDate:     day(2026, 3, 31),
	}

	t.Run("success", func(t *testing.T) {
		c, err := env.challenges.CreateChallenge(ctx, valid)
		testutil.AssertNoError(t, err)
		require.Equal(t, "식비 줄이기", c.Title)
		require.True(t, c.IsActive)
		require.Equal(t, models.ChallengeStatusJoinable, c.ComputedStatus)
	})

	tests := []struct {
		name   string
		mutate func(in *ChallengeInput)
		code   string
	}{
		{"empty_title", func(in *ChallengeInput) { in.Title = " " }, "INVALID_INPUT"},
		{"zero_goal_days", func(in *ChallengeInput) { in.GoalDays = 0 }, "INVALID_INPUT"},
		{"negative_goal_amount", func(in *ChallengeInput) { in.GoalAmount = -1 }, "INVALID_INPUT"},
		{"negative_reward", func(in *ChallengeInput) { in.PointReward = -1 }, "INVALID_INPUT"},
		{"end_before_start", func(in *ChallengeInput) { in.EndDate = in.StartDate }, "INVALID_INPUT"},
		{"unknown_category", func(in *ChallengeInput) {
			in.CategoryID = testutil.StrPtr("00000000-0000-0000-0000-000000000000")
		}, "CATEGORY_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := env.challenges.CreateChallenge(ctx, in)
			testutil.AssertAppError(t, err, tt.code)
		})
	}
}

func TestGetChallenges(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, joinDay)
	food := testutil.CreateTestCategory(t, env.db, "식품", nil)

	big := testutil.CreateTestChallenge(t, env.db, &food.ID, testutil.WithGoal(50000, 7))
	small := testutil.CreateTestChallenge(t, env.db, nil,
		testutil.WithGoal(20000, 7), testutil.WithWindow(day(2026, 3, 2), day(2026, 3, 31)))
	ending := testutil.CreateTestChallenge(t, env.db, nil, testutil.WithWindow(day(2026, 3, 1), day(2026, 3, 12)))
	upcoming := testutil.CreateTestChallenge(t, env.db, nil, testutil.WithWindow(day(2026, 4, 1), day(2026, 4, 30)))
	closed := testutil.CreateTestChallenge(t, env.db, nil, testutil.WithWindow(day(2026, 2, 1), day(2026, 2, 28)))

	ids := func(page *pagination.PageResponse[models.Challenge]) []string {
		out := make([]string, 0, len(page.Data))
		for _, c := range page.Data {
			out = append(out, c.ID)
		}
		return out
	}
	status := func(s models.ChallengeStatus) *models.ChallengeStatus { return &s }

	tests := []struct {
		name   string
		filter ChallengeFilter
		want   []string
	}{
		{"default_is_status_rank_then_newest_start", ChallengeFilter{}, []string{small.ID, big.ID, ending.ID, upcoming.ID, closed.ID}},
		{"ascending_start_date_within_rank", ChallengeFilter{Sort: "start_date"}, []string{big.ID, small.ID, ending.ID, upcoming.ID, closed.ID}},
		{"goal_amount_within_rank", ChallengeFilter{Sort: "goal_amount"}, []string{small.ID, big.ID, ending.ID, upcoming.ID, closed.ID}},
		{"descending_start_date_within_rank", ChallengeFilter{Sort: "-start_date"}, []string{small.ID, big.ID, ending.ID, upcoming.ID, closed.ID}},
		{"computed_status_reversed", ChallengeFilter{Sort: "-computed_status"}, []string{closed.ID, upcoming.ID, ending.ID, big.ID, small.ID}},
		{"joinable_only", ChallengeFilter{Status: status(models.ChallengeStatusJoinable)}, []string{big.ID, small.ID}},
		{"closed_only", ChallengeFilter{Status: status(models.ChallengeStatusClosed)}, []string{closed.ID}},
		{"by_category", ChallengeFilter{CategoryID: &food.ID}, []string{big.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := env.challenges.GetChallenges(ctx, pagination.PageRequest{}, tt.filter)
			testutil.AssertNoError(t, err)
			require.Equal(t, tt.want, ids(page))
		})
	}

	t.Run("paginates_after_sorting", func(t *testing.T) {
		page, err := env.challenges.GetChallenges(ctx, pagination.PageRequest{Page: 2, PageSize: 2}, ChallengeFilter{})
		testutil.AssertNoError(t, err)
		require.Equal(t, []string{ending.ID, upcoming.ID}, ids(page))
		require.Equal(t, int64(5), page.TotalItems)
		require.Equal(t, 3, page.TotalPages)
	})

	t.Run("status_follows_the_clock", func(t *testing.T) {
		s, err := env.challenges.GetChallengeStatus(ctx, upcoming.ID)
		testutil.AssertNoError(t, err)
		require.Equal(t, models.ChallengeStatusUpcoming, s)

		env.clock.Set(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
		defer env.clock.Set(joinDay)

		got, err := env.challenges.GetChallengeByID(ctx, upcoming.ID)
		testutil.AssertNoError(t, err)
		require.Equal(t, models.ChallengeStatusJoinable, got.ComputedStatus)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := env.challenges.GetChallengeByID(ctx, "00000000-0000-0000-0000-000000000000")
		testutil.AssertAppError(t, err, "CHALLENGE_NOT_FOUND")
		_, err = env.challenges.GetChallengeStatus(ctx, "00000000-0000-0000-0000-000000000000")
		testutil.AssertAppError(t, err, "CHALLENGE_NOT_FOUND")
	})
}
