package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"geumjjoki/internal/pagination"
	"geumjjoki/internal/testutil"
)

func TestExpenseService(t *testing.T) {
	ctx := context.Background()

	t.Run("create", func(t *testing.T) {
		env := newTestEnv(t, joinDay)
		user := testutil.CreateTestUser(t, env.db)
		food := testutil.CreateTestCategory(t, env.db, "식품", nil)

		e, err := env.expenses.CreateExpense(ctx, user.ID, ExpenseInput{
			CategoryID:  &food.ID,
			Amount:      12000,
			Description: "점심",
			Date:        time.Date(2026, 3, 8, 13, 30, 0, 0, time.UTC),
		})
		testutil.AssertNoError(t, err)
		require.NotEmpty(t, e.ID)
		require.True(t, e.Date.Equal(day(2026, 3, 8)))
		require.Nil(t, e.UserChallengeID)

		today, err := env.expenses.CreateExpense(ctx, user.ID, ExpenseInput{Amount: 0})
		testutil.AssertNoError(t, err)
		require.True(t, today.Date.Equal(day(2026, 3, 10)))
		require.Nil(t, today.CategoryID)
	})

	t.Run("create_validation", func(t *testing.T) {
		env := newTestEnv(t, joinDay)
		user := testutil.CreateTestUser(t, env.db)

		_, err := env.expenses.CreateExpense(ctx, user.ID, ExpenseInput{Amount: -1})
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		_, err = env.expenses.CreateExpense(ctx, user.ID, ExpenseInput{
			CategoryID: testutil.StrPtr("00000000-0000-0000-0000-000000000000"),
			Amount:     100,
		})
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})

	t.Run("get_is_scoped_to_owner", func(t *testing.T) {
		env := newTestEnv(t, joinDay)
		owner := testutil.CreateTestUser(t, env.db)
		other := testutil.CreateTestUser(t, env.db)
		e := testutil.CreateTestExpense(t, env.db, owner.ID, nil, 500, day(2026, 3, 1))

		got, err := env.expenses.GetExpenseByID(ctx, owner.ID, e.ID)
		testutil.AssertNoError(t, err)
		require.Equal(t, int64(500), got.Amount)

		_, err = env.expenses.GetExpenseByID(ctx, other.ID, e.ID)
		testutil.AssertAppError(t, err, "EXPENSE_NOT_FOUND")

		desc := "x"
		_, err = env.expenses.UpdateExpense(ctx, other.ID, e.ID, ExpenseUpdate{Description: &desc})
		testutil.AssertAppError(t, err, "EXPENSE_NOT_FOUND")

		testutil.AssertAppError(t, env.expenses.DeleteExpense(ctx, other.ID, e.ID), "EXPENSE_NOT_FOUND")
	})

	t.Run("update_validation", func(t *testing.T) {
		env := newTestEnv(t, joinDay)
		user := testutil.CreateTestUser(t, env.db)
		e := testutil.CreateTestExpense(t, env.db, user.ID, nil, 500, day(2026, 3, 1))

		negative := int64(-5)
		_, err := env.expenses.UpdateExpense(ctx, user.ID, e.ID, ExpenseUpdate{Amount: &negative})
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		_, err = env.expenses.UpdateExpense(ctx, user.ID, e.ID, ExpenseUpdate{
			CategoryID: testutil.StrPtr("00000000-0000-0000-0000-000000000000"),
		})
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")

		desc := "택시"
		got, err := env.expenses.UpdateExpense(ctx, user.ID, e.ID, ExpenseUpdate{Description: &desc})
		testutil.AssertNoError(t, err)
		require.Equal(t, "택시", got.Description)
		require.Equal(t, int64(500), got.Amount)
	})

	t.Run("list_filters", func(t *testing.T) {
		env := newTestEnv(t, joinDay)
		user := testutil.CreateTestUser(t, env.db)
		food := testutil.CreateTestCategory(t, env.db, "식품", nil)
		cafe := testutil.CreateTestCategory(t, env.db, "카페", &food.ID)
		transit := testutil.CreateTestCategory(t, env.db, "교통", nil)

		testutil.CreateTestExpense(t, env.db, user.ID, &food.ID, 30000, day(2026, 3, 1))
		testutil.CreateTestExpense(t, env.db, user.ID, &cafe.ID, 4500, day(2026, 3, 5))
		testutil.CreateTestExpense(t, env.db, user.ID, &transit.ID, 1500, day(2026, 3, 5))
		testutil.CreateTestExpense(t, env.db, user.ID, nil, 9000, day(2026, 3, 9))
		testutil.CreateTestExpense(t, env.db, testutil.CreateTestUser(t, env.db).ID, &food.ID, 1, day(2026, 3, 5))

		from, to := day(2026, 3, 2), day(2026, 3, 5)
		minAmount, maxAmount := int64(2000), int64(10000)

		tests := []struct {
			name   string
			filter ExpenseFilter
			want   []int64
		}{
			{"all", ExpenseFilter{}, []int64{9000, 4500, 1500, 30000}},
			{"date_range", ExpenseFilter{FromDate: &from, ToDate: &to}, []int64{4500, 1500}},
			{"category_subtree", ExpenseFilter{CategoryID: &food.ID}, []int64{4500, 30000}},
			{"leaf_category", ExpenseFilter{CategoryID: &cafe.ID}, []int64{4500}},
			{"amount_range", ExpenseFilter{MinAmount: &minAmount, MaxAmount: &maxAmount}, []int64{9000, 4500}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				page, err := env.expenses.GetUserExpenses(ctx, user.ID, pagination.PageRequest{}, tt.filter)
				testutil.AssertNoError(t, err)
				require.Equal(t, int64(len(tt.want)), page.TotalItems)
				var got []int64
				for _, e := range page.Data {
					got = append(got, e.Amount)
				}
				require.ElementsMatch(t, tt.want, got)
			})
		}

		_, err := env.expenses.GetUserExpenses(ctx, user.ID, pagination.PageRequest{}, ExpenseFilter{
			CategoryID: testutil.StrPtr("00000000-0000-0000-0000-000000000000"),
		})
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")

		page, err := env.expenses.GetUserExpenses(ctx, user.ID, pagination.PageRequest{Page: 2, PageSize: 3}, ExpenseFilter{})
		testutil.AssertNoError(t, err)
		require.Len(t, page.Data, 1)
		require.Equal(t, 2, page.TotalPages)
		require.Equal(t, int64(30000), page.Data[0].Amount)
	})

	t.Run("list_by_user_challenge", func(t *testing.T) {
		env := newTestEnv(t, joinDay)
		f := newFoodFixture(t, env)
		linked := f.spend(t, env, &f.cafe.ID, 3000, day(2026, 3, 12))
		f.spend(t, env, &f.transit.ID, 700, day(2026, 3, 12))

		page, err := env.expenses.GetUserExpenses(ctx, f.user.ID, pagination.PageRequest{}, ExpenseFilter{UserChallengeID: &f.uc.ID})
		testutil.AssertNoError(t, err)
		require.Len(t, page.Data, 1)
		require.Equal(t, linked.ID, page.Data[0].ID)
	})

	t.Run("monthly_summary", func(t *testing.T) {
		env := newTestEnv(t, joinDay)
		user := testutil.CreateTestUser(t, env.db)
		food := testutil.CreateTestCategory(t, env.db, "식품", nil)
		cafe := testutil.CreateTestCategory(t, env.db, "카페", &food.ID)
		transit := testutil.CreateTestCategory(t, env.db, "교통", nil)

		testutil.CreateTestExpense(t, env.db, user.ID, &food.ID, 30000, day(2026, 3, 1))
		testutil.CreateTestExpense(t, env.db, user.ID, &cafe.ID, 5000, day(2026, 3, 31))
		testutil.CreateTestExpense(t, env.db, user.ID, &transit.ID, 10000, day(2026, 3, 15))
		testutil.CreateTestExpense(t, env.db, user.ID, nil, 2000, day(2026, 3, 20))
		testutil.CreateTestExpense(t, env.db, user.ID, &food.ID, 1000, day(2026, 2, 28))
		testutil.CreateTestExpense(t, env.db, user.ID, &food.ID, 7777, day(2026, 4, 1))
		gone := testutil.CreateTestExpense(t, env.db, user.ID, &transit.ID, 99999, day(2026, 3, 16))
		require.NoError(t, env.expenses.DeleteExpense(ctx, user.ID, gone.ID))

		summary, err := env.expenses.GetMonthlySummary(ctx, user.ID, 2026, time.March)
		testutil.AssertNoError(t, err)

		cur := summary.Current
		require.Equal(t, 2026, cur.Year)
		require.Equal(t, 3, cur.Month)
		require.Equal(t, int64(47000), cur.Total)
		require.Len(t, cur.Categories, 3)
		require.Equal(t, "식품", cur.Categories[0].CategoryName)
		require.Equal(t, int64(35000), cur.Categories[0].Amount)
		require.Equal(t, int64(2), cur.Categories[0].Count)
		require.Equal(t, "교통", cur.Categories[1].CategoryName)
		require.Equal(t, UnclassifiedBucket, cur.Categories[2].CategoryName)
		require.Nil(t, cur.Categories[2].CategoryID)

		prev := summary.Previous
		require.Equal(t, 2, prev.Month)
		require.Equal(t, int64(1000), prev.Total)
		require.Len(t, prev.Categories, 1)
		require.Equal(t, food.ID, *prev.Categories[0].CategoryID)
	})

	t.Run("summary_of_january_compares_december", func(t *testing.T) {
		env := newTestEnv(t, joinDay)
		user := testutil.CreateTestUser(t, env.db)
		testutil.CreateTestExpense(t, env.db, user.ID, nil, 800, day(2025, 12, 31))

		summary, err := env.expenses.GetMonthlySummary(ctx, user.ID, 2026, time.January)
		testutil.AssertNoError(t, err)
		require.Equal(t, int64(0), summary.Current.Total)
		require.Empty(t, summary.Current.Categories)
		require.Equal(t, 2025, summary.Previous.Year)
		require.Equal(t, 12, summary.Previous.Month)
		require.Equal(t, int64(800), summary.Previous.Total)

		_, err = env.expenses.GetMonthlySummary(ctx, user.ID, 2026, time.Month(13))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("writes_take_the_profile_lock", func(t *testing.T) {
		env := newTestEnv(t, joinDay)
		user := testutil.CreateTestUser(t, env.db)
		require.Empty(t, env.profileOf(t, user.ID).UserID)

		e, err := env.expenses.CreateExpense(ctx, user.ID, ExpenseInput{Amount: 1000})
		testutil.AssertNoError(t, err)
		require.Equal(t, user.ID, env.profileOf(t, user.ID).UserID)

		desc := "택시"
		_, err = env.expenses.UpdateExpense(ctx, user.ID, e.ID, ExpenseUpdate{Description: &desc})
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, env.expenses.DeleteExpense(ctx, user.ID, e.ID))

		_, err = env.expenses.CreateExpense(ctx, "00000000-0000-0000-0000-000000000000", ExpenseInput{Amount: 1000})
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})

	t.Run("separate_processes_keep_totals_consistent", func(t *testing.T) {
		env := newTestEnv(t, joinDay)
		user := testutil.CreateTestUser(t, env.db)
		food := testutil.CreateTestCategory(t, env.db, "식품", nil)
		challenge := testutil.CreateTestChallenge(t, env.db, &food.ID, testutil.WithGoal(0, 14))

		// A second replica shares the database but not the in-process locks.
		otherLocks := NewUserLocks()
		otherAttribution := NewAttributionService(env.db, env.clock, otherLocks)
		otherExpenses := NewExpenseService(env.db, env.clock, otherAttribution, otherLocks)

		var wg sync.WaitGroup
		errs := make(chan error, 11)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.challenges.JoinChallenge(ctx, user.ID, challenge.ID)
			errs <- err
		}()
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := otherExpenses.CreateExpense(ctx, user.ID, ExpenseInput{CategoryID: &food.ID, Amount: 1000, Date: day(2026, 3, 12)})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			testutil.AssertNoError(t, err)
		}

		ucs, err := env.userChallenges.GetUserChallenges(ctx, user.ID, nil, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		require.Len(t, ucs.Data, 1)
		got := env.reload(t, ucs.Data[0].ID)
		require.Equal(t, int64(10000), got.TotalExpense)
		require.Equal(t, env.linkedSum(t, got.ID), got.TotalExpense)
	})
}
