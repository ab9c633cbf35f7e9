package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"geumjjoki/internal/events"
	"geumjjoki/internal/models"
	"geumjjoki/internal/pagination"
	"geumjjoki/internal/testutil"
)

func TestRewardService(t *testing.T) {
	ctx := context.Background()

	t.Run("create_validation", func(t *testing.T) {
		env := newTestEnv(t, joinDay)

		reward, err := env.rewards.CreateReward(ctx, RewardInput{Name: "커피 쿠폰", Cost: 300, ValidDays: 30})
		testutil.AssertNoError(t, err)
		require.Equal(t, "etc", reward.Category)
		require.True(t, reward.IsActive)

		for _, in := range []RewardInput{
			{Name: "", Cost: 300, ValidDays: 30},
			{Name: "x", Cost: 0, ValidDays: 30},
			{Name: "x", Cost: 300, ValidDays: 0},
		} {
			_, err := env.rewards.CreateReward(ctx, in)
			testutil.AssertAppError(t, err, "INVALID_INPUT")
		}
	})

	t.Run("lists_active_cheapest_first", func(t *testing.T) {
		env := newTestEnv(t, joinDay)
		pricey := testutil.CreateTestReward(t, env.db, 900, 30)
		cheap := testutil.CreateTestReward(t, env.db, 100, 30)
		retired := testutil.CreateTestReward(t, env.db, 50, 30)
		require.NoError(t, env.db.Model(retired).Update("is_active", false).Error)

		page, err := env.rewards.GetActiveRewards(ctx, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		require.Len(t, page.Data, 2)
		require.Equal(t, cheap.ID, page.Data[0].ID)
		require.Equal(t, pricey.ID, page.Data[1].ID)
	})

	t.Run("redeem_debits_points", func(t *testing.T) {
		env := newTestEnv(t, joinDay)
		user := testutil.CreateTestUser(t, env.db)
		testutil.CreateTestProfile(t, env.db, user.ID, 500)
		reward := testutil.CreateTestReward(t, env.db, 300, 30)

		redemption, err := env.rewards.RedeemReward(ctx, user.ID, reward.ID)
		testutil.AssertNoError(t, err)
		require.Equal(t, models.RedemptionStatusAvailable, redemption.Status)
		require.True(t, redemption.ExpireAt.Equal(joinDay.AddDate(0, 0, 30)))
		require.Equal(t, int64(200), env.profileOf(t, user.ID).Point)

		history, err := env.profiles.GetPointHistory(ctx, user.ID, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		require.Len(t, history.Data, 1)
		require.Equal(t, int64(-300), history.Data[0].Change)
		require.Equal(t, redemption.ID, history.Data[0].ReferenceID)

		redeemed := env.events.OfType(events.TypeRewardRedeemed)
		require.Len(t, redeemed, 1)
		require.Equal(t, int64(-300), redeemed[0].Points)
	})

	t.Run("redeem_rejections", func(t *testing.T) {
		env := newTestEnv(t, joinDay)
		user := testutil.CreateTestUser(t, env.db)
		testutil.CreateTestProfile(t, env.db, user.ID, 100)
		expensive := testutil.CreateTestReward(t, env.db, 300, 30)
		retired := testutil.CreateTestReward(t, env.db, 10, 30)
		require.NoError(t, env.db.Model(retired).Update("is_active", false).Error)

		_, err := env.rewards.RedeemReward(ctx, user.ID, expensive.ID)
		testutil.AssertAppError(t, err, "INSUFFICIENT_POINTS")

		_, err = env.rewards.RedeemReward(ctx, user.ID, retired.ID)
		testutil.AssertAppError(t, err, "REWARD_INACTIVE")

		_, err = env.rewards.RedeemReward(ctx, user.ID, "00000000-0000-0000-0000-000000000000")
		testutil.AssertAppError(t, err, "REWARD_NOT_FOUND")

		require.Equal(t, int64(100), env.profileOf(t, user.ID).Point)
		page, err := env.rewards.GetUserRedemptions(ctx, user.ID, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		require.Empty(t, page.Data)
		require.Empty(t, env.events.Events())
	})

	t.Run("redemptions_expire_on_read", func(t *testing.T) {
		env := newTestEnv(t, joinDay)
		user := testutil.CreateTestUser(t, env.db)
		testutil.CreateTestProfile(t, env.db, user.ID, 100)
		reward := testutil.CreateTestReward(t, env.db, 100, 7)

		_, err := env.rewards.RedeemReward(ctx, user.ID, reward.ID)
		testutil.AssertNoError(t, err)

		env.clock.Advance(8 * 24 * time.Hour)
		page, err := env.rewards.GetUserRedemptions(ctx, user.ID, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		require.Len(t, page.Data, 1)
		require.Equal(t, models.RedemptionStatusExpired, page.Data[0].Status)
		require.NotNil(t, page.Data[0].Reward)
	})
}
