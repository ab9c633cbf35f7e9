package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"geumjjoki/internal/logger"
	"geumjjoki/internal/pagination"
	"geumjjoki/internal/services"
)

// RewardHandler serves the reward shop.
type RewardHandler struct {
	rewardService services.RewardServicer
	auditService  services.AuditServicer
}

// NewRewardHandler creates a new RewardHandler.
func NewRewardHandler(rewardService services.RewardServicer, auditService services.AuditServicer) *RewardHandler {
	return &RewardHandler{rewardService: rewardService, auditService: auditService}
}

// CreateRewardRequest represents the request payload for adding a reward.
type CreateRewardRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"max=500"`
	Cost        int64  `json:"cost" binding:"required,min=1"`
	ValidDays   int    `json:"valid_days" binding:"required,min=1,max=3650"`
	Category    string `json:"category" binding:"omitempty,max=50"`
}

// CreateReward adds an item to the shop.
// @Summary     Create a reward
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    AdminKey
// @Param       request body CreateRewardRequest true "Reward details"
// @Success     201 {object} models.Reward "Reward created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /admin/rewards [post]
func (h *RewardHandler) CreateReward(c *gin.Context) {
	var req CreateRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	reward, err := h.rewardService.CreateReward(c.Request.Context(), services.RewardInput{
		Name:        req.Name,
		Description: req.Description,
		Cost:        req.Cost,
		ValidDays:   req.ValidDays,
		Category:    req.Category,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	logger.Named("admin").Infow("reward created", "reward_id", reward.ID, "cost", reward.Cost)
	c.JSON(http.StatusCreated, gin.H{"reward": reward})
}

// GetRewards lists active rewards, cheapest first.
// @Summary     List rewards
// @Tags        rewards
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Reward] "Paginated rewards"
// @Router      /rewards [get]
func (h *RewardHandler) GetRewards(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	result, err := h.rewardService.GetActiveRewards(c.Request.Context(), page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RedeemReward spends points on a reward.
// @Summary     Redeem a reward
// @Tags        rewards
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Reward ID"
// @Success     201 {object} models.RewardRedemption "Reward redeemed"
// @Failure     400 {object} ErrorResponse "Insufficient points or inactive reward"
// @Failure     404 {object} ErrorResponse "Reward not found"
// @Router      /rewards/{id}/redeem [post]
func (h *RewardHandler) RedeemReward(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	rewardID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	redemption, err := h.rewardService.RedeemReward(ctx, userID, rewardID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ctx, userID, "REDEEM_REWARD", "reward_redemption", redemption.ID, c.ClientIP(),
		map[string]any{"reward_id": rewardID, "cost": redemption.Cost})

	c.JSON(http.StatusCreated, gin.H{"redemption": redemption})
}

// GetRedemptions lists the caller's redeemed rewards.
// @Summary     List my redemptions
// @Tags        rewards
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.RewardRedemption] "Paginated redemptions"
// @Router      /rewards/redemptions [get]
func (h *RewardHandler) GetRedemptions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	result, err := h.rewardService.GetUserRedemptions(c.Request.Context(), userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
