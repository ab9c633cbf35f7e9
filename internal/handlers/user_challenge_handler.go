package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"geumjjoki/internal/models"
	"geumjjoki/internal/pagination"
	"geumjjoki/internal/services"
)

// UserChallengeHandler serves the caller's challenge attempts.
type UserChallengeHandler struct {
	userChallengeService services.UserChallengeServicer
}

// NewUserChallengeHandler creates a new UserChallengeHandler.
func NewUserChallengeHandler(userChallengeService services.UserChallengeServicer) *UserChallengeHandler {
	return &UserChallengeHandler{userChallengeService: userChallengeService}
}

type userChallengeListQuery struct {
	Status string `form:"status" binding:"omitempty,user_challenge_status"`
}

// GetMyChallenges lists the caller's attempts, settling any whose window closed.
// @Summary     List my challenges
// @Tags        my-challenges
// @Produce     json
// @Security    BearerAuth
// @Param       status    query string false "active, succeeded or failed"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.UserChallenge] "Paginated attempts"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /my-challenges [get]
func (h *UserChallengeHandler) GetMyChallenges(c *gin.Context) {
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
	var q userChallengeListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	var status *models.UserChallengeStatus
	if q.Status != "" {
		s := models.UserChallengeStatus(q.Status)
		status = &s
	}

	result, err := h.userChallengeService.GetUserChallenges(c.Request.Context(), userID, status, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetMyChallenge returns one of the caller's attempts.
// @Summary     Get my challenge by ID
// @Tags        my-challenges
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "User challenge ID"
// @Success     200 {object} models.UserChallenge "Attempt details"
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "Attempt not found"
// @Router      /my-challenges/{id} [get]
func (h *UserChallengeHandler) GetMyChallenge(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	ucID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	uc, err := h.userChallengeService.GetUserChallengeByID(c.Request.Context(), userID, ucID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_challenge": uc})
}

// GetMyChallengeStatus returns progress and days remaining for one attempt.
// @Summary     Get my challenge status
// @Tags        my-challenges
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "User challenge ID"
// @Success     200 {object} services.UserChallengeStatusView "Attempt status"
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "Attempt not found"
// @Router      /my-challenges/{id}/status [get]
func (h *UserChallengeHandler) GetMyChallengeStatus(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	ucID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	view, err := h.userChallengeService.GetUserChallengeStatus(c.Request.Context(), userID, ucID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
