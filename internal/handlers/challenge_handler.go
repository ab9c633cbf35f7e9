package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"geumjjoki/internal/logger"
	"geumjjoki/internal/models"
	"geumjjoki/internal/pagination"
	"geumjjoki/internal/services"
)

// ChallengeHandler serves the challenge catalog and joins.
type ChallengeHandler struct {
	challengeService services.ChallengeServicer
	auditService     services.AuditServicer
}

// NewChallengeHandler creates a new ChallengeHandler.
func NewChallengeHandler(challengeService services.ChallengeServicer, auditService services.AuditServicer) *ChallengeHandler {
	return &ChallengeHandler{challengeService: challengeService, auditService: auditService}
}

// CreateChallengeRequest represents the request payload for creating a challenge.
type CreateChallengeRequest struct {
	Title       string    `json:"title" binding:"required,min=1,max=100"`
	Content     string    `json:"content" binding:"max=2000"`
	CategoryID  *string   `json:"category_id" binding:"omitempty,uuid"`
	GoalAmount  int64     `json:"goal_amount" binding:"min=0"`
	GoalDays    int       `json:"goal_days" binding:"required,min=1,max=365"`
	PointReward int64     `json:"point_reward" binding:"min=0"`
	StartDate   time.Time `json:"start_date" binding:"required"`
	EndDate     time.Time `json:"end_date" binding:"required,gtfield=StartDate"`
}

// ChallengeListQuery holds the filters and ordering of a challenge listing.
type ChallengeListQuery struct {
	Title      string `form:"title" binding:"max=100"`
	CategoryID string `form:"category_id" binding:"omitempty,uuid"`
	GoalDays   *int   `form:"goal_days" binding:"omitempty,min=1"`
	IsActive   *bool  `form:"is_active"`
	Status     string `form:"status" binding:"omitempty,challenge_status"`
	Sort       string `form:"sort" binding:"omitempty,challenge_sort"`
}

// ChallengeStatusResponse is a challenge's lifecycle state at request time.
type ChallengeStatusResponse struct {
	ChallengeID string                 `json:"challenge_id"`
	Status      models.ChallengeStatus `json:"status"`
}

// CreateChallenge adds a challenge to the catalog.
// @Summary     Create a challenge
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    AdminKey
// @Param       request body CreateChallengeRequest true "Challenge details"
// @Success     201 {object} models.Challenge "Challenge created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /admin/challenges [post]
func (h *ChallengeHandler) CreateChallenge(c *gin.Context) {
	var req CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	challenge, err := h.challengeService.CreateChallenge(c.Request.Context(), services.ChallengeInput{
		Title:       req.Title,
		Content:     req.Content,
		CategoryID:  req.CategoryID,
		GoalAmount:  req.GoalAmount,
		GoalDays:    req.GoalDays,
		PointReward: req.PointReward,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	logger.Named("admin").Infow("challenge created", "challenge_id", challenge.ID, "title", challenge.Title)
	c.JSON(http.StatusCreated, gin.H{"challenge": challenge})
}

// GetChallenges lists challenges, joinable first.
// @Summary     List challenges
// @Tags        challenges
// @Produce     json
// @Security    BearerAuth
// @Param       title       query string false "Title contains"
// @Param       category_id query string false "Category"
// @Param       goal_days   query int    false "Goal length in days"
// @Param       is_active   query bool   false "Active flag"
// @Param       status      query string false "upcoming, joinable, not-joinable or closed"
// @Param       sort        query string false "start_date, end_date, goal_amount, point_reward, computed_status or created_at; prefix - for descending; default -start_date"
// @Param       page        query int    false "Page number (default 1)"
// @Param       page_size   query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Challenge] "Paginated challenges"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /challenges [get]
func (h *ChallengeHandler) GetChallenges(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}
	var q ChallengeListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	filter := services.ChallengeFilter{GoalDays: q.GoalDays, IsActive: q.IsActive, Sort: q.Sort}
	if q.Title != "" {
		filter.Title = &q.Title
	}
	if q.CategoryID != "" {
		filter.CategoryID = &q.CategoryID
	}
	if q.Status != "" {
		s := models.ChallengeStatus(q.Status)
		filter.Status = &s
	}

	result, err := h.challengeService.GetChallenges(c.Request.Context(), page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetChallenge returns one challenge with its current status.
// @Summary     Get challenge by ID
// @Tags        challenges
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Challenge ID"
// @Success     200 {object} models.Challenge "Challenge details"
// @Failure     400 {object} ErrorResponse "Invalid challenge ID"
// @Failure     404 {object} ErrorResponse "Challenge not found"
// @Router      /challenges/{id} [get]
func (h *ChallengeHandler) GetChallenge(c *gin.Context) {
	challengeID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	challenge, err := h.challengeService.GetChallengeByID(c.Request.Context(), challengeID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"challenge": challenge})
}

// GetChallengeStatus resolves a challenge's lifecycle state now.
// @Summary     Get challenge status
// @Tags        challenges
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Challenge ID"
// @Success     200 {object} ChallengeStatusResponse "Current status"
// @Failure     404 {object} ErrorResponse "Challenge not found"
// @Router      /challenges/{id}/status [get]
func (h *ChallengeHandler) GetChallengeStatus(c *gin.Context) {
	challengeID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	status, err := h.challengeService.GetChallengeStatus(c.Request.Context(), challengeID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ChallengeStatusResponse{ChallengeID: challengeID, Status: status})
}

// JoinChallenge starts an attempt at a challenge for the caller.
// @Summary     Join a challenge
// @Description Checks run in a fixed order and the first failure is returned:
// @Description CHALLENGE_ALREADY_FINISHED, PERIOD_TOO_SHORT, CATEGORY_REQUIRED, NOT_ENOUGH_EXPENSE,
// @Description ALREADY_IN_PROGRESS, ALREADY_IN_PROGRESS_CATEGORY, NOT_JOINABLE.
// @Tags        challenges
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Challenge ID"
// @Success     201 {object} models.UserChallenge "Attempt started"
// @Failure     400 {object} ErrorResponse "Join rejected"
// @Failure     404 {object} ErrorResponse "Challenge not found"
// @Failure     409 {object} ErrorResponse "Already in progress"
// @Router      /challenges/{id}/join [post]
func (h *ChallengeHandler) JoinChallenge(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	challengeID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	uc, err := h.challengeService.JoinChallenge(ctx, userID, challengeID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ctx, userID, "JOIN_CHALLENGE", "user_challenge", uc.ID, c.ClientIP(),
		map[string]any{"challenge_id": challengeID, "previous_expense": uc.PreviousExpense, "target_expense": uc.TargetExpense})

	c.JSON(http.StatusCreated, gin.H{"user_challenge": uc})
}
