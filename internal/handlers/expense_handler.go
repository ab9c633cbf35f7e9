package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"geumjjoki/internal/clock"
	apperrors "geumjjoki/internal/errors"
	"geumjjoki/internal/pagination"
	"geumjjoki/internal/services"
)

// ExpenseHandler handles the caller's expense ledger.
type ExpenseHandler struct {
	expenseService services.ExpenseServicer
	auditService   services.AuditServicer
	clock          clock.Clock
}

// NewExpenseHandler creates a new ExpenseHandler. clk picks the default summary month.
func NewExpenseHandler(expenseService services.ExpenseServicer, auditService services.AuditServicer, clk clock.Clock) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService, auditService: auditService, clock: clk}
}

// CreateExpenseRequest represents the request payload for recording an expense.
// An omitted date means today.
type CreateExpenseRequest struct {
	CategoryID  *string `json:"category_id" binding:"omitempty,uuid"`
	Amount      *int64  `json:"amount" binding:"required,min=0"`
	Description string  `json:"description" binding:"max=255"`
	Date        string  `json:"date" binding:"omitempty,datetime=2006-01-02"`
}

// UpdateExpenseRequest represents the request payload for editing an expense.
// clear_category moves the expense to the unclassified bucket.
type UpdateExpenseRequest struct {
	CategoryID    *string `json:"category_id" binding:"omitempty,uuid"`
	ClearCategory bool    `json:"clear_category"`
	Amount        *int64  `json:"amount" binding:"omitempty,min=0"`
	Description   *string `json:"description" binding:"omitempty,max=255"`
	Date          *string `json:"date" binding:"omitempty,datetime=2006-01-02"`
}

// ExpenseListQuery holds the filters of an expense listing.
type ExpenseListQuery struct {
	From            string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To              string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	CategoryID      string `form:"category_id" binding:"omitempty,uuid"`
	MinAmount       *int64 `form:"min_amount" binding:"omitempty,min=0"`
	MaxAmount       *int64 `form:"max_amount" binding:"omitempty,min=0"`
	UserChallengeID string `form:"user_challenge_id" binding:"omitempty,uuid"`
}

// CreateExpense records an expense and attributes it to a running challenge.
// @Summary     Record an expense
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateExpenseRequest true "Expense details"
// @Success     201 {object} models.Expense "Expense created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /expenses [post]
func (h *ExpenseHandler) CreateExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}
	date, err := parseDate(req.Date, "date")
	if err != nil {
		respondWithError(c, err)
		return
	}

	input := services.ExpenseInput{
		CategoryID:  req.CategoryID,
		Amount:      *req.Amount,
		Description: req.Description,
	}
	if date != nil {
		input.Date = *date
	}

	ctx := c.Request.Context()
	expense, err := h.expenseService.CreateExpense(ctx, userID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ctx, userID, "CREATE_EXPENSE", "expense", expense.ID, c.ClientIP(),
		map[string]any{"amount": expense.Amount, "date": expense.Date.Format(dateLayout), "user_challenge_id": expense.UserChallengeID})

	c.JSON(http.StatusCreated, gin.H{"expense": expense})
}

// GetExpenses lists the caller's expenses, newest first.
// @Summary     List expenses
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       from              query string false "First date (YYYY-MM-DD)"
// @Param       to                query string false "Last date (YYYY-MM-DD)"
// @Param       category_id       query string false "Category, including its descendants"
// @Param       min_amount        query int    false "Minimum amount"
// @Param       max_amount        query int    false "Maximum amount"
// @Param       user_challenge_id query string false "Linked user challenge"
// @Param       page              query int    false "Page number (default 1)"
// @Param       page_size         query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Expense] "Paginated expenses"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /expenses [get]
func (h *ExpenseHandler) GetExpenses(c *gin.Context) {
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
	var q ExpenseListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	filter := services.ExpenseFilter{MinAmount: q.MinAmount, MaxAmount: q.MaxAmount}
	if filter.FromDate, err = parseDate(q.From, "from"); err != nil {
		respondWithError(c, err)
		return
	}
	if filter.ToDate, err = parseDate(q.To, "to"); err != nil {
		respondWithError(c, err)
		return
	}
	if filter.FromDate != nil && filter.ToDate != nil && filter.ToDate.Before(*filter.FromDate) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "to must not be before from"))
		return
	}
	if q.CategoryID != "" {
		filter.CategoryID = &q.CategoryID
	}
	if q.UserChallengeID != "" {
		filter.UserChallengeID = &q.UserChallengeID
	}

	result, err := h.expenseService.GetUserExpenses(c.Request.Context(), userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetExpense returns one of the caller's expenses.
// @Summary     Get expense by ID
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Expense ID"
// @Success     200 {object} models.Expense "Expense details"
// @Failure     400 {object} ErrorResponse "Invalid expense ID"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Router      /expenses/{id} [get]
func (h *ExpenseHandler) GetExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	expenseID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	expense, err := h.expenseService.GetExpenseByID(c.Request.Context(), userID, expenseID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expense": expense})
}

// UpdateExpense edits an expense and re-attributes it.
// @Summary     Update an expense
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Expense ID"
// @Param       request body UpdateExpenseRequest true "Updated fields"
// @Success     200 {object} models.Expense "Updated expense"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Failure     409 {object} ErrorResponse "Expense is locked by a settled challenge"
// @Router      /expenses/{id} [put]
func (h *ExpenseHandler) UpdateExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	expenseID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}
	update := services.ExpenseUpdate{
		CategoryID:    req.CategoryID,
		ClearCategory: req.ClearCategory,
		Amount:        req.Amount,
		Description:   req.Description,
	}
	if req.Date != nil {
		if update.Date, err = parseDate(*req.Date, "date"); err != nil {
			respondWithError(c, err)
			return
		}
	}

	ctx := c.Request.Context()
	expense, err := h.expenseService.UpdateExpense(ctx, userID, expenseID, update)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ctx, userID, "UPDATE_EXPENSE", "expense", expense.ID, c.ClientIP(),
		map[string]any{"amount": expense.Amount, "date": expense.Date.Format(dateLayout), "user_challenge_id": expense.UserChallengeID})

	c.JSON(http.StatusOK, gin.H{"expense": expense})
}

// DeleteExpense removes an expense and recomputes its challenge total.
// @Summary     Delete an expense
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Expense ID"
// @Success     200 {object} map[string]string "Expense deleted"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Failure     409 {object} ErrorResponse "Expense is locked by a settled challenge"
// @Router      /expenses/{id} [delete]
func (h *ExpenseHandler) DeleteExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	expenseID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.expenseService.DeleteExpense(ctx, userID, expenseID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ctx, userID, "DELETE_EXPENSE", "expense", expenseID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Expense deleted successfully"})
}

// GetMonthlySummary buckets a month's spending by root category.
// @Summary     Monthly spending summary
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       year  query int false "Year (default current)"
// @Param       month query int false "Month 1-12 (default current)"
// @Success     200 {object} services.MonthlySummary "Current and previous month"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /expenses/summary [get]
func (h *ExpenseHandler) GetMonthlySummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	today := clock.Today(h.clock)
	year, month := today.Year(), int(today.Month())
	if v := c.Query("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil || year < 1 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "year must be a positive integer"))
			return
		}
	}
	if v := c.Query("month"); v != "" {
		if month, err = strconv.Atoi(v); err != nil || month < 1 || month > 12 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "month must be between 1 and 12"))
			return
		}
	}

	summary, err := h.expenseService.GetMonthlySummary(c.Request.Context(), userID, year, time.Month(month))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
