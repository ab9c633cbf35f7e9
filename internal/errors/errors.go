// Package errors provides custom error types for the Geumjjoki API.
// All service-layer errors should use AppError so that every rejection carries
// a stable machine-readable code, and internal details never reach clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so that
// errors.Is(err, ErrNotJoinable) matches copies made by Wrap and WithMessage.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
)

// Category errors.
var (
	ErrCategoryNotFound    = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrCategoryHasChildren = &AppError{Code: "CATEGORY_HAS_CHILDREN", Message: "Category has child categories", StatusCode: http.StatusConflict}
	ErrCategoryCycle       = &AppError{Code: "CATEGORY_CYCLE", Message: "Category parent chain would form a cycle", StatusCode: http.StatusBadRequest}
)

// Expense errors.
var (
	ErrExpenseNotFound = &AppError{Code: "EXPENSE_NOT_FOUND", Message: "Expense not found", StatusCode: http.StatusNotFound}
	ErrExpenseLocked   = &AppError{Code: "EXPENSE_LOCKED", Message: "Expense is linked to a settled challenge and can no longer be changed", StatusCode: http.StatusConflict}
)

// Challenge errors. The join rejections are part of the client contract and
// must keep their codes.
var (
	ErrChallengeNotFound      = &AppError{Code: "CHALLENGE_NOT_FOUND", Message: "Challenge not found", StatusCode: http.StatusNotFound}
	ErrUserChallengeNotFound  = &AppError{Code: "USER_CHALLENGE_NOT_FOUND", Message: "User challenge not found", StatusCode: http.StatusNotFound}
	ErrChallengeFinished      = &AppError{Code: "CHALLENGE_ALREADY_FINISHED", Message: "This challenge has already finished", StatusCode: http.StatusBadRequest}
	ErrPeriodTooShort         = &AppError{Code: "PERIOD_TOO_SHORT", Message: "The challenge period is shorter than its goal days", StatusCode: http.StatusBadRequest}
	ErrCategoryRequired       = &AppError{Code: "CATEGORY_REQUIRED", Message: "Eligibility cannot be verified for a challenge without a category", StatusCode: http.StatusBadRequest}
	ErrInsufficientPriorSpend = &AppError{Code: "NOT_ENOUGH_EXPENSE", Message: "Not enough prior spending in this category", StatusCode: http.StatusBadRequest}
	ErrAlreadyActiveChallenge = &AppError{Code: "ALREADY_IN_PROGRESS", Message: "This challenge is already in progress", StatusCode: http.StatusConflict}
	ErrAlreadyActiveCategory  = &AppError{Code: "ALREADY_IN_PROGRESS_CATEGORY", Message: "Another challenge in this category is already in progress", StatusCode: http.StatusConflict}
	ErrNotJoinable            = &AppError{Code: "NOT_JOINABLE", Message: "This challenge cannot be joined yet", StatusCode: http.StatusBadRequest}
)

// Reward errors.
var (
	ErrRewardNotFound     = &AppError{Code: "REWARD_NOT_FOUND", Message: "Reward not found", StatusCode: http.StatusNotFound}
	ErrRewardInactive     = &AppError{Code: "REWARD_INACTIVE", Message: "Reward is not available", StatusCode: http.StatusBadRequest}
	ErrInsufficientPoints = &AppError{Code: "INSUFFICIENT_POINTS", Message: "Not enough points", StatusCode: http.StatusBadRequest}
)
