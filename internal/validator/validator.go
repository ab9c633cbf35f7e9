// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// challengeSortFields are the columns a challenge listing may be ordered by.
var challengeSortFields = map[string]bool{
	"start_date":      true,
	"end_date":        true,
	"goal_amount":     true,
	"point_reward":    true,
	"computed_status": true,
	"created_at":      true,
}

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn registers the custom validators on v.
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("hex_color", validateHexColor)
	_ = v.RegisterValidation("challenge_status", validateChallengeStatus)
	_ = v.RegisterValidation("user_challenge_status", validateUserChallengeStatus)
	_ = v.RegisterValidation("challenge_sort", validateChallengeSort)
}

func validateHexColor(fl validator.FieldLevel) bool {
	return hexColorRegex.MatchString(fl.Field().String())
}

func validateChallengeStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "upcoming", "joinable", "not-joinable", "closed":
		return true
	}
	return false
}

func validateUserChallengeStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "active", "succeeded", "failed":
		return true
	}
	return false
}

// validateChallengeSort accepts a sort field with an optional "-" prefix for descending order.
func validateChallengeSort(fl validator.FieldLevel) bool {
	return challengeSortFields[strings.TrimPrefix(fl.Field().String(), "-")]
}
