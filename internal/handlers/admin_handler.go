package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"geumjjoki/internal/logger"
	"geumjjoki/internal/services"
)

// AdminHandler exposes maintenance operations behind the admin key.
type AdminHandler struct {
	userChallengeService services.UserChallengeServicer
	attributionService   services.AttributionServicer
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(userChallengeService services.UserChallengeServicer, attributionService services.AttributionServicer) *AdminHandler {
	return &AdminHandler{userChallengeService: userChallengeService, attributionService: attributionService}
}

// SettleDue settles every active attempt whose window has closed.
// @Summary     Settle closed attempts
// @Tags        admin
// @Produce     json
// @Security    AdminKey
// @Success     200 {object} services.SettleDueResult "Sweep outcome"
// @Router      /admin/settle [post]
func (h *AdminHandler) SettleDue(c *gin.Context) {
	result, err := h.userChallengeService.SettleDue(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	logger.Named("admin").Infow("settlement sweep",
		"checked", result.Checked, "succeeded", result.Succeeded, "failed", result.Failed, "errors", result.Errors)
	c.JSON(http.StatusOK, result)
}

// Reattribute rebuilds one user's expense links against their active attempts.
// @Summary     Reattribute a user's expenses
// @Tags        admin
// @Produce     json
// @Security    AdminKey
// @Param       id path string true "User ID"
// @Success     200 {object} services.ReattributeResult "Links rebuilt"
// @Failure     400 {object} ErrorResponse "Invalid user ID"
// @Router      /admin/users/{id}/reattribute [post]
func (h *AdminHandler) Reattribute(c *gin.Context) {
	userID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.attributionService.Reattribute(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	logger.Named("admin").Infow("reattributed", "user_id", userID, "links_changed", result.LinksChanged)
	c.JSON(http.StatusOK, result)
}
