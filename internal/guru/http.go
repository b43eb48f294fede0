package guru

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/crowdguru/backend/pkg/response"
)

// PresenceHandler handles presence webhooks from an external chat gateway.
type PresenceHandler struct {
	ctrl   *Controller
	logger *zap.Logger
}

// NewPresenceHandler creates a presence webhook handler.
func NewPresenceHandler(ctrl *Controller, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{ctrl: ctrl, logger: logger}
}

// Update handles POST /presence/:status. Status is "available" or
// "unavailable"; the sender comes from the "from" form or query parameter.
func (h *PresenceHandler) Update(c *gin.Context) {
	sender := c.PostForm("from")
	if sender == "" {
		sender = c.Query("from")
	}
	if sender == "" {
		response.BadRequest(c, "from required")
		return
	}

	var err error
	switch c.Param("status") {
	case "available":
		err = h.ctrl.OnAvailable(c.Request.Context(), sender)
	case "unavailable":
		err = h.ctrl.OnUnavailable(c.Request.Context(), sender)
	default:
		response.BadRequest(c, "status must be available or unavailable")
		return
	}
	if err != nil {
		h.logger.Error("presence update failed", zap.String("from", sender), zap.Error(err))
		response.Internal(c, "failed to update presence")
		return
	}
	response.OK(c, gin.H{"from": sender, "status": c.Param("status")})
}
