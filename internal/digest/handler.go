// Package digest serves the read-only "latest answered questions" view.
package digest

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/crowdguru/backend/internal/models"
	"github.com/crowdguru/backend/pkg/response"
)

// latestLimit caps the digest at the most recent answers.
const latestLimit = 20

// Store is the read path the digest needs.
type Store interface {
	ListAnswered(ctx context.Context, limit int) ([]*models.Question, error)
}

// Handler serves the latest-answered listing.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a digest handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Latest handles GET /latest: the most recently answered questions,
// newest first.
func (h *Handler) Latest(c *gin.Context) {
	list, err := h.store.ListAnswered(c.Request.Context(), latestLimit)
	if err != nil {
		h.logger.Error("list answered failed", zap.Error(err))
		response.Internal(c, "failed to list answered questions")
		return
	}
	if list == nil {
		list = []*models.Question{}
	}
	response.OK(c, gin.H{"questions": list})
}
