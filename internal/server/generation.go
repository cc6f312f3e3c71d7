package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	generationdomain "github.com/storyforge/storyforge/internal/generation/domain"
	"github.com/storyforge/storyforge/internal/orgcontext"
	"go.uber.org/zap"
)

type enqueueBatchRequest struct {
	ItemIDs           []string `json:"item_ids" binding:"required"`
	ModelID           string   `json:"model_id"`
	SelectedVariables []string `json:"selected_variables"`
}

func (s *Server) EnqueueBatch(c *gin.Context) {
	ctx := c.Request.Context()

	orgID, _ := orgcontext.OrgIDFromContext(ctx)
	allowed, err := s.limiter.AllowOrg(ctx, orgID.String())
	if err != nil {
		s.log.Warn("rate limiter unavailable, admitting request", zap.Error(err))
	} else if !allowed.Allowed {
		c.Header("Retry-After", allowed.RetryAfter.Round(1e9).String())
		AbortWithError(c, ErrRateLimited)
		return
	}

	var req enqueueBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	itemIDs := make([]snowflake.ID, 0, len(req.ItemIDs))
	for _, raw := range req.ItemIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id == 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		itemIDs = append(itemIDs, id)
	}

	resp, err := s.generation.EnqueueBatch(ctx, generationdomain.EnqueueRequest{
		ItemIDs:           itemIDs,
		ModelID:           req.ModelID,
		SelectedVariables: req.SelectedVariables,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

func (s *Server) GetBatchStatus(c *gin.Context) {
	batchID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, generationdomain.ErrInvalidBatchID)
		return
	}

	status, err := s.generation.GetBatchStatus(c.Request.Context(), batchID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ProcessBatchItem executes one pending entry of the batch inline. Polling
// clients call it after reading status so a batch progresses even when the
// background worker is saturated.
func (s *Server) ProcessBatchItem(c *gin.Context) {
	batchID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, generationdomain.ErrInvalidBatchID)
		return
	}

	processed, err := s.generation.ProcessOneBatchItem(c.Request.Context(), batchID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}

func (s *Server) CancelBatch(c *gin.Context) {
	batchID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, generationdomain.ErrInvalidBatchID)
		return
	}

	if err := s.generation.CancelBatch(c.Request.Context(), batchID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (s *Server) ListBatches(c *gin.Context) {
	var req generationdomain.ListBatchesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	page, err := s.generation.ListBatches(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
