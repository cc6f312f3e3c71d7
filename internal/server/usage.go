package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/storyforge/storyforge/internal/orgcontext"
)

func (s *Server) GetCreditBalance(c *gin.Context) {
	ctx := c.Request.Context()
	orgID, _ := orgcontext.OrgIDFromContext(ctx)
	userID, _ := orgcontext.UserIDFromContext(ctx)

	check, err := s.credits.CheckCredits(ctx, orgID, 0, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": check.Remaining})
}

func (s *Server) ListUsage(c *gin.Context) {
	ctx := c.Request.Context()
	orgID, _ := orgcontext.OrgIDFromContext(ctx)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.usage.ListByOrg(ctx, orgID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
