package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	contentdomain "github.com/storyforge/storyforge/internal/contentitem/domain"
	"github.com/storyforge/storyforge/internal/orgcontext"
	"gorm.io/datatypes"
)

type createContentItemRequest struct {
	Format          string   `json:"format" binding:"required"`
	FunnelStage     string   `json:"funnel_stage"`
	StoryStage      string   `json:"story_stage"`
	TargetPlatforms []string `json:"target_platforms"`
}

var knownFormats = map[string]struct{}{
	contentdomain.FormatCarousel: {},
	contentdomain.FormatStatic:   {},
	contentdomain.FormatReel:     {},
	contentdomain.FormatLongform: {},
}

func (s *Server) CreateContentItem(c *gin.Context) {
	ctx := c.Request.Context()
	orgID, _ := orgcontext.OrgIDFromContext(ctx)

	var req createContentItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	format := strings.ToLower(strings.TrimSpace(req.Format))
	if _, ok := knownFormats[format]; !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item := &contentdomain.ContentItem{
		ID:              s.genID.Generate(),
		OrgID:           orgID,
		Format:          format,
		FunnelStage:     strings.ToLower(strings.TrimSpace(req.FunnelStage)),
		StoryStage:      strings.ToLower(strings.TrimSpace(req.StoryStage)),
		TargetPlatforms: datatypes.NewJSONType(req.TargetPlatforms),
		Status:          contentdomain.StatusDraft,
	}
	if err := s.items.Create(ctx, item); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (s *Server) GetContentItem(c *gin.Context) {
	ctx := c.Request.Context()
	orgID, _ := orgcontext.OrgIDFromContext(ctx)

	itemID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.items.GetByID(ctx, orgID, itemID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if item == nil {
		AbortWithError(c, contentdomain.ErrItemNotFound)
		return
	}
	c.JSON(http.StatusOK, item)
}
