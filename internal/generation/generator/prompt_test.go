package generator

import (
	"testing"

	contentdomain "github.com/storyforge/storyforge/internal/contentitem/domain"
	orgdomain "github.com/storyforge/storyforge/internal/organization/domain"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func fullProfile() *orgdomain.BrandProfile {
	return &orgdomain.BrandProfile{
		BrandName: "Acme Fitness",
		Variables: datatypes.NewJSONType(map[string]string{
			"audience":       "busy parents",
			"mission":        "make fitness fit real life",
			"offer":          "12-week coaching program",
			"proof":          "500 client transformations",
			"differentiator": "no gym required",
			"community":      "private member group",
		}),
	}
}

func TestSelectVariables_StoryStageChangesPick(t *testing.T) {
	f := setup(t)
	profile := fullProfile()

	item := &contentdomain.ContentItem{FunnelStage: "awareness", StoryStage: "problem"}
	assert.Equal(t, []string{"audience", "mission"}, f.gen.selectVariables(nil, item, profile))

	item.StoryStage = "journey"
	assert.Equal(t, []string{"audience", "proof"}, f.gen.selectVariables(nil, item, profile))
}

func TestSelectVariables_FallsBackToFunnelRow(t *testing.T) {
	f := setup(t)
	profile := fullProfile()

	// no story stage set
	item := &contentdomain.ContentItem{FunnelStage: "retention"}
	assert.Equal(t, []string{"community", "mission"}, f.gen.selectVariables(nil, item, profile))

	// unmapped pair falls back to the funnel-only row
	item = &contentdomain.ContentItem{FunnelStage: "conversion", StoryStage: "prologue"}
	assert.Equal(t, []string{"offer", "proof"}, f.gen.selectVariables(nil, item, profile))
}

func TestSelectVariables_UnmappedStageDrawsRandomPair(t *testing.T) {
	f := setup(t)
	profile := fullProfile()

	item := &contentdomain.ContentItem{FunnelStage: "evergreen"}
	picked := f.gen.selectVariables(nil, item, profile)
	assert.Len(t, picked, maxSelectedVariables)
	for _, name := range picked {
		assert.Contains(t, profile.Variables.Data(), name)
	}
}

func TestSelectVariables_ExplicitSelectionWins(t *testing.T) {
	f := setup(t)

	item := &contentdomain.ContentItem{FunnelStage: "awareness", StoryStage: "problem"}
	picked := f.gen.selectVariables([]string{"proof", "offer", "mission"}, item, fullProfile())
	assert.Equal(t, []string{"proof", "offer"}, picked)
}
