package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/storyforge/storyforge/internal/clock"
	"github.com/storyforge/storyforge/internal/config"
	"github.com/storyforge/storyforge/internal/contentitem"
	"github.com/storyforge/storyforge/internal/credit"
	"github.com/storyforge/storyforge/internal/generation"
	"github.com/storyforge/storyforge/internal/migration"
	"github.com/storyforge/storyforge/internal/modelcatalog"
	"github.com/storyforge/storyforge/internal/notification"
	"github.com/storyforge/storyforge/internal/observability"
	"github.com/storyforge/storyforge/internal/organization"
	"github.com/storyforge/storyforge/internal/provider"
	"github.com/storyforge/storyforge/internal/providers"
	"github.com/storyforge/storyforge/internal/usage"
	"github.com/storyforge/storyforge/pkg/db"
	"go.uber.org/fx"
)

// Headless sweeper. Runs the same generation pipeline as the API binary but
// without the HTTP surface, for scaling queue throughput independently.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		organization.Module,
		contentitem.Module,
		credit.Module,
		usage.Module,
		providers.Module,
		notification.Module,
		provider.Module,
		modelcatalog.Module,
		generation.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	nodeID := int64(2)
	if raw := os.Getenv("NODE_ID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			panic(err)
		}
		nodeID = parsed
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		panic(err)
	}
	return node
}
