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
	"github.com/storyforge/storyforge/internal/ratelimit"
	"github.com/storyforge/storyforge/internal/seed"
	"github.com/storyforge/storyforge/internal/server"
	"github.com/storyforge/storyforge/internal/usage"
	"github.com/storyforge/storyforge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

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
		ratelimit.Module,
		generation.Module,

		server.Module,

		fx.Invoke(seedDemoData),
	)
	app.Run()
}

func seedDemoData(cfg config.Config, conn *gorm.DB, node *snowflake.Node, log *zap.Logger) error {
	if !cfg.SeedDemoData {
		return nil
	}
	if err := seed.EnsureDemoWorkspace(conn, node); err != nil {
		return err
	}
	log.Info("demo workspace seeded")
	return nil
}

// RegisterSnowflake builds the process-wide ID node. NODE_ID must differ
// between replicas or IDs can collide.
func RegisterSnowflake() *snowflake.Node {
	nodeID := int64(1)
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
