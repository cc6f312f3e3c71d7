package modelcatalog

import (
	"github.com/storyforge/storyforge/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("modelcatalog",
	fx.Provide(func(cfg config.Config) *Catalog {
		return NewCatalog(cfg.Generation.DefaultModelID)
	}),
)
