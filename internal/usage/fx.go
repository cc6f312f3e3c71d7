package usage

import (
	"github.com/storyforge/storyforge/internal/usage/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("usage",
	fx.Provide(repository.NewRepository),
)
