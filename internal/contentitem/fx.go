package contentitem

import (
	"github.com/storyforge/storyforge/internal/contentitem/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("contentitem",
	fx.Provide(repository.NewRepository),
)
