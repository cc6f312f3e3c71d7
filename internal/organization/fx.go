package organization

import (
	"github.com/storyforge/storyforge/internal/organization/repository"
	"github.com/storyforge/storyforge/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
