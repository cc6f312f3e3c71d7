package providers

import (
	"net/http"

	"github.com/storyforge/storyforge/internal/providers/slack"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	fx.Provide(func() slack.Provider {
		return slack.NewWebhookProvider(&http.Client{})
	}),
)
