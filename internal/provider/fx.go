package provider

import (
	"net/http"
	"os"

	"github.com/storyforge/storyforge/internal/provider/adapters"
	"github.com/storyforge/storyforge/internal/provider/adapters/anthropic"
	"github.com/storyforge/storyforge/internal/provider/adapters/openai"
	"go.uber.org/fx"
)

// Module registers the completion-provider adapters. Per-request timeouts are
// applied by the caller through context, not the shared client.
var Module = fx.Module("provider",
	fx.Provide(NewRegistry),
)

func NewRegistry() *adapters.Registry {
	client := &http.Client{}
	return adapters.NewRegistry(
		openai.New("openai", os.Getenv("OPENAI_BASE_URL"), os.Getenv("OPENAI_API_KEY"), client),
		anthropic.New(os.Getenv("ANTHROPIC_BASE_URL"), os.Getenv("ANTHROPIC_API_KEY"), client),
	)
}
