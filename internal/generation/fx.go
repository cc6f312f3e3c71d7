package generation

import (
	"context"
	"math/rand"
	"time"

	"github.com/storyforge/storyforge/internal/generation/generator"
	"github.com/storyforge/storyforge/internal/generation/repository"
	"github.com/storyforge/storyforge/internal/generation/service"
	"github.com/storyforge/storyforge/internal/generation/worker"
	"go.uber.org/fx"
)

// Module wires the generation queue: repository, single-item generator,
// queue service, and the background sweep worker.
var Module = fx.Module("generation",
	fx.Provide(
		repository.NewRepository,
		generator.NewGenerator,
		service.NewService,
		worker.New,
		newRand,
	),
	fx.Invoke(startWorker),
)

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func startWorker(lc fx.Lifecycle, w *worker.Worker) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go w.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
