package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/storyforge/storyforge/internal/config"
	"github.com/storyforge/storyforge/internal/generation/domain"
	"github.com/storyforge/storyforge/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type serviceStub struct {
	mu        sync.Mutex
	backlog   int
	calls     int
	sweepErr  error
	lastLimit int
	sawPriv   bool
}

func (s *serviceStub) ProcessNextItems(ctx context.Context, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastLimit = limit
	s.sawPriv = orgcontext.IsPrivileged(ctx)
	if s.sweepErr != nil {
		return 0, s.sweepErr
	}
	n := s.backlog
	if n > limit {
		n = limit
	}
	s.backlog -= n
	return n, nil
}

func (s *serviceStub) EnqueueBatch(context.Context, domain.EnqueueRequest) (*domain.EnqueueResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *serviceStub) ProcessOneBatchItem(context.Context, snowflake.ID) (bool, error) {
	return false, errors.New("not implemented")
}

func (s *serviceStub) GetBatchStatus(context.Context, snowflake.ID) (*domain.BatchStatusResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *serviceStub) ListBatches(context.Context, domain.ListBatchesRequest) (domain.ListBatchesResponse, error) {
	return domain.ListBatchesResponse{}, errors.New("not implemented")
}

func (s *serviceStub) CancelBatch(context.Context, snowflake.ID) error {
	return errors.New("not implemented")
}

func newTestWorker(stub *serviceStub) *Worker {
	return New(Params{
		Log: zap.NewNop(),
		Cfg: config.Config{Generation: config.GenerationConfig{
			SweepInterval:  time.Millisecond,
			SweepBatchSize: 5,
		}},
		Svc: stub,
	})
}

func TestRunOnce_ProcessesWithPrivilegedContext(t *testing.T) {
	stub := &serviceStub{backlog: 3}
	w := newTestWorker(stub)

	processed := w.RunOnce(context.Background())
	assert.Equal(t, 3, processed)
	assert.Equal(t, 5, stub.lastLimit)
	assert.True(t, stub.sawPriv)
}

func TestRunOnce_SwallowsSweepError(t *testing.T) {
	stub := &serviceStub{sweepErr: errors.New("db down")}
	w := newTestWorker(stub)

	assert.Zero(t, w.RunOnce(context.Background()))
}

func TestRunForever_DrainsBacklogAndStops(t *testing.T) {
	stub := &serviceStub{backlog: 12}
	w := newTestWorker(stub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.RunForever(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		stub.mu.Lock()
		defer stub.mu.Unlock()
		return stub.backlog == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
