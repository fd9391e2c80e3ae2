package archive

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// pipelineEntity is a minimal entity whose single step counts invocations.
type pipelineEntity struct {
	resource
	runs  atomic.Int32
	block chan struct{}
}

func (p *pipelineEntity) Load(ctx context.Context) error {
	return p.runPipeline(ctx, []step{
		func(ctx context.Context) error {
			if p.block != nil {
				<-p.block
			}
			p.runs.Add(1)
			return nil
		},
	})
}

func (p *pipelineEntity) project() any { return nil }
func (p *pipelineEntity) ref() any     { return idValue(p.Id()) }

func TestLoadRunsOnce(t *testing.T) {
	e := &pipelineEntity{resource: resource{kind: KindBand, id: "1"}}

	require.NoError(t, e.Load(context.Background()))
	require.NoError(t, e.Load(context.Background()))
	require.Equal(t, int32(1), e.runs.Load())
	require.True(t, e.Loaded())
}

func TestSecondLoadReturnsWhileFirstInFlight(t *testing.T) {
	e := &pipelineEntity{
		resource: resource{kind: KindBand, id: "1"},
		block:    make(chan struct{}),
	}

	done := make(chan error, 1)
	go func() { done <- e.Load(context.Background()) }()

	// wait until the first load has claimed the flag
	for !e.Loaded() {
		runtime.Gosched()
	}

	// a second load must not wait on the in-flight one
	require.NoError(t, e.Load(context.Background()))
	require.Equal(t, int32(0), e.runs.Load())

	close(e.block)
	require.NoError(t, <-done)
	require.Equal(t, int32(1), e.runs.Load())
}

func TestPipelineStopsAtFirstError(t *testing.T) {
	r := &resource{kind: KindBand, id: "1"}
	boom := errors.New("boom")
	ran := 0

	err := r.runPipeline(context.Background(), []step{
		func(ctx context.Context) error { ran++; return nil },
		func(ctx context.Context) error { return boom },
		func(ctx context.Context) error { ran++; return nil },
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, ran)

	// the entity stays loaded even after a failed pipeline
	require.True(t, r.Loaded())
	require.NoError(t, r.runPipeline(context.Background(), []step{
		func(ctx context.Context) error { ran++; return nil },
	}))
	require.Equal(t, 1, ran)
}

func TestGroupJoinsErrors(t *testing.T) {
	g := &group{}
	first := errors.New("first")
	second := errors.New("second")

	var mu sync.Mutex
	order := []string{}
	g.Go(func() error {
		mu.Lock()
		order = append(order, "a")
		mu.Unlock()
		return first
	})
	g.Go(func() error {
		mu.Lock()
		order = append(order, "b")
		mu.Unlock()
		return second
	})
	g.Go(func() error { return nil })

	err := g.Wait()
	require.ErrorIs(t, err, first)
	require.ErrorIs(t, err, second)
	require.Len(t, order, 2)
}
