package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPool_RunsJobs(t *testing.T) {
	p := NewPool(3, 10, time.Second, zap.NewNop())

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		p.Dispatch("count", func(context.Context) error {
			count.Add(1)
			return nil
		})
	}

	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, int32(10), count.Load())
}

func TestPool_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := NewPool(1, 4, time.Second, zap.New(core))

	p.Dispatch("send_email", func(context.Context) error { return errors.New("smtp down") })
	p.Dispatch("boom", func(context.Context) error { panic("unexpected") })
	require.NoError(t, p.Stop(context.Background()))

	assert.Equal(t, 1, logs.FilterMessage("job failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("job panicked").Len())
}

func TestPool_JobTimeout(t *testing.T) {
	p := NewPool(1, 1, 20*time.Millisecond, zap.NewNop())

	result := make(chan error, 1)
	p.Dispatch("slow", func(ctx context.Context) error {
		<-ctx.Done()
		result <- ctx.Err()
		return ctx.Err()
	})

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("job context was not cancelled")
	}
	require.NoError(t, p.Stop(context.Background()))
}

func TestPool_DropsWhenFullOrStopped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := NewPool(1, 1, time.Second, zap.New(core))

	release := make(chan struct{})
	started := make(chan struct{})
	p.Dispatch("blocker", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started
	p.Dispatch("queued", func(context.Context) error { return nil })
	p.Dispatch("dropped", func(context.Context) error { return nil })
	assert.Equal(t, 1, logs.FilterMessage("dispatch queue full, dropping job").Len())

	close(release)
	require.NoError(t, p.Stop(context.Background()))

	p.Dispatch("late", func(context.Context) error { return nil })
	assert.Equal(t, 1, logs.FilterMessage("dispatcher stopped, dropping job").Len())
}
