package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-slmp/logger"
	"github.com/stretchr/testify/require"
)

func TestManager_Start(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.NewPermissiveMockLogger())

	var runs atomic.Int32
	require.NoError(mgr.Start("loop", func() bool {
		runs.Add(1)
		time.Sleep(time.Millisecond)
		return true
	}))

	require.Eventually(func() bool { return runs.Load() > 3 }, time.Second, 5*time.Millisecond)
	require.Equal(1, mgr.Count())

	mgr.Stop()
	mgr.Wait()
	require.Equal(0, mgr.Count())

	// Wait re-arms the manager
	require.NoError(mgr.Start("again", func() bool { return false }))
	mgr.Wait()
}

func TestManager_StartReceiver(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.NewPermissiveMockLogger())

	exited := make(chan struct{})
	var size int
	require.NoError(mgr.StartReceiver("reader", 64, func(buf []byte) bool {
		size = len(buf)
		return false
	}, func() { close(exited) }))

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("receiver did not exit")
	}
	mgr.Wait()
	require.Equal(64, size)
	require.Equal(0, mgr.Count())
}

func TestManager_StartInterval(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.NewPermissiveMockLogger())

	var ticks atomic.Int32
	require.NoError(mgr.StartInterval("poll", func() bool {
		ticks.Add(1)
		return true
	}, 5*time.Millisecond, true))
	require.GreaterOrEqual(ticks.Load(), int32(1))

	err := mgr.StartInterval("poll", func() bool { return true }, time.Millisecond, false)
	require.ErrorIs(err, ErrDuplicateInterval)

	require.Eventually(func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)

	mgr.Stop()
	mgr.Wait()
	require.Equal(0, mgr.Count())

	require.Error(mgr.StartInterval("bad", func() bool { return true }, 0, false))
	require.Error(mgr.StopInterval("missing"))
}

func TestManager_StartIntervalRunNowStops(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.NewPermissiveMockLogger())
	require.NoError(mgr.StartInterval("once", func() bool { return false }, time.Millisecond, true))
	require.Equal(0, mgr.Count())
}

func TestManager_PanicStopsTask(t *testing.T) {
	require := require.New(t)

	l := logger.NewPermissiveMockLogger()
	mgr := NewManager(context.Background(), l)
	require.NoError(mgr.Start("panicky", func() bool { panic("boom") }))
	mgr.Wait()

	require.Equal(0, mgr.Count())
	l.AssertCalled(t, "Error", "panic in task", []any{"name", "panicky", "panic", "boom"})
}

func TestManager_StoppedRejectsStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mgr := NewManager(ctx, logger.NewPermissiveMockLogger())
	cancel()

	err := mgr.Start("late", func() bool { return true })
	require.ErrorIs(t, err, ErrStopped)
}
