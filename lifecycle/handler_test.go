package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandlerContext(t *testing.T) {
	require := require.New(t)

	h := New(context.Background(), zap.NewNop().Sugar())
	require.NotNil(h.Context())

	select {
	case <-h.Context().Done():
		t.Fatal("context should not be cancelled before shutdown")
	default:
	}

	h.Shutdown()

	select {
	case <-h.Context().Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("context should be cancelled after shutdown")
	}
}

func TestHandlerCleanupLIFOOrder(t *testing.T) {
	require := require.New(t)

	h := New(context.Background(), zap.NewNop().Sugar())

	var order []int
	h.AddCleanup(func() error { order = append(order, 1); return nil })
	h.AddCleanup(func() error { order = append(order, 2); return nil })
	h.AddCleanup(func() error { order = append(order, 3); return nil })

	h.Shutdown()

	require.Equal([]int{3, 2, 1}, order)
}

func TestHandlerCleanupRunsDespiteError(t *testing.T) {
	require := require.New(t)

	h := New(context.Background(), zap.NewNop().Sugar())

	var called []int
	h.AddCleanup(func() error { called = append(called, 1); return nil })
	h.AddCleanup(func() error { called = append(called, 2); return errors.New("boom") })
	h.AddCleanup(func() error { called = append(called, 3); return nil })

	h.Shutdown()

	require.Equal([]int{3, 2, 1}, called)
}

func TestHandlerShutdownOnlyOnce(t *testing.T) {
	require := require.New(t)

	h := New(context.Background(), zap.NewNop().Sugar())

	callCount := 0
	h.AddCleanup(func() error { callCount++; return nil })

	h.Shutdown()
	h.Shutdown()
	h.Shutdown()

	require.Equal(1, callCount)
}

func TestHandlerStartRunsStartupTasks(t *testing.T) {
	require := require.New(t)

	h := New(context.Background(), zap.NewNop().Sugar())

	var ran []string
	h.OnStartup("a", func() { ran = append(ran, "a") })
	h.OnStartup("b", func() { ran = append(ran, "b") })

	h.Start()

	require.Equal([]string{"a", "b"}, ran)
}
