package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amscore/gcodeslots/internal/observability"
)

func TestNewLoggerRespectsLevel(t *testing.T) {
	logger := observability.NewLogger("warn", "text", "stdout")
	require.NotNil(t, logger)
	require.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}

func TestSlogJSONHandlerRendersAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("analyzed file", "layers", 42)
	require.Contains(t, buf.String(), `"layers":42`)
}

func TestRegistryRecordsOperations(t *testing.T) {
	reg, err := observability.NewRegistry()
	require.NoError(t, err)
	defer func() { _ = reg.Shutdown(context.Background()) }()

	ctx := context.Background()
	reg.Metrics.RecordOperation(ctx, "analyze", observability.StatusOK, 10*time.Millisecond)
	reg.Metrics.RecordOperation(ctx, "analyze", observability.StatusError, 5*time.Millisecond)
	reg.Metrics.RecordCacheHit(ctx)
	reg.Metrics.RecordCacheMiss(ctx)
}

func TestDispatcher_DeliversToSubscribers(t *testing.T) {
	d := observability.NewDispatcher()

	sub := d.Subscribe()

	d.Emit(observability.Event{Kind: observability.EventParseProgress, File: "a.gcode", LayersSoFar: 3})

	select {
	case ev := <-sub:
		require.Equal(t, observability.EventParseProgress, ev.Kind)
		require.Equal(t, "a.gcode", ev.File)
		require.Equal(t, 3, ev.LayersSoFar)
	default:
		t.Fatal("expected an event to be delivered")
	}
}

func TestDispatcher_UnsubscribeStopsDelivery(t *testing.T) {
	d := observability.NewDispatcher()

	sub := d.Subscribe()
	d.Unsubscribe(sub)

	d.Emit(observability.Event{Kind: observability.EventMergeApplied, TargetColor: "T0"})

	_, ok := <-sub
	require.False(t, ok, "channel should be closed after Unsubscribe")
}

func TestDispatcher_DropsWhenSubscriberBufferFull(t *testing.T) {
	d := observability.NewDispatcher()

	sub := d.Subscribe()

	for i := 0; i < 32; i++ {
		d.Emit(observability.Event{Kind: observability.EventOptimizeComplete, RequiredSlots: i})
	}

	count := 0
	for {
		select {
		case <-sub:
			count++
		default:
			require.Greater(t, count, 0)
			require.LessOrEqual(t, count, 16)

			return
		}
	}
}
