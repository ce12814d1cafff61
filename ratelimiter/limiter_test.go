package ratelimiter

import (
	"context"
	"testing"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"
	"github.com/stretchr/testify/require"
)

func TestDelay_DecreasesAfterThreeSuccesses(t *testing.T) {
	l := New(8, logger.NOP, stats.NOP)
	before := l.DelayFor("query")

	for i := 0; i < 3; i++ {
		release, err := l.Acquire(context.Background(), "query")
		require.NoError(t, err)
		release(Success)
	}

	after := l.DelayFor("query")
	require.LessOrEqual(t, after, before)
}

func TestDelay_IncreasesAfterFailure(t *testing.T) {
	l := New(8, logger.NOP, stats.NOP)
	before := l.DelayFor("query")

	release, err := l.Acquire(context.Background(), "query")
	require.NoError(t, err)
	release(Failure)

	after := l.DelayFor("query")
	require.GreaterOrEqual(t, after, before)
}

func TestStressMultiplier_BoundedAndAdjustable(t *testing.T) {
	l := New(8, logger.NOP, stats.NOP)
	require.Equal(t, 1.0, l.StressMultiplier())

	for i := 0; i < 10; i++ {
		l.ReportStress()
	}
	require.Equal(t, 16.0, l.StressMultiplier())

	for i := 0; i < 10; i++ {
		l.ReportCalm()
	}
	require.Equal(t, 1.0, l.StressMultiplier())
}

func TestAcquire_BoundsInFlightPerKind(t *testing.T) {
	l := New(1, logger.NOP, stats.NOP)

	release1, err := l.Acquire(context.Background(), "journey")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50_000_000) // 50ms
	defer cancel()
	_, err = l.Acquire(ctx, "journey")
	require.Error(t, err)

	release1(Success)
}
