package chdiff_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"chdiff/internal/chdiff"
)

func TestRunBatch(t *testing.T) {
	dirs := []string{"one", "two", "three", "four", "five"}

	t.Run("keeps argument order", func(t *testing.T) {
		outcomes := chdiff.RunBatch(context.Background(), 3, dirs, func(_ context.Context, dir string) (int, error) {
			return len(dir), nil
		})
		for i, o := range outcomes {
			assert.Equal(t, dirs[i], o.Dir)
			assert.Equal(t, len(dirs[i]), o.Result)
			assert.NoError(t, o.Err)
		}
	})

	t.Run("failures do not stop other directories", func(t *testing.T) {
		var calls atomic.Int32
		boom := errors.New("boom")
		outcomes := chdiff.RunBatch(context.Background(), 1, dirs, func(_ context.Context, dir string) (string, error) {
			calls.Add(1)
			if dir == "two" {
				return "", boom
			}
			return dir, nil
		})
		assert.EqualValues(t, len(dirs), calls.Load())
		assert.Equal(t, 1, chdiff.FailedCount(outcomes))
		assert.ErrorIs(t, outcomes[1].Err, boom)
		assert.Equal(t, "three", outcomes[2].Result)
	})

	t.Run("respects the parallelism bound", func(t *testing.T) {
		var inFlight, peak atomic.Int32
		chdiff.RunBatch(context.Background(), 2, dirs, func(_ context.Context, _ string) (struct{}, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			inFlight.Add(-1)
			return struct{}{}, nil
		})
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("cancelled context skips remaining directories", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var calls atomic.Int32
		outcomes := chdiff.RunBatch(ctx, 2, dirs, func(_ context.Context, _ string) (int, error) {
			calls.Add(1)
			return 0, nil
		})
		assert.Zero(t, calls.Load())
		assert.Equal(t, len(dirs), chdiff.FailedCount(outcomes))
		assert.ErrorIs(t, outcomes[0].Err, context.Canceled)
	})
}
