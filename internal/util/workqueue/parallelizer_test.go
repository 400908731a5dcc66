package workqueue

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeUntil(t *testing.T) {
	var sum int64
	ParallelizeUntil(context.Background(), 8, 1000, func(piece int) {
		atomic.AddInt64(&sum, int64(piece))
	})
	assert.Equal(t, int64(1000*999/2), sum)
}

func TestParallelizeUntilFewerPiecesThanWorkers(t *testing.T) {
	var count int64
	ParallelizeUntil(context.Background(), 16, 3, func(piece int) {
		atomic.AddInt64(&count, 1)
	})
	assert.Equal(t, int64(3), count)
}

func TestParallelizeUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var count int64
	ParallelizeUntil(ctx, 4, 1000, func(piece int) {
		atomic.AddInt64(&count, 1)
	})
	// 已取消的上下文下至多处理少量已领取的任务
	assert.Less(t, count, int64(1000))
}

func TestParallelizeUntilZeroPieces(t *testing.T) {
	called := false
	ParallelizeUntil(context.Background(), 4, 0, func(piece int) {
		called = true
	})
	assert.False(t, called)
}
