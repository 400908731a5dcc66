package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePushPop(t *testing.T) {
	q := NewQueue[int](4)
	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))

	v, err := q.Pop(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = q.Pop(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestQueueNonBlockingPop(t *testing.T) {
	q := NewQueue[string](1)
	_, err := q.Pop(context.Background(), -1)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestQueuePopTimeout(t *testing.T) {
	q := NewQueue[int](1)
	start := time.Now()
	_, err := q.Pop(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrQueueTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestQueuePopCtxCancel(t *testing.T) {
	q := NewQueue[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := q.Pop(ctx, 0)
	assert.ErrorIs(t, err, ErrQueueCtxDone)
}

func TestQueueClear(t *testing.T) {
	q := NewQueue[int](4)
	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))
	q.Clear()

	_, err := q.Pop(context.Background(), -1)
	assert.ErrorIs(t, err, ErrQueueEmpty)

	// 清空后队列仍然可用
	require.NoError(t, q.Push(3))
	v, err := q.Pop(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestQueueClose(t *testing.T) {
	q := NewQueue[int](4)
	require.NoError(t, q.Push(1))
	q.Close()

	// 关闭后仍可取出剩余元素
	v, err := q.Pop(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = q.Pop(context.Background(), 0)
	assert.ErrorIs(t, err, ErrQueueClosed)

	assert.ErrorIs(t, q.Push(2), ErrQueueClosed)
}
