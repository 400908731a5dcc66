package memory

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)
	m.SetSystemPrompt(ctx, "你是语音助手")
	m.AddMessage(ctx, schema.User, "开灯")
	m.AddMessage(ctx, schema.Assistant, "好的")

	messages := m.GetMessagesForLLM(ctx)
	require.Len(t, messages, 3)
	assert.Equal(t, schema.System, messages[0].Role)
	assert.Equal(t, "你是语音助手", messages[0].Content)
	assert.Equal(t, schema.User, messages[1].Role)
	assert.Equal(t, schema.Assistant, messages[2].Role)
}

func TestMemoryTrimsOldest(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)
	m.AddMessage(ctx, schema.User, "第一条")
	m.AddMessage(ctx, schema.Assistant, "第二条")
	m.AddMessage(ctx, schema.User, "第三条")

	assert.Equal(t, 2, m.Len())
	messages := m.GetMessagesForLLM(ctx)
	require.Len(t, messages, 2)
	assert.Equal(t, "第二条", messages[0].Content)
	assert.Equal(t, "第三条", messages[1].Content)
}

func TestMemoryUnlimited(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	for i := 0; i < 100; i++ {
		m.AddMessage(ctx, schema.User, "消息")
	}
	assert.Equal(t, 100, m.Len())
}

func TestMemoryRawMessage(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)
	m.AddRawMessage(ctx, schema.Message{
		Role:       schema.Tool,
		ToolCallID: "call-1",
		Content:    "{\"ok\":true}",
	})

	messages := m.GetMessagesForLLM(ctx)
	require.Len(t, messages, 1)
	assert.Equal(t, "call-1", messages[0].ToolCallID)
}

func TestMemoryReset(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)
	m.SetSystemPrompt(ctx, "prompt")
	m.AddMessage(ctx, schema.User, "hello")
	m.Reset(ctx)

	assert.Equal(t, 0, m.Len())
	messages := m.GetMessagesForLLM(ctx)
	require.Len(t, messages, 1, "系统prompt在重置后保留")
	assert.Equal(t, schema.System, messages[0].Role)
}

func TestMemorySnapshotIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)
	m.AddMessage(ctx, schema.User, "原始内容")

	messages := m.GetMessagesForLLM(ctx)
	messages[0].Content = "改掉了"

	again := m.GetMessagesForLLM(ctx)
	assert.Equal(t, "原始内容", again[0].Content, "返回的是拷贝，不影响内部状态")
}
