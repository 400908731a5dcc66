package memory

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// Memory 会话内的对话记忆，进程内存储
// 系统prompt固定在最前，历史消息按时间顺序排列
type Memory struct {
	mu           sync.RWMutex
	systemPrompt string
	messages     []schema.Message
	maxMessages  int
}

// NewMemory 创建记忆体，maxMessages<=0时不限制条数
func NewMemory(maxMessages int) *Memory {
	return &Memory{maxMessages: maxMessages}
}

// SetSystemPrompt 设置系统prompt
func (m *Memory) SetSystemPrompt(ctx context.Context, prompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systemPrompt = prompt
}

// AddMessage 追加一条对话消息，超出上限时丢弃最旧的
func (m *Memory) AddMessage(ctx context.Context, role schema.RoleType, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, schema.Message{Role: role, Content: content})
	if m.maxMessages > 0 && len(m.messages) > m.maxMessages {
		m.messages = m.messages[len(m.messages)-m.maxMessages:]
	}
}

// AddRawMessage 追加一条完整消息，用于工具调用及其结果
func (m *Memory) AddRawMessage(ctx context.Context, msg schema.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, msg)
	if m.maxMessages > 0 && len(m.messages) > m.maxMessages {
		m.messages = m.messages[len(m.messages)-m.maxMessages:]
	}
}

// GetMessagesForLLM 返回系统prompt加历史消息，按时间顺序
func (m *Memory) GetMessagesForLLM(ctx context.Context) []*schema.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messages := make([]*schema.Message, 0, len(m.messages)+1)
	if m.systemPrompt != "" {
		messages = append(messages, &schema.Message{Role: schema.System, Content: m.systemPrompt})
	}
	for i := range m.messages {
		msg := m.messages[i]
		messages = append(messages, &msg)
	}
	return messages
}

// Reset 清空对话历史，保留系统prompt
func (m *Memory) Reset(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

// Len 当前历史消息条数
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}
