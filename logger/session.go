package logger

import (
	"context"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// 会话标签通过 context 显式传递，而不是进程级全局变量，
// 这样同一进程内的多段处理流程可以各自携带自己的标签。
type sessionKey struct{}

// NewSessionID 生成一个简短的会话标签
func NewSessionID() string {
	return uuid.New().String()[:8]
}

// WithSessionID 把会话标签写入 context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionID 从 context 中取会话标签，未设置时返回空串
func SessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionKey{}).(string); ok {
		return id
	}
	return ""
}

// Ctx 返回带调用者信息的日志入口，context 中有会话标签时一并带上
func Ctx(ctx context.Context) *log.Entry {
	entry := addCallerField()
	if id := SessionID(ctx); id != "" {
		entry = entry.WithField("session", id)
	}
	return entry
}
