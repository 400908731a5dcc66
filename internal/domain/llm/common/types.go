package common

import (
	"github.com/cloudwego/eino/schema"
)

// LLMResponseStruct LLM分句后的流式输出单元
// Text与ToolCalls互斥，IsEnd时Text可能为空
type LLMResponseStruct struct {
	Text      string            `json:"text,omitempty"`
	IsStart   bool              `json:"is_start"`
	IsEnd     bool              `json:"is_end"`
	ToolCalls []schema.ToolCall `json:"tool_calls,omitempty"`
}
