package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	log "homey-assistant-golang/logger"
)

// LocalToolRegistry 本地工具注册表
type LocalToolRegistry struct {
	tools map[string]tool.InvokableTool
}

var localRegistry *LocalToolRegistry

func init() {
	localRegistry = &LocalToolRegistry{
		tools: make(map[string]tool.InvokableTool),
	}

	registerBuiltinTools()
}

// registerBuiltinTools 注册所有本地工具
func registerBuiltinTools() {
	localRegistry.tools["end_conversation"] = &EndConversationTool{}

	log.Info("已注册本地MCP工具: end_conversation")
}

// GetLocalTools 获取所有本地工具
func GetLocalTools() map[string]tool.InvokableTool {
	return localRegistry.tools
}

// CheckToolShouldReturnToLLM 检查工具是否需要回传结果给LLM
// 默认为true，只有实现了LocalToolInfo接口且ShouldReturnToLLM返回false的工具才不回传
func CheckToolShouldReturnToLLM(tool tool.InvokableTool) bool {
	if localTool, ok := tool.(LocalToolInfo); ok {
		return localTool.ShouldReturnToLLM()
	}
	return true
}

// LocalToolInfo 本地工具信息，扩展tool.InvokableTool接口
type LocalToolInfo interface {
	tool.InvokableTool
	// ShouldReturnToLLM 判断工具执行结果是否需要回传给LLM
	ShouldReturnToLLM() bool
}

// EndConversationTool 结束对话工具
// LLM在用户道别或要求停止时调用，由会话层挂断当前语音会话
type EndConversationTool struct{}

// Info 获取工具信息，实现BaseTool接口
// 描述面向LLM，用英文
func (t *EndConversationTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "end_conversation",
		Desc: "End the current voice conversation and disconnect. Use when the user says goodbye or explicitly asks to stop talking.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"reason": {
				Type: schema.String,
				Desc: "Short reason for ending the conversation",
			},
		}),
	}, nil
}

// ShouldReturnToLLM 结束对话后会话已经关闭，结果不回传给LLM
func (t *EndConversationTool) ShouldReturnToLLM() bool {
	return false
}

// InvokableRun 执行工具，实现InvokableTool接口
func (t *EndConversationTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	log.Infof("执行结束对话工具，参数: %s", argumentsInJSON)

	var args struct {
		Reason string `json:"reason,omitempty"`
	}
	if argumentsInJSON != "" && argumentsInJSON != "{}" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
			return "", fmt.Errorf("解析工具参数失败: %v", err)
		}
	}

	reason := args.Reason
	if reason == "" {
		reason = "用户请求结束对话"
	}

	// 通过函数指针通知会话层，避免和会话包循环依赖
	if endConversationFunc == nil {
		return "", fmt.Errorf("结束对话功能未初始化")
	}
	if err := endConversationFunc(reason); err != nil {
		log.Errorf("结束对话失败: %v", err)
		return "", fmt.Errorf("结束对话失败: %v", err)
	}

	log.Infof("对话已结束，原因: %s", reason)

	result := map[string]interface{}{
		"success": true,
		"reason":  reason,
		"message": "对话已结束",
	}
	resultJSON, _ := json.Marshal(result)
	return string(resultJSON), nil
}

// 使用函数指针避免循环依赖
var endConversationFunc func(reason string) error

// SetEndConversationFunc 设置结束对话回调，由会话层调用
func SetEndConversationFunc(f func(reason string) error) {
	endConversationFunc = f
	log.Info("已设置结束对话回调")
}
