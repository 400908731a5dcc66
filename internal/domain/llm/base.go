package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"homey-assistant-golang/constants"
	"homey-assistant-golang/internal/domain/llm/eino_llm"
)

// LLMProvider 大语言模型接口，使用Eino原生消息类型
type LLMProvider interface {
	// ResponseWithContext 流式响应，ctx取消时中止生成
	// dialogue为完整对话历史，functions为可用工具
	ResponseWithContext(ctx context.Context, sessionID string, dialogue []*schema.Message, functions []*schema.ToolInfo) chan *schema.Message

	// GetModelInfo 获取模型元信息
	GetModelInfo() map[string]interface{}
}

// GetLLMProvider 创建LLM实例
// google/openai/ollama统一走Eino的ChatModel实现
func GetLLMProvider(providerName string, config map[string]interface{}) (LLMProvider, error) {
	switch providerName {
	case constants.LlmTypeGoogle, constants.LlmTypeOpenai, constants.LlmTypeOllama:
		provider, err := eino_llm.NewEinoLLMProvider(providerName, config)
		if err != nil {
			return nil, fmt.Errorf("创建Eino LLM提供者失败: %v", err)
		}
		return provider, nil
	}
	return nil, fmt.Errorf("不支持的LLM提供商: %s", providerName)
}
