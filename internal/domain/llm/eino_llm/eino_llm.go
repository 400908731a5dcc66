package eino_llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"homey-assistant-golang/constants"
	log "homey-assistant-golang/logger"
)

// EinoLLMProvider 基于Eino框架的LLM实现
// google走Gemini的OpenAI兼容接口，openai/ollama用各自的组件
type EinoLLMProvider struct {
	chatModel    model.ToolCallingChatModel
	modelName    string
	maxTokens    int
	temperature  *float32
	streamable   bool
	providerType string
}

// NewEinoLLMProvider 创建Eino LLM实例
func NewEinoLLMProvider(providerType string, config map[string]interface{}) (*EinoLLMProvider, error) {
	modelName, _ := config["model_name"].(string)

	maxTokens := 500
	if mt, ok := config["max_tokens"].(int); ok {
		maxTokens = mt
	}

	streamable := true
	if s, ok := config["streamable"].(bool); ok {
		streamable = s
	}

	var temperature *float32
	if t, ok := config["temperature"].(float64); ok {
		temp := float32(t)
		temperature = &temp
	}

	var chatModel model.ToolCallingChatModel
	var err error

	switch providerType {
	case constants.LlmTypeGoogle:
		chatModel, err = createGoogleChatModel(config, temperature)
	case constants.LlmTypeOpenai:
		chatModel, err = createOpenAIChatModel(config, temperature)
	case constants.LlmTypeOllama:
		chatModel, err = createOllamaChatModel(config, temperature)
	default:
		return nil, fmt.Errorf("不支持的模型类型: %s", providerType)
	}
	if err != nil {
		return nil, err
	}

	return &EinoLLMProvider{
		chatModel:    chatModel,
		modelName:    modelName,
		maxTokens:    maxTokens,
		temperature:  temperature,
		streamable:   streamable,
		providerType: providerType,
	}, nil
}

// createGoogleChatModel Gemini走OpenAI兼容端点
func createGoogleChatModel(config map[string]interface{}, temperature *float32) (model.ToolCallingChatModel, error) {
	ctx := context.Background()

	modelName, _ := config["model_name"].(string)
	if modelName == "" {
		modelName = constants.DefaultLlmModel
	}

	apiKey, _ := config["api_key"].(string)
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Google LLM缺少api_key配置")
	}

	baseURL, _ := config["base_url"].(string)
	if baseURL == "" {
		baseURL = constants.GeminiOpenAIBaseURL
	}

	openaiConfig := &openai.ChatModelConfig{
		Model:       modelName,
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Temperature: temperature,
	}

	chatModel, err := openai.NewChatModel(ctx, openaiConfig)
	if err != nil {
		return nil, fmt.Errorf("创建Google ChatModel失败: %v", err)
	}

	log.Infof("成功创建Google ChatModel, 模型: %s", modelName)
	return chatModel, nil
}

// createOpenAIChatModel 创建OpenAI的ChatModel实现
func createOpenAIChatModel(config map[string]interface{}, temperature *float32) (model.ToolCallingChatModel, error) {
	ctx := context.Background()

	modelName, _ := config["model_name"].(string)
	if modelName == "" {
		modelName = constants.DefaultOpenAIModel
	}

	apiKey, _ := config["api_key"].(string)
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	openaiConfig := &openai.ChatModelConfig{
		Model:       modelName,
		APIKey:      apiKey,
		Temperature: temperature,
	}
	if baseURL, _ := config["base_url"].(string); baseURL != "" {
		openaiConfig.BaseURL = baseURL
	}

	chatModel, err := openai.NewChatModel(ctx, openaiConfig)
	if err != nil {
		return nil, fmt.Errorf("创建OpenAI ChatModel失败: %v", err)
	}

	log.Infof("成功创建OpenAI ChatModel, 模型: %s", modelName)
	return chatModel, nil
}

// createOllamaChatModel 创建Ollama的ChatModel实现
func createOllamaChatModel(config map[string]interface{}, temperature *float32) (model.ToolCallingChatModel, error) {
	ctx := context.Background()

	modelName, _ := config["model_name"].(string)
	if modelName == "" {
		modelName = constants.DefaultOllamaModel
	}

	baseURL, _ := config["base_url"].(string)
	if baseURL == "" {
		baseURL = constants.DefaultOllamaBaseURL
	}

	ollamaConfig := &ollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   modelName,
	}

	chatModel, err := ollama.NewChatModel(ctx, ollamaConfig)
	if err != nil {
		return nil, fmt.Errorf("创建Ollama ChatModel失败: %v", err)
	}

	log.Infof("成功创建Ollama ChatModel, 模型: %s", modelName)
	return chatModel, nil
}

// GetModelInfo 获取模型元信息
func (p *EinoLLMProvider) GetModelInfo() map[string]interface{} {
	info := map[string]interface{}{
		"model_name":    p.modelName,
		"max_tokens":    p.maxTokens,
		"streamable":    p.streamable,
		"provider_type": p.providerType,
		"framework":     "eino",
	}
	if p.temperature != nil {
		info["temperature"] = *p.temperature
	}
	return info
}

// ResponseWithContext 流式响应入口
func (p *EinoLLMProvider) ResponseWithContext(ctx context.Context, sessionID string, dialogue []*schema.Message, functions []*schema.ToolInfo) chan *schema.Message {
	responseChan := make(chan *schema.Message, 200)

	go func() {
		defer close(responseChan)

		log.Ctx(ctx).Debugf("LLM请求开始, type: %s, 消息数: %d, 工具数: %d", p.providerType, len(dialogue), len(functions))

		// WithTools返回新实例，不能写回p.chatModel，并发会话会互相覆盖
		chatModel := p.chatModel
		if len(functions) > 0 {
			var err error
			chatModel, err = chatModel.WithTools(functions)
			if err != nil {
				log.Ctx(ctx).Errorf("绑定工具失败: %v", err)
				return
			}
		}

		if p.streamable {
			p.streamResponse(ctx, chatModel, dialogue, responseChan)
		} else {
			message, err := chatModel.Generate(ctx, dialogue, model.WithMaxTokens(p.maxTokens))
			if err != nil {
				log.Ctx(ctx).Errorf("生成响应失败: %v", err)
				return
			}
			if message != nil {
				responseChan <- message
			}
		}
	}()

	return responseChan
}

// streamResponse 处理流式分片
// 工具调用参数按分片累积，凑成合法JSON后整体下发
func (p *EinoLLMProvider) streamResponse(ctx context.Context, chatModel model.ToolCallingChatModel, dialogue []*schema.Message, responseChan chan *schema.Message) {
	streamReader, err := chatModel.Stream(ctx, dialogue, model.WithMaxTokens(p.maxTokens))
	if err != nil {
		log.Ctx(ctx).Errorf("流式调用失败, 回退Generate: %v", err)
		message, genErr := chatModel.Generate(ctx, dialogue, model.WithMaxTokens(p.maxTokens))
		if genErr != nil {
			log.Ctx(ctx).Errorf("生成响应失败: %v", genErr)
			return
		}
		if message != nil {
			responseChan <- message
		}
		return
	}
	defer streamReader.Close()

	var currentToolCall *schema.ToolCall

	for {
		message, err := streamReader.Recv()
		if err == io.EOF {
			// 流结束时把挂起的工具调用冲刷出去
			if currentToolCall != nil {
				responseChan <- &schema.Message{
					Role:      schema.Assistant,
					ToolCalls: []schema.ToolCall{*currentToolCall},
				}
			}
			return
		}
		if err != nil {
			log.Ctx(ctx).Errorf("接收流式响应失败: %v", err)
			return
		}
		if message == nil {
			continue
		}

		if len(message.ToolCalls) > 0 {
			toolCall := message.ToolCalls[0]
			if toolCall.Function.Name != "" {
				// 新工具调用开始，先冲刷上一个
				if currentToolCall != nil {
					responseChan <- &schema.Message{
						Role:      schema.Assistant,
						ToolCalls: []schema.ToolCall{*currentToolCall},
					}
				}
				tc := toolCall
				currentToolCall = &tc
			} else if currentToolCall != nil {
				currentToolCall.Function.Arguments += toolCall.Function.Arguments
			}

			if currentToolCall != nil && isValidJSON(currentToolCall.Function.Arguments) {
				responseChan <- &schema.Message{
					Role:      schema.Assistant,
					ToolCalls: []schema.ToolCall{*currentToolCall},
				}
				currentToolCall = nil
			}
		} else if message.Content != "" {
			message.ToolCalls = nil
			select {
			case responseChan <- message:
			case <-ctx.Done():
				return
			}
		}
	}
}

// isValidJSON 检查字符串是否是完整的JSON对象
func isValidJSON(str string) bool {
	var js map[string]interface{}
	return json.Unmarshal([]byte(str), &js) == nil
}
