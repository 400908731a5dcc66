package chat

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"homey-assistant-golang/internal/domain/llm"
	llm_common "homey-assistant-golang/internal/domain/llm/common"
	llm_memory "homey-assistant-golang/internal/domain/llm/memory"
	"homey-assistant-golang/internal/domain/mcp"
	"homey-assistant-golang/internal/util"
	log "homey-assistant-golang/logger"
)

// nestKey 工具调用后的二次请求在ctx里带的嵌套层数
type nestKey struct{}

type LLMQueueItem struct {
	ctx                 context.Context
	requestEinoMessages []*schema.Message
	responseChan        chan llm_common.LLMResponseStruct
	onEndFunc           func(err error)
}

// LLMManager 消费LLM响应队列: 文本句子送TTS，工具调用执行后带结果再问一轮
type LLMManager struct {
	sessionID   string
	llmProvider llm.LLMProvider
	memory      *llm_memory.Memory
	ttsManager  *TTSManager

	maxToolSteps   int
	maxRemoteCalls int

	llmResponseQueue *util.Queue[LLMQueueItem]
}

func NewLLMManager(sessionID string, llmProvider llm.LLMProvider, memory *llm_memory.Memory, ttsManager *TTSManager, maxToolSteps, maxRemoteCalls int) *LLMManager {
	return &LLMManager{
		sessionID:        sessionID,
		llmProvider:      llmProvider,
		memory:           memory,
		ttsManager:       ttsManager,
		maxToolSteps:     maxToolSteps,
		maxRemoteCalls:   maxRemoteCalls,
		llmResponseQueue: util.NewQueue[LLMQueueItem](10),
	}
}

// Start 启动队列消费循环，阻塞到ctx取消
func (l *LLMManager) Start(ctx context.Context) {
	for {
		item, err := l.llmResponseQueue.Pop(ctx, 0)
		if err != nil {
			if err == util.ErrQueueCtxDone {
				return
			}
			continue
		}

		_, err = l.handleLLMResponse(item.ctx, item.requestEinoMessages, item.responseChan)
		if item.onEndFunc != nil {
			item.onEndFunc(err)
		}
	}
}

func (l *LLMManager) ClearLLMResponseQueue() {
	l.llmResponseQueue.Clear()
}

// DoLLmRequest 发起一轮LLM请求
// isSync时在当前goroutine处理响应，否则入队异步处理
func (l *LLMManager) DoLLmRequest(ctx context.Context, requestEinoMessages []*schema.Message, einoTools []*schema.ToolInfo, isSync bool) error {
	log.Ctx(ctx).Debugf("发起LLM请求, 消息数: %d, 工具数: %d", len(requestEinoMessages), len(einoTools))

	responseSentences, err := llm.HandleLLMWithContextAndTools(ctx, l.llmProvider, requestEinoMessages, einoTools, l.sessionID)
	if err != nil {
		return fmt.Errorf("发起LLM请求失败: %v", err)
	}

	if isSync {
		_, err := l.handleLLMResponse(ctx, requestEinoMessages, responseSentences)
		return err
	}

	item := LLMQueueItem{
		ctx:                 ctx,
		requestEinoMessages: requestEinoMessages,
		responseChan:        responseSentences,
	}
	if err := l.llmResponseQueue.Push(item); err != nil {
		log.Warnf("llmResponseQueue 已满或已关闭, 丢弃消息")
		return fmt.Errorf("llmResponseQueue 已满或已关闭")
	}
	return nil
}

// handleLLMResponse 消费一轮LLM分句输出
func (l *LLMManager) handleLLMResponse(ctx context.Context, requestEinoMessages []*schema.Message, llmResponseChannel chan llm_common.LLMResponseStruct) (bool, error) {
	select {
	case <-ctx.Done():
		return false, nil
	default:
	}

	var toolCalls []schema.ToolCall
	var fullText bytes.Buffer

	for {
		select {
		case <-ctx.Done():
			log.Ctx(ctx).Debugf("上下文已取消，停止处理LLM响应")
			return false, nil
		case llmResponse, ok := <-llmResponseChannel:
			if !ok {
				log.Ctx(ctx).Debugf("LLM响应通道已关闭")
				return true, nil
			}

			if len(llmResponse.ToolCalls) > 0 {
				toolCalls = append(toolCalls, llmResponse.ToolCalls...)
			}

			if llmResponse.Text != "" {
				if err := l.ttsManager.handleTextResponse(ctx, llmResponse, true); err != nil {
					return true, err
				}
				fullText.WriteString(llmResponse.Text)
			}

			if llmResponse.IsEnd {
				// 本轮完成，写记忆
				strFullText := fullText.String()
				if strFullText != "" {
					l.memory.AddMessage(ctx, schema.Assistant, strFullText)
				}

				if len(toolCalls) > 0 {
					nest := 1
					if v, ok := ctx.Value(nestKey{}).(int); ok {
						nest = v
					}
					if nest >= l.maxToolSteps {
						log.Ctx(ctx).Warnf("工具调用层数达到上限 %d, 停止继续调用", l.maxToolSteps)
						return true, nil
					}
					lctx := context.WithValue(ctx, nestKey{}, nest+1)
					if _, err := l.handleToolCallResponse(lctx, requestEinoMessages, toolCalls); err != nil {
						return true, fmt.Errorf("处理工具调用失败: %v", err)
					}
				}
				return true, nil
			}
		}
	}
}

// handleToolCallResponse 执行工具并带结果再问一轮
func (l *LLMManager) handleToolCallResponse(ctx context.Context, requestEinoMessages []*schema.Message, toolCalls []schema.ToolCall) (bool, error) {
	if len(toolCalls) == 0 {
		return false, nil
	}

	log.Ctx(ctx).Infof("处理 %d 个工具调用", len(toolCalls))

	if len(toolCalls) > l.maxRemoteCalls {
		log.Ctx(ctx).Warnf("工具调用数 %d 超过上限 %d, 截断", len(toolCalls), l.maxRemoteCalls)
		toolCalls = toolCalls[:l.maxRemoteCalls]
	}

	toolManager := mcp.GetToolManager()

	var invokeToolSuccess bool
	var hasToolThatShouldNotReturn bool
	msgList := make([]*schema.Message, 0)

	for _, toolCall := range toolCalls {
		toolName := toolCall.Function.Name
		invokable, ok := toolManager.GetToolByName(toolName)
		if !ok || invokable == nil {
			log.Ctx(ctx).Errorf("未找到工具: %s", toolName)
			continue
		}

		log.Ctx(ctx).Infof("工具调用: %s, 参数: %s", toolName, toolCall.Function.Arguments)
		startTs := time.Now().UnixMilli()

		result, err := invokable.InvokableRun(ctx, toolCall.Function.Arguments)
		if err != nil {
			log.Ctx(ctx).Errorf("工具 %s 调用失败: %v", toolName, err)
			continue
		}
		invokeToolSuccess = true
		log.Ctx(ctx).Infof("工具 %s 调用完成, 耗时 %d ms", toolName, time.Now().UnixMilli()-startTs)

		if !mcp.CheckToolShouldReturnToLLM(invokable) {
			log.Ctx(ctx).Infof("工具 %s 不回传结果给LLM", toolName)
			hasToolThatShouldNotReturn = true
			continue
		}

		assistantMsg := &schema.Message{
			Role:      schema.Assistant,
			ToolCalls: []schema.ToolCall{toolCall},
		}
		toolMsg := &schema.Message{
			Role:       schema.Tool,
			ToolCallID: toolCall.ID,
			Content:    result,
		}
		msgList = append(msgList, assistantMsg, toolMsg)
		l.memory.AddRawMessage(ctx, *assistantMsg)
		l.memory.AddRawMessage(ctx, *toolMsg)
	}

	if invokeToolSuccess {
		if hasToolThatShouldNotReturn && len(msgList) == 0 {
			log.Ctx(ctx).Infof("所有工具都不回传结果, 跳过后续LLM处理")
			return true, nil
		}
		if len(msgList) > 0 {
			// 带工具结果再问一轮，不再带tools避免无限调用链
			requestEinoMessages = append(requestEinoMessages, msgList...)
			if err := l.DoLLmRequest(ctx, requestEinoMessages, nil, true); err != nil {
				return true, err
			}
		}
	}

	return invokeToolSuccess, nil
}
