package llm

import (
	"bytes"
	"context"
	"time"

	"github.com/cloudwego/eino/schema"

	"homey-assistant-golang/internal/domain/llm/common"
	log "homey-assistant-golang/logger"
)

// HandleLLMWithContextAndTools 消费LLM流式输出并分句
// 文本按句切分后逐句下发，方便TTS尽早开播; 工具调用原样透传
func HandleLLMWithContextAndTools(ctx context.Context, llmProvider LLMProvider, dialogue []*schema.Message, tools []*schema.ToolInfo, sessionID string) (chan common.LLMResponseStruct, error) {
	msgChan := llmProvider.ResponseWithContext(ctx, sessionID, dialogue, tools)

	sentenceChannel := make(chan common.LLMResponseStruct, 2)
	startTs := time.Now().UnixMilli()

	go func() {
		defer close(sentenceChannel)

		var buffer bytes.Buffer
		fullText := ""
		isFirst := true
		var firstFrame bool

		emit := func(resp common.LLMResponseStruct) bool {
			select {
			case sentenceChannel <- resp:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				log.Ctx(ctx).Debugf("上下文已取消, 停止LLM响应处理: %v", ctx.Err())
				return
			case message, ok := <-msgChan:
				if !ok {
					// 流结束，剩余内容作为最后一句
					remaining := buffer.String()
					if remaining != "" {
						fullText += remaining
					}
					emit(common.LLMResponseStruct{Text: remaining, IsStart: isFirst, IsEnd: true})
					log.Ctx(ctx).Debugf("LLM响应处理完成, 全文: %s", fullText)
					return
				}
				if message == nil {
					continue
				}

				if message.Content != "" {
					buffer.WriteString(message.Content)
					if containsSentenceSeparator(message.Content, isFirst) {
						sentences, remaining := extractSmartSentences(buffer.String(), 5, 100, isFirst)
						for _, sentence := range sentences {
							if sentence == "" {
								continue
							}
							if !firstFrame {
								firstFrame = true
								log.Ctx(ctx).Debugf("耗时统计: llm首句 %d ms", time.Now().UnixMilli()-startTs)
							}
							fullText += sentence
							if !emit(common.LLMResponseStruct{Text: sentence, IsStart: isFirst, IsEnd: false}) {
								return
							}
							isFirst = false
						}
						buffer.Reset()
						buffer.WriteString(remaining)
					}
				}

				if len(message.ToolCalls) > 0 {
					log.Ctx(ctx).Debugf("收到工具调用: %+v", message.ToolCalls)
					if !emit(common.LLMResponseStruct{ToolCalls: message.ToolCalls, IsStart: isFirst, IsEnd: false}) {
						return
					}
				}
			}
		}
	}()

	return sentenceChannel, nil
}

// ConvertMCPToolsToEinoTools 把MCP工具集合转成Eino的ToolInfo列表
func ConvertMCPToolsToEinoTools(ctx context.Context, mcpTools map[string]interface{}) ([]*schema.ToolInfo, error) {
	var einoTools []*schema.ToolInfo

	for toolName, mcpTool := range mcpTools {
		invokableTool, ok := mcpTool.(interface {
			Info(context.Context) (*schema.ToolInfo, error)
		})
		if !ok {
			log.Warnf("工具 %s 不支持Info接口, 跳过", toolName)
			continue
		}
		toolInfo, err := invokableTool.Info(ctx)
		if err != nil {
			log.Errorf("获取工具 %s 信息失败: %v", toolName, err)
			continue
		}
		einoTools = append(einoTools, toolInfo)
	}

	return einoTools, nil
}
