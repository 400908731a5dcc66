package chat

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"homey-assistant-golang/internal/domain/llm"
	llm_memory "homey-assistant-golang/internal/domain/llm/memory"
	"homey-assistant-golang/internal/domain/mcp"
	"homey-assistant-golang/internal/domain/stt"
	stt_types "homey-assistant-golang/internal/domain/stt/types"
	"homey-assistant-golang/internal/domain/tts"
	"homey-assistant-golang/internal/domain/vad/inter"
	"homey-assistant-golang/internal/util"
	log "homey-assistant-golang/logger"
)

const (
	// 默认静音多久算一句话结束
	defaultMaxSilenceMs = 800
	// 一次识别会话的最大时长
	maxUtteranceDuration = 60 * time.Second
)

// ChatManager 会话内的对话管线
// 入站音频经VAD断句后送STT，识别文本走LLM+工具，回复分句送TTS推回房间
type ChatManager struct {
	sessionID string

	ctx    context.Context
	cancel context.CancelFunc

	vad         inter.VAD
	sttProvider stt.SttProvider
	memory      *llm_memory.Memory

	llmManager *LLMManager
	ttsManager *TTSManager

	audioInQueue *util.Queue[[]float32]
	maxSilenceMs int64

	// 播报打断: 新语音到来时取消当前回复
	replyMu     sync.Mutex
	replyCancel context.CancelFunc
}

type ChatManagerOption func(*ChatManager)

// WithMaxSilenceDuration 设置断句静音阈值
func WithMaxSilenceDuration(ms int64) ChatManagerOption {
	return func(c *ChatManager) {
		if ms > 0 {
			c.maxSilenceMs = ms
		}
	}
}

func NewChatManager(pctx context.Context, sessionID string, vadInst inter.VAD, sttProvider stt.SttProvider, ttsProvider tts.TTSProvider, llmManagerFactory func(*TTSManager) *LLMManager, audioOut AudioOut, options ...ChatManagerOption) *ChatManager {
	ctx, cancel := context.WithCancel(pctx)

	ttsManager := NewTTSManager(ttsProvider, audioOut)
	llmManager := llmManagerFactory(ttsManager)

	cm := &ChatManager{
		sessionID:    sessionID,
		ctx:          ctx,
		cancel:       cancel,
		vad:          vadInst,
		sttProvider:  sttProvider,
		memory:       llmManager.memory,
		llmManager:   llmManager,
		ttsManager:   ttsManager,
		audioInQueue: util.NewQueue[[]float32](200),
		maxSilenceMs: defaultMaxSilenceMs,
	}
	for _, option := range options {
		option(cm)
	}
	return cm
}

// Start 启动管线的三个循环
func (c *ChatManager) Start() {
	go c.ttsManager.Start(c.ctx)
	go c.llmManager.Start(c.ctx)
	go c.listenLoop(c.ctx)
}

// Close 停止管线
func (c *ChatManager) Close() {
	c.abortCurrentReply()
	c.cancel()
	c.audioInQueue.Close()
}

// PushAudioFrame 房间传输层把解码后的一帧PCM送进来
func (c *ChatManager) PushAudioFrame(pcm []float32) {
	if err := c.audioInQueue.Push(pcm); err != nil {
		log.Debugf("音频输入队列已关闭, 丢弃一帧")
	}
}

// listenLoop VAD断句循环
// 检出语音起点时打断当前播报并开启STT会话，静音超阈值后取最终识别结果开启对话
func (c *ChatManager) listenLoop(ctx context.Context) {
	var (
		haveVoice     bool
		lastVoiceTs   int64
		audioStream   chan []float32
		resultChan    chan stt_types.StreamingResult
		utteranceCtx  context.Context
		utteranceStop context.CancelFunc
	)

	endUtterance := func() {
		if audioStream != nil {
			close(audioStream)
			audioStream = nil
		}

		// 输入已关闭，等STT冲刷出最终结果
		var finalText string
		if resultChan != nil {
			for result := range resultChan {
				if result.IsFinal {
					finalText += result.Text
				}
			}
			resultChan = nil
		}
		if utteranceStop != nil {
			utteranceStop()
			utteranceStop = nil
		}

		haveVoice = false
		if err := c.vad.Reset(); err != nil {
			log.Warnf("VAD重置失败: %v", err)
		}

		if finalText != "" {
			log.Ctx(ctx).Infof("识别结果: %s", finalText)
			c.startChat(finalText)
		}
	}

	for {
		frame, err := c.audioInQueue.Pop(ctx, 0)
		if err != nil {
			if err == util.ErrQueueCtxDone || err == util.ErrQueueClosed {
				return
			}
			continue
		}

		isVoice, err := c.vad.IsVAD(frame)
		if err != nil {
			log.Errorf("VAD检测失败: %v", err)
			continue
		}

		if !haveVoice {
			if !isVoice {
				continue
			}
			// 语音起点: 打断播报，开STT会话
			log.Ctx(ctx).Debugf("检测到语音起点")
			c.abortCurrentReply()

			utteranceCtx, utteranceStop = context.WithTimeout(ctx, maxUtteranceDuration)
			audioStream = make(chan []float32, 100)
			resultChan, err = c.sttProvider.StreamingRecognize(utteranceCtx, audioStream)
			if err != nil {
				log.Errorf("启动STT识别失败: %v", err)
				utteranceStop()
				utteranceStop = nil
				audioStream = nil
				continue
			}
			haveVoice = true
			lastVoiceTs = time.Now().UnixMilli()
		}

		select {
		case audioStream <- frame:
		default:
			log.Debugf("STT输入缓冲已满, 丢弃一帧")
		}

		if isVoice {
			lastVoiceTs = time.Now().UnixMilli()
		} else if time.Now().UnixMilli()-lastVoiceTs > c.maxSilenceMs {
			log.Ctx(ctx).Debugf("静音超过 %d ms, 结束本句", c.maxSilenceMs)
			endUtterance()
		}
	}
}

// startChat 识别出一句话后开启一轮对话
func (c *ChatManager) startChat(text string) {
	c.memory.AddMessage(c.ctx, schema.User, text)
	requestMessages := c.memory.GetMessagesForLLM(c.ctx)

	replyCtx := c.newReplyContext()
	if err := c.llmManager.DoLLmRequest(replyCtx, requestMessages, c.sessionTools(replyCtx), false); err != nil {
		log.Errorf("发起对话失败: %v", err)
	}
}

// GenerateReply 不经语音输入直接生成一轮回复
// instructions作为user角色的指令消息追加，同步等播报入队完成
func (c *ChatManager) GenerateReply(ctx context.Context, instructions string) error {
	c.memory.AddMessage(ctx, schema.User, instructions)
	requestMessages := c.memory.GetMessagesForLLM(ctx)

	replyCtx := c.newReplyContext()
	return c.llmManager.DoLLmRequest(replyCtx, requestMessages, c.sessionTools(replyCtx), true)
}

// newReplyContext 创建可被新语音打断的回复上下文
func (c *ChatManager) newReplyContext() context.Context {
	c.replyMu.Lock()
	defer c.replyMu.Unlock()

	replyCtx, cancel := context.WithCancel(c.ctx)
	c.replyCancel = cancel
	return replyCtx
}

// abortCurrentReply 取消当前回复并清空待播队列
func (c *ChatManager) abortCurrentReply() {
	c.replyMu.Lock()
	cancel := c.replyCancel
	c.replyCancel = nil
	c.replyMu.Unlock()

	if cancel != nil {
		log.Ctx(c.ctx).Debugf("打断当前回复")
		cancel()
	}
	c.llmManager.ClearLLMResponseQueue()
	c.ttsManager.ClearTTSQueue()
}

// sessionTools 汇总当前可用工具
func (c *ChatManager) sessionTools(ctx context.Context) []*schema.ToolInfo {
	allTools := mcp.GetToolManager().GetAllTools()

	rawTools := make(map[string]interface{}, len(allTools))
	for toolName, invokable := range allTools {
		rawTools[toolName] = invokable
	}
	einoTools, err := llm.ConvertMCPToolsToEinoTools(ctx, rawTools)
	if err != nil {
		log.Errorf("转换工具列表失败: %v", err)
		return nil
	}
	return einoTools
}
