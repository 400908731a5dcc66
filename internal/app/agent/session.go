package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/viper"

	"homey-assistant-golang/constants"
	"homey-assistant-golang/internal/app/agent/chat"
	"homey-assistant-golang/internal/domain/llm"
	llm_memory "homey-assistant-golang/internal/domain/llm/memory"
	"homey-assistant-golang/internal/domain/providers"
	"homey-assistant-golang/internal/domain/stt"
	"homey-assistant-golang/internal/domain/tts"
	"homey-assistant-golang/internal/domain/vad/inter"
	log "homey-assistant-golang/logger"
)

// SessionState 会话生命周期状态，只进不退
type SessionState int

const (
	SessionStateUninitialized SessionState = iota
	SessionStateConfigured
	SessionStateSessionStarted
	SessionStateGreetingIssued
)

func (s SessionState) String() string {
	switch s {
	case SessionStateUninitialized:
		return "uninitialized"
	case SessionStateConfigured:
		return "configured"
	case SessionStateSessionStarted:
		return "session_started"
	case SessionStateGreetingIssued:
		return "greeting_issued"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// RoomInputOptions 房间入站选项
// 降噪靠VAD门控实现，不依赖平台侧处理
type RoomInputOptions struct {
	VideoEnabled     bool
	NoiseSuppression bool
}

// 会话记忆保留的最大消息数
const defaultMemorySize = 50

// SessionManager 按配置组装会话
// 显式传入的配置优先，缺省时回落到环境变量加载
type SessionManager struct {
	maxToolSteps int
	videoEnabled bool

	ttsConfig *providers.TtsConfig
	sttConfig *providers.SttConfig
	llmConfig *providers.LlmConfig
}

type SessionManagerOption func(*SessionManager)

func WithMaxToolSteps(n int) SessionManagerOption {
	return func(m *SessionManager) {
		if n > 0 {
			m.maxToolSteps = n
		}
	}
}

func WithVideoEnabled(enabled bool) SessionManagerOption {
	return func(m *SessionManager) { m.videoEnabled = enabled }
}

func WithTtsConfig(cfg providers.TtsConfig) SessionManagerOption {
	return func(m *SessionManager) { m.ttsConfig = &cfg }
}

func WithSttConfig(cfg providers.SttConfig) SessionManagerOption {
	return func(m *SessionManager) { m.sttConfig = &cfg }
}

func WithLlmConfig(cfg providers.LlmConfig) SessionManagerOption {
	return func(m *SessionManager) { m.llmConfig = &cfg }
}

func NewSessionManager(options ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		maxToolSteps: constants.DefaultMaxToolSteps,
		videoEnabled: constants.DefaultVideoEnabled,
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// CreateRoomInputOptions 会话的房间入站选项
func (m *SessionManager) CreateRoomInputOptions() RoomInputOptions {
	return RoomInputOptions{
		VideoEnabled:     m.videoEnabled,
		NoiseSuppression: true,
	}
}

// CreateSession 从配置实例化三个提供商并组装会话，任一构造失败即中止
func (m *SessionManager) CreateSession(pctx context.Context, assistant *Assistant, vadInst inter.VAD) (*AgentSession, error) {
	ttsCfg := m.ttsConfig
	if ttsCfg == nil {
		cfg := providers.LoadTtsConfig()
		ttsCfg = &cfg
	}
	sttCfg := m.sttConfig
	if sttCfg == nil {
		cfg := providers.LoadSttConfig()
		sttCfg = &cfg
	}
	llmCfg := m.llmConfig
	if llmCfg == nil {
		cfg := providers.LoadLlmConfig()
		llmCfg = &cfg
	}

	ttsProvider, err := providers.NewTtsProvider(*ttsCfg)
	if err != nil {
		return nil, fmt.Errorf("创建TTS提供商失败: %w", err)
	}
	sttProvider, err := providers.NewSttProvider(*sttCfg)
	if err != nil {
		return nil, fmt.Errorf("创建STT提供商失败: %w", err)
	}
	llmProvider, err := providers.NewLlmProvider(*llmCfg)
	if err != nil {
		return nil, fmt.Errorf("创建LLM提供商失败: %w", err)
	}

	sessionID := log.NewSessionID()
	ctx, cancel := context.WithCancel(log.WithSessionID(pctx, sessionID))

	memory := llm_memory.NewMemory(defaultMemorySize)
	memory.SetSystemPrompt(ctx, assistant.Instructions)

	session := &AgentSession{
		sessionID:      sessionID,
		ctx:            ctx,
		cancel:         cancel,
		assistant:      assistant,
		inputOptions:   m.CreateRoomInputOptions(),
		vad:            vadInst,
		ttsProvider:    ttsProvider,
		sttProvider:    sttProvider,
		llmProvider:    llmProvider,
		memory:         memory,
		maxToolSteps:   m.maxToolSteps,
		maxRemoteCalls: llmCfg.MaxRemoteCalls,
		state:          SessionStateConfigured,
	}

	log.Ctx(ctx).Infof("会话已组装: tts=%s stt=%s llm=%s", ttsCfg.Provider, sttCfg.Provider, llmCfg.Provider)
	return session, nil
}

// AgentSession 一次进程调用对应的一个语音会话
type AgentSession struct {
	sessionID string

	ctx    context.Context
	cancel context.CancelFunc

	assistant    *Assistant
	inputOptions RoomInputOptions

	vad         inter.VAD
	ttsProvider tts.TTSProvider
	sttProvider stt.SttProvider
	llmProvider llm.LLMProvider
	memory      *llm_memory.Memory

	maxToolSteps   int
	maxRemoteCalls int

	transport   *RoomTransport
	chatManager *chat.ChatManager

	mu    sync.Mutex
	state SessionState
}

func (s *AgentSession) SessionID() string { return s.sessionID }

// State 当前状态，测试和日志用
func (s *AgentSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// advanceState 状态只允许前进
func (s *AgentSession) advanceState(next SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next > s.state {
		log.Ctx(s.ctx).Infof("会话状态: %s -> %s", s.state, next)
		s.state = next
	}
}

// Start 连接房间、发布音轨、挂上入站音频并启动对话管线
func (s *AgentSession) Start(target RoomTarget) error {
	if target.Identity == "" {
		target.Identity = s.assistant.Identity
	}

	transport := NewRoomTransport(s.ctx, target)

	llmManagerFactory := func(ttsManager *chat.TTSManager) *chat.LLMManager {
		return chat.NewLLMManager(s.sessionID, s.llmProvider, s.memory, ttsManager, s.maxToolSteps, s.maxRemoteCalls)
	}

	chatOptions := []chat.ChatManagerOption{}
	if ms := viper.GetInt64("chat.max_silence_duration_ms"); ms > 0 {
		chatOptions = append(chatOptions, chat.WithMaxSilenceDuration(ms))
	}

	chatManager := chat.NewChatManager(s.ctx, s.sessionID, s.vad, s.sttProvider, s.ttsProvider,
		llmManagerFactory, transport, chatOptions...)
	transport.SetFrameHandler(chatManager.PushAudioFrame)

	if err := transport.Connect(); err != nil {
		return fmt.Errorf("连接房间失败: %w", err)
	}

	chatManager.Start()
	s.transport = transport
	s.chatManager = chatManager
	s.advanceState(SessionStateSessionStarted)
	return nil
}

// GenerateReply 跳过语音输入直接生成一轮回复并播报
// 开场白走这里，成功后状态进入GreetingIssued
func (s *AgentSession) GenerateReply(ctx context.Context, instructions string) error {
	if s.chatManager == nil {
		return fmt.Errorf("会话尚未启动")
	}
	if err := s.chatManager.GenerateReply(ctx, instructions); err != nil {
		return err
	}
	s.advanceState(SessionStateGreetingIssued)
	return nil
}

// Closed 房间断开或会话取消时关闭
func (s *AgentSession) Closed() <-chan struct{} {
	if s.transport != nil {
		return s.transport.Closed()
	}
	return s.ctx.Done()
}

// Close 停止管线并断开房间
func (s *AgentSession) Close() {
	if s.chatManager != nil {
		s.chatManager.Close()
	}
	if s.transport != nil {
		s.transport.Disconnect()
	}
	s.cancel()
}
