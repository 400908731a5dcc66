package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homey-assistant-golang/constants"
	"homey-assistant-golang/internal/domain/providers"
)

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", SessionStateUninitialized.String())
	assert.Equal(t, "configured", SessionStateConfigured.String())
	assert.Equal(t, "session_started", SessionStateSessionStarted.String())
	assert.Equal(t, "greeting_issued", SessionStateGreetingIssued.String())
	assert.Equal(t, "unknown(99)", SessionState(99).String())
}

func TestAdvanceStateMonotonic(t *testing.T) {
	s := &AgentSession{ctx: context.Background(), state: SessionStateUninitialized}

	s.advanceState(SessionStateConfigured)
	assert.Equal(t, SessionStateConfigured, s.State())

	s.advanceState(SessionStateGreetingIssued)
	assert.Equal(t, SessionStateGreetingIssued, s.State())

	// 状态不回退
	s.advanceState(SessionStateSessionStarted)
	assert.Equal(t, SessionStateGreetingIssued, s.State())
	s.advanceState(SessionStateConfigured)
	assert.Equal(t, SessionStateGreetingIssued, s.State())
}

func TestCreateRoomInputOptions(t *testing.T) {
	m := NewSessionManager()
	opts := m.CreateRoomInputOptions()

	assert.False(t, opts.VideoEnabled, "默认不开视频")
	assert.True(t, opts.NoiseSuppression)

	m = NewSessionManager(WithVideoEnabled(true))
	assert.True(t, m.CreateRoomInputOptions().VideoEnabled)
}

func TestNewAssistant(t *testing.T) {
	a := NewAssistant("")
	assert.Equal(t, "homey-assistant", a.Identity)
	assert.Equal(t, constants.DefaultAgentInstructions, a.Instructions)

	a = NewAssistant("custom-agent")
	assert.Equal(t, "custom-agent", a.Identity)
}

func TestCreateSessionWithExplicitConfigs(t *testing.T) {
	// 显式配置时不从环境变量加载
	m := NewSessionManager(
		WithMaxToolSteps(5),
		WithTtsConfig(providers.TtsConfig{
			Provider:  constants.TtsTypeEdge,
			VoiceName: constants.DefaultEdgeVoice,
		}),
		WithSttConfig(providers.SttConfig{
			Provider:  constants.SttTypeGoogle,
			APIKey:    "test-key",
			Model:     "latest_long",
			Languages: []string{"pl-PL"},
		}),
		WithLlmConfig(providers.LlmConfig{
			Provider:       constants.LlmTypeGoogle,
			APIKey:         "test-key",
			BaseURL:        constants.GeminiOpenAIBaseURL,
			Model:          "gemini-2.5-flash",
			Temperature:    0.7,
			MaxRemoteCalls: 10,
		}),
	)

	session, err := m.CreateSession(context.Background(), NewAssistant(""), nil)
	require.NoError(t, err)

	assert.Equal(t, SessionStateConfigured, session.State())
	assert.NotEmpty(t, session.SessionID())
	assert.Equal(t, 5, session.maxToolSteps)
	assert.Equal(t, 10, session.maxRemoteCalls)
}

func TestCreateSessionBadProvider(t *testing.T) {
	m := NewSessionManager(WithTtsConfig(providers.TtsConfig{Provider: "nope"}))

	_, err := m.CreateSession(context.Background(), NewAssistant(""), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "创建TTS提供商失败")
}

func TestRoomTargetValidate(t *testing.T) {
	valid := RoomTarget{URL: "wss://lk.example.com", APIKey: "k", APISecret: "s", RoomName: "room"}
	assert.NoError(t, valid.validate())

	assert.Error(t, RoomTarget{APIKey: "k", APISecret: "s", RoomName: "r"}.validate())
	assert.Error(t, RoomTarget{URL: "wss://x", APISecret: "s", RoomName: "r"}.validate())
	assert.Error(t, RoomTarget{URL: "wss://x", APIKey: "k", APISecret: "s"}.validate())
}
