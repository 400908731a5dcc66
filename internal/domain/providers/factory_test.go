package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homey-assistant-golang/constants"
)

func TestNewTtsProviderUnknown(t *testing.T) {
	_, err := NewTtsProvider(TtsConfig{Provider: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "不支持的TTS提供商")
}

func TestNewTtsProviderGoogle(t *testing.T) {
	provider, err := NewTtsProvider(TtsConfig{
		Provider:     constants.TtsTypeGoogle,
		APIKey:       "test-key",
		Language:     "pl-PL",
		VoiceName:    "pl-PL-Chirp3-HD-Despina",
		VoiceGender:  "female",
		SpeakingRate: 1.15,
	})
	require.NoError(t, err)
	assert.NotNil(t, provider)
}

func TestNewTtsProviderGoogleMissingKey(t *testing.T) {
	_, err := NewTtsProvider(TtsConfig{Provider: constants.TtsTypeGoogle})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestNewTtsProviderElevenlabs(t *testing.T) {
	stability := 0.5
	provider, err := NewTtsProvider(TtsConfig{
		Provider:  constants.TtsTypeElevenlabs,
		APIKey:    "xi-key",
		VoiceID:   "EXAVITQu4vr4xnSDxMaL",
		ModelID:   constants.DefaultElevenlabsModel,
		Stability: &stability,
	})
	require.NoError(t, err)
	assert.NotNil(t, provider)
}

func TestNewTtsProviderElevenlabsMissingVoice(t *testing.T) {
	_, err := NewTtsProvider(TtsConfig{
		Provider: constants.TtsTypeElevenlabs,
		APIKey:   "xi-key",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "voice_id")
}

func TestNewTtsProviderEdge(t *testing.T) {
	provider, err := NewTtsProvider(TtsConfig{
		Provider:  constants.TtsTypeEdge,
		VoiceName: constants.DefaultEdgeVoice,
	})
	require.NoError(t, err)
	assert.NotNil(t, provider)
}

func TestNewSttProviderUnknown(t *testing.T) {
	_, err := NewSttProvider(SttConfig{Provider: "whisperx"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "不支持的STT提供商")
}

func TestNewSttProviderGoogle(t *testing.T) {
	provider, err := NewSttProvider(SttConfig{
		Provider:  constants.SttTypeGoogle,
		APIKey:    "test-key",
		Model:     "latest_long",
		Languages: []string{"pl-PL", "en-US"},
		Punctuate: true,
	})
	require.NoError(t, err)
	assert.NotNil(t, provider)
}

func TestNewSttProviderDeepgram(t *testing.T) {
	interim := true
	provider, err := NewSttProvider(SttConfig{
		Provider:       constants.SttTypeDeepgram,
		APIKey:         "dg-key",
		Model:          "nova-2",
		Languages:      []string{"pl-PL"},
		InterimResults: &interim,
	})
	require.NoError(t, err)
	assert.NotNil(t, provider)
}

func TestNewLlmProviderUnknown(t *testing.T) {
	_, err := NewLlmProvider(LlmConfig{Provider: "claude"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "不支持的LLM提供商")
}

func TestNewLlmProviderGoogle(t *testing.T) {
	provider, err := NewLlmProvider(LlmConfig{
		Provider:    constants.LlmTypeGoogle,
		APIKey:      "test-key",
		BaseURL:     constants.GeminiOpenAIBaseURL,
		Model:       "gemini-2.5-flash",
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.NotNil(t, provider)

	info := provider.GetModelInfo()
	assert.Equal(t, "gemini-2.5-flash", info["model_name"])
}

func TestNewLlmProviderOllama(t *testing.T) {
	provider, err := NewLlmProvider(LlmConfig{
		Provider:    constants.LlmTypeOllama,
		BaseURL:     constants.DefaultOllamaBaseURL,
		Model:       "qwen3",
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.NotNil(t, provider)
}
