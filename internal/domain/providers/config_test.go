package providers

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homey-assistant-golang/constants"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadTtsConfigDefaults(t *testing.T) {
	resetViper(t)

	cfg := LoadTtsConfig()

	assert.Equal(t, constants.TtsTypeGoogle, cfg.Provider)
	assert.Equal(t, "pl-PL", cfg.Language)
	assert.Equal(t, "pl-PL-Chirp3-HD-Despina", cfg.VoiceName)
	assert.Equal(t, "female", cfg.VoiceGender)
	assert.Equal(t, 1.15, cfg.SpeakingRate)
}

func TestLoadTtsConfigUnknownProviderFallsBack(t *testing.T) {
	resetViper(t)
	viper.Set("tts.provider", "definitely_not_a_provider")

	cfg := LoadTtsConfig()

	assert.Equal(t, constants.TtsTypeGoogle, cfg.Provider, "未知提供商应该回退到默认值")
	assert.Equal(t, "pl-PL-Chirp3-HD-Despina", cfg.VoiceName)
}

func TestLoadTtsConfigCaseInsensitive(t *testing.T) {
	resetViper(t)
	viper.Set("tts.provider", "ElevenLabs")

	cfg := LoadTtsConfig()
	assert.Equal(t, constants.TtsTypeElevenlabs, cfg.Provider)
}

func TestLoadTtsConfigElevenlabs(t *testing.T) {
	resetViper(t)
	viper.Set("tts.provider", "elevenlabs")
	viper.Set("tts.elevenlabs.voice_id", "EXAVITQu4vr4xnSDxMaL")
	viper.Set("elevenlabs_api_key", "key123")

	cfg := LoadTtsConfig()

	assert.Equal(t, constants.TtsTypeElevenlabs, cfg.Provider)
	assert.Equal(t, "EXAVITQu4vr4xnSDxMaL", cfg.VoiceID)
	assert.Equal(t, "key123", cfg.APIKey)
	assert.Equal(t, "eleven_multilingual_v2", cfg.ModelID)
	assert.Equal(t, 1.15, cfg.SpeakingRate, "语速默认值对elevenlabs同样生效")

	// 可选参数未设置时保持nil
	assert.Nil(t, cfg.Stability)
	assert.Nil(t, cfg.SimilarityBoost)
	assert.Nil(t, cfg.Style)
	assert.Nil(t, cfg.UseSpeakerBoost)
}

func TestLoadTtsConfigElevenlabsOptionals(t *testing.T) {
	resetViper(t)
	viper.Set("tts.provider", "elevenlabs")
	viper.Set("tts.elevenlabs.stability", "0.5")
	viper.Set("tts.elevenlabs.similarity_boost", "0.8")
	viper.Set("tts.elevenlabs.use_speaker_boost", "TRUE")

	cfg := LoadTtsConfig()

	require.NotNil(t, cfg.Stability)
	assert.Equal(t, 0.5, *cfg.Stability)
	require.NotNil(t, cfg.SimilarityBoost)
	assert.Equal(t, 0.8, *cfg.SimilarityBoost)
	require.NotNil(t, cfg.UseSpeakerBoost)
	assert.True(t, *cfg.UseSpeakerBoost)
	assert.Nil(t, cfg.Style, "未设置的可选参数保持nil")
}

func TestLoadSttConfigDefaults(t *testing.T) {
	resetViper(t)

	cfg := LoadSttConfig()

	assert.Equal(t, constants.SttTypeGoogle, cfg.Provider)
	assert.Equal(t, []string{"pl-PL"}, cfg.Languages)
	assert.Equal(t, "latest_long", cfg.Model)
	assert.False(t, cfg.Punctuate)
	assert.Nil(t, cfg.SmartFormat)
	assert.Nil(t, cfg.InterimResults)
}

func TestLoadSttConfigDeepgram(t *testing.T) {
	resetViper(t)
	viper.Set("stt.provider", "deepgram")
	viper.Set("stt.languages", "pl-PL, en-US")
	viper.Set("stt.deepgram.interim_results", "false")
	viper.Set("deepgram_api_key", "dg_key")

	cfg := LoadSttConfig()

	assert.Equal(t, constants.SttTypeDeepgram, cfg.Provider)
	assert.Equal(t, "nova-2", cfg.Model, "deepgram的模型默认值不同")
	assert.Equal(t, []string{"pl-PL", "en-US"}, cfg.Languages)
	assert.Equal(t, "dg_key", cfg.APIKey)
	assert.Nil(t, cfg.SmartFormat)
	require.NotNil(t, cfg.InterimResults)
	assert.False(t, *cfg.InterimResults)
}

func TestLoadSttConfigPunctuate(t *testing.T) {
	cases := map[string]bool{
		"true":  true,
		"TRUE":  true,
		"false": false,
		"1":     false, // 只认true字样
		"":      false,
	}

	for raw, want := range cases {
		resetViper(t)
		viper.Set("stt.punctuate", raw)
		cfg := LoadSttConfig()
		assert.Equal(t, want, cfg.Punctuate, "punctuate=%q", raw)
	}
}

func TestLoadSttConfigUnknownProviderFallsBack(t *testing.T) {
	resetViper(t)
	viper.Set("stt.provider", "whisperx")

	cfg := LoadSttConfig()
	assert.Equal(t, constants.SttTypeGoogle, cfg.Provider)
	assert.Equal(t, "latest_long", cfg.Model, "回退后模型默认值跟着默认提供商走")
}

func TestLoadLlmConfigDefaults(t *testing.T) {
	resetViper(t)

	cfg := LoadLlmConfig()

	assert.Equal(t, constants.LlmTypeGoogle, cfg.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Model)
	assert.InDelta(t, 0.7, cfg.Temperature, 0.0001)
	assert.Equal(t, constants.GeminiOpenAIBaseURL, cfg.BaseURL)
	assert.Equal(t, 100, cfg.MaxRemoteCalls)
	assert.Nil(t, cfg.MaxTokens)
}

func TestLoadLlmConfigOpenai(t *testing.T) {
	resetViper(t)
	viper.Set("llm.provider", "openai")
	viper.Set("llm.temperature", "0.3")
	viper.Set("llm.openai.max_tokens", "512")
	viper.Set("openai_api_key", "sk-test")

	cfg := LoadLlmConfig()

	assert.Equal(t, constants.LlmTypeOpenai, cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.InDelta(t, 0.3, cfg.Temperature, 0.0001)
	assert.Equal(t, "sk-test", cfg.APIKey)
	require.NotNil(t, cfg.MaxTokens)
	assert.Equal(t, 512, *cfg.MaxTokens)
}

func TestLoadLlmConfigOllama(t *testing.T) {
	resetViper(t)
	viper.Set("llm.provider", "ollama")

	cfg := LoadLlmConfig()

	assert.Equal(t, constants.LlmTypeOllama, cfg.Provider)
	assert.Equal(t, "qwen3", cfg.Model)
	assert.Equal(t, "http://localhost:11434", cfg.BaseURL)
}

func TestSplitLanguages(t *testing.T) {
	assert.Equal(t, []string{"pl-PL"}, splitLanguages("pl-PL"))
	assert.Equal(t, []string{"pl-PL", "en-US"}, splitLanguages("pl-PL,en-US"))
	assert.Equal(t, []string{"a", "b"}, splitLanguages(" a , b ,, "))
	assert.Equal(t, []string{"pl-PL"}, splitLanguages(""), "空串退回默认语言")
	assert.Equal(t, []string{"pl-PL"}, splitLanguages(" , "), "全空项退回默认语言")
}
