// Package providers 从环境变量解析语音会话各环节的提供商配置
// 环境变量通过viper读取，点分键映射到下划线形式，例如 tts.provider -> TTS_PROVIDER
package providers

import (
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"homey-assistant-golang/constants"
	log "homey-assistant-golang/logger"
)

// TtsConfig 语音合成配置，来自TTS_*环境变量
type TtsConfig struct {
	Provider     string
	APIKey       string
	Language     string
	VoiceName    string
	VoiceGender  string
	SpeakingRate float64

	// elevenlabs专用
	VoiceID         string
	ModelID         string
	Stability       *float64
	SimilarityBoost *float64
	Style           *float64
	UseSpeakerBoost *bool
}

// SttConfig 语音识别配置，来自STT_*环境变量
type SttConfig struct {
	Provider  string
	APIKey    string
	Languages []string
	Model     string
	Punctuate bool

	// deepgram专用，未设置时不传给服务端
	SmartFormat    *bool
	InterimResults *bool
}

// LlmConfig 大模型配置，来自LLM_*环境变量
type LlmConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float32
	MaxRemoteCalls int
	MaxTokens      *int
}

var (
	supportedTtsProviders = map[string]bool{
		constants.TtsTypeGoogle:     true,
		constants.TtsTypeElevenlabs: true,
		constants.TtsTypeEdge:       true,
	}
	supportedSttProviders = map[string]bool{
		constants.SttTypeGoogle:   true,
		constants.SttTypeDeepgram: true,
	}
	supportedLlmProviders = map[string]bool{
		constants.LlmTypeGoogle: true,
		constants.LlmTypeOpenai: true,
		constants.LlmTypeOllama: true,
	}
)

// resolveProvider 归一化提供商名字，大小写不敏感，未知名字告警后回退默认值
func resolveProvider(kind, raw string, supported map[string]bool, def string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return def
	}
	if !supported[name] {
		log.Warnf("未知的%s提供商 '%s'，回退到 %s", kind, raw, def)
		return def
	}
	return name
}

func stringOr(key, def string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return def
}

func floatOr(key string, def float64) float64 {
	if s := viper.GetString(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		log.Warnf("配置 %s 的值 '%s' 不是合法数字，使用默认值 %v", key, s, def)
	}
	return def
}

func intOr(key string, def int) int {
	if s := viper.GetString(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		log.Warnf("配置 %s 的值 '%s' 不是合法整数，使用默认值 %d", key, s, def)
	}
	return def
}

// boolValue 只有"true"(不分大小写)算真，和既有部署行为保持一致
func boolValue(s string) bool {
	return strings.ToLower(strings.TrimSpace(s)) == "true"
}

// 可选参数未设置时返回nil，providers据此决定是否传给服务端
func optFloat(key string) *float64 {
	if s := viper.GetString(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
		log.Warnf("配置 %s 的值 '%s' 不是合法数字，忽略", key, s)
	}
	return nil
}

func optBool(key string) *bool {
	if s := viper.GetString(key); s != "" {
		b := boolValue(s)
		return &b
	}
	return nil
}

func optInt(key string) *int {
	if s := viper.GetString(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return &n
		}
		log.Warnf("配置 %s 的值 '%s' 不是合法整数，忽略", key, s)
	}
	return nil
}

// splitLanguages 逗号分隔的语言列表，去空白去空项
func splitLanguages(raw string) []string {
	parts := strings.Split(raw, ",")
	languages := make([]string, 0, len(parts))
	for _, p := range parts {
		if lang := strings.TrimSpace(p); lang != "" {
			languages = append(languages, lang)
		}
	}
	if len(languages) == 0 {
		languages = []string{constants.DefaultSttLanguage}
	}
	return languages
}

// LoadTtsConfig 读取语音合成配置
func LoadTtsConfig() TtsConfig {
	cfg := TtsConfig{
		Provider: resolveProvider("TTS", viper.GetString("tts.provider"), supportedTtsProviders, constants.DefaultTtsProvider),
	}

	switch cfg.Provider {
	case constants.TtsTypeGoogle:
		cfg.APIKey = viper.GetString("google_api_key")
		cfg.Language = stringOr("tts.language", constants.DefaultLanguage)
		cfg.VoiceName = stringOr("tts.google.voice_name", constants.DefaultVoiceName)
		cfg.VoiceGender = stringOr("tts.google.voice_gender", constants.DefaultVoiceGender)
		cfg.SpeakingRate = floatOr("tts.speaking_rate", constants.DefaultSpeakingRate)
	case constants.TtsTypeElevenlabs:
		cfg.APIKey = viper.GetString("elevenlabs_api_key")
		cfg.VoiceID = viper.GetString("tts.elevenlabs.voice_id")
		cfg.ModelID = stringOr("tts.elevenlabs.model_id", constants.DefaultElevenlabsModel)
		cfg.SpeakingRate = floatOr("tts.speaking_rate", constants.DefaultSpeakingRate)
		cfg.Stability = optFloat("tts.elevenlabs.stability")
		cfg.SimilarityBoost = optFloat("tts.elevenlabs.similarity_boost")
		cfg.Style = optFloat("tts.elevenlabs.style")
		cfg.UseSpeakerBoost = optBool("tts.elevenlabs.use_speaker_boost")
	case constants.TtsTypeEdge:
		cfg.Language = stringOr("tts.language", constants.DefaultLanguage)
		cfg.VoiceName = stringOr("tts.edge.voice", constants.DefaultEdgeVoice)
		cfg.SpeakingRate = floatOr("tts.speaking_rate", constants.DefaultSpeakingRate)
	}

	voice := cfg.VoiceName
	if voice == "" {
		voice = cfg.VoiceID
	}
	log.Infof("TTS配置: provider=%s voice=%s language=%s rate=%.2f",
		cfg.Provider, voice, cfg.Language, cfg.SpeakingRate)
	return cfg
}

// LoadSttConfig 读取语音识别配置
func LoadSttConfig() SttConfig {
	provider := resolveProvider("STT", viper.GetString("stt.provider"), supportedSttProviders, constants.DefaultSttProvider)

	// 模型默认值按提供商区分
	defaultModel := constants.DefaultSttModel
	if provider == constants.SttTypeDeepgram {
		defaultModel = constants.DefaultDeepgramModel
	}

	cfg := SttConfig{
		Provider:  provider,
		Languages: splitLanguages(stringOr("stt.languages", constants.DefaultSttLanguage)),
		Model:     stringOr("stt.model", defaultModel),
		Punctuate: boolValue(viper.GetString("stt.punctuate")),
	}

	switch provider {
	case constants.SttTypeGoogle:
		cfg.APIKey = viper.GetString("google_api_key")
	case constants.SttTypeDeepgram:
		cfg.APIKey = viper.GetString("deepgram_api_key")
		cfg.SmartFormat = optBool("stt.deepgram.smart_format")
		cfg.InterimResults = optBool("stt.deepgram.interim_results")
	}

	log.Infof("STT配置: provider=%s model=%s languages=%v punctuate=%v",
		cfg.Provider, cfg.Model, cfg.Languages, cfg.Punctuate)
	return cfg
}

// LoadLlmConfig 读取大模型配置
func LoadLlmConfig() LlmConfig {
	provider := resolveProvider("LLM", viper.GetString("llm.provider"), supportedLlmProviders, constants.DefaultLlmProvider)

	defaultModel := constants.DefaultLlmModel
	switch provider {
	case constants.LlmTypeOpenai:
		defaultModel = constants.DefaultOpenAIModel
	case constants.LlmTypeOllama:
		defaultModel = constants.DefaultOllamaModel
	}

	cfg := LlmConfig{
		Provider:       provider,
		Model:          stringOr("llm.model", defaultModel),
		Temperature:    float32(floatOr("llm.temperature", constants.DefaultTemperature)),
		MaxRemoteCalls: intOr("llm.max_remote_calls", constants.DefaultMaximumRemoteCalls),
	}

	switch provider {
	case constants.LlmTypeGoogle:
		// Gemini走OpenAI兼容接口
		cfg.APIKey = viper.GetString("google_api_key")
		cfg.BaseURL = constants.GeminiOpenAIBaseURL
	case constants.LlmTypeOpenai:
		cfg.APIKey = viper.GetString("openai_api_key")
		cfg.BaseURL = viper.GetString("openai_base_url")
		cfg.MaxTokens = optInt("llm.openai.max_tokens")
	case constants.LlmTypeOllama:
		cfg.BaseURL = stringOr("llm.ollama.base_url", constants.DefaultOllamaBaseURL)
	}

	log.Infof("LLM配置: provider=%s model=%s temperature=%.2f",
		cfg.Provider, cfg.Model, cfg.Temperature)
	return cfg
}
