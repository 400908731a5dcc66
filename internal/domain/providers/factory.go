package providers

import (
	"fmt"

	"homey-assistant-golang/constants"
	"homey-assistant-golang/internal/domain/llm"
	"homey-assistant-golang/internal/domain/stt"
	"homey-assistant-golang/internal/domain/tts"
)

// 能力工厂: 提供商名 → 构造函数的分发表
// 类型化配置在这里摊平成domain工厂吃的map，可选项只在设置了时才进map

var ttsFactories = map[string]func(TtsConfig) (tts.TTSProvider, error){
	constants.TtsTypeGoogle:     newGoogleTts,
	constants.TtsTypeElevenlabs: newElevenlabsTts,
	constants.TtsTypeEdge:       newEdgeTts,
}

var sttFactories = map[string]func(SttConfig) (stt.SttProvider, error){
	constants.SttTypeGoogle:   newGoogleStt,
	constants.SttTypeDeepgram: newDeepgramStt,
}

var llmFactories = map[string]func(LlmConfig) (llm.LLMProvider, error){
	constants.LlmTypeGoogle: newEinoLlm,
	constants.LlmTypeOpenai: newEinoLlm,
	constants.LlmTypeOllama: newEinoLlm,
}

// NewTtsProvider 按配置创建TTS实例
func NewTtsProvider(cfg TtsConfig) (tts.TTSProvider, error) {
	factory, ok := ttsFactories[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("不支持的TTS提供商: %s", cfg.Provider)
	}
	return factory(cfg)
}

// NewSttProvider 按配置创建STT实例
func NewSttProvider(cfg SttConfig) (stt.SttProvider, error) {
	factory, ok := sttFactories[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("不支持的STT提供商: %s", cfg.Provider)
	}
	return factory(cfg)
}

// NewLlmProvider 按配置创建LLM实例
func NewLlmProvider(cfg LlmConfig) (llm.LLMProvider, error) {
	factory, ok := llmFactories[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("不支持的LLM提供商: %s", cfg.Provider)
	}
	return factory(cfg)
}

func newGoogleTts(cfg TtsConfig) (tts.TTSProvider, error) {
	return tts.GetTTSProvider(cfg.Provider, map[string]interface{}{
		"api_key":       cfg.APIKey,
		"language":      cfg.Language,
		"voice_name":    cfg.VoiceName,
		"gender":        cfg.VoiceGender,
		"speaking_rate": cfg.SpeakingRate,
	})
}

func newElevenlabsTts(cfg TtsConfig) (tts.TTSProvider, error) {
	config := map[string]interface{}{
		"api_key":  cfg.APIKey,
		"voice_id": cfg.VoiceID,
		"model":    cfg.ModelID,
	}
	if cfg.SpeakingRate != 0 {
		config["speed"] = cfg.SpeakingRate
	}
	if cfg.Stability != nil {
		config["stability"] = *cfg.Stability
	}
	if cfg.SimilarityBoost != nil {
		config["similarity_boost"] = *cfg.SimilarityBoost
	}
	if cfg.Style != nil {
		config["style"] = *cfg.Style
	}
	if cfg.UseSpeakerBoost != nil {
		config["use_speaker_boost"] = *cfg.UseSpeakerBoost
	}
	return tts.GetTTSProvider(cfg.Provider, config)
}

func newEdgeTts(cfg TtsConfig) (tts.TTSProvider, error) {
	return tts.GetTTSProvider(cfg.Provider, map[string]interface{}{
		"voice": cfg.VoiceName,
	})
}

func newGoogleStt(cfg SttConfig) (stt.SttProvider, error) {
	return stt.GetSttProvider(cfg.Provider, map[string]interface{}{
		"api_key":   cfg.APIKey,
		"model":     cfg.Model,
		"languages": cfg.Languages,
		"punctuate": cfg.Punctuate,
	})
}

func newDeepgramStt(cfg SttConfig) (stt.SttProvider, error) {
	config := map[string]interface{}{
		"api_key":   cfg.APIKey,
		"model":     cfg.Model,
		"punctuate": cfg.Punctuate,
	}
	if len(cfg.Languages) > 0 {
		config["language"] = cfg.Languages[0]
	}
	if cfg.SmartFormat != nil {
		config["smart_format"] = *cfg.SmartFormat
	}
	if cfg.InterimResults != nil {
		config["interim_results"] = *cfg.InterimResults
	}
	return stt.GetSttProvider(cfg.Provider, config)
}

func newEinoLlm(cfg LlmConfig) (llm.LLMProvider, error) {
	config := map[string]interface{}{
		"api_key":     cfg.APIKey,
		"model_name":  cfg.Model,
		"temperature": float64(cfg.Temperature),
	}
	if cfg.BaseURL != "" {
		config["base_url"] = cfg.BaseURL
	}
	if cfg.MaxTokens != nil {
		config["max_tokens"] = *cfg.MaxTokens
	}
	return llm.GetLLMProvider(cfg.Provider, config)
}
