package tts

import (
	"context"
	"fmt"

	"homey-assistant-golang/constants"
	"homey-assistant-golang/internal/domain/tts/edge"
	"homey-assistant-golang/internal/domain/tts/elevenlabs"
	"homey-assistant-golang/internal/domain/tts/google"
)

// TTSProvider 语音合成接口，输出opus帧
type TTSProvider interface {
	// TextToSpeech 一次性合成，返回全部opus帧
	TextToSpeech(ctx context.Context, text string, sampleRate int, channels int, frameDuration int) ([][]byte, error)
	// TextToSpeechStream 流式合成，opus帧边合成边从通道输出
	TextToSpeechStream(ctx context.Context, text string, sampleRate int, channels int, frameDuration int) (outputChan chan []byte, err error)
}

// GetTTSProvider 按提供商名创建TTS实例
func GetTTSProvider(providerName string, config map[string]interface{}) (TTSProvider, error) {
	switch providerName {
	case constants.TtsTypeGoogle:
		return google.NewGoogleTTSProvider(config)
	case constants.TtsTypeElevenlabs:
		return elevenlabs.NewElevenlabsTTSProvider(config)
	case constants.TtsTypeEdge:
		return edge.NewEdgeTTSProvider(config), nil
	default:
		return nil, fmt.Errorf("不支持的TTS提供商: %s", providerName)
	}
}
