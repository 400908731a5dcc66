package stt

import (
	"context"
	"fmt"

	"homey-assistant-golang/constants"
	"homey-assistant-golang/internal/domain/stt/deepgram"
	"homey-assistant-golang/internal/domain/stt/google"
	"homey-assistant-golang/internal/domain/stt/types"
)

// SttProvider 语音识别接口
type SttProvider interface {
	// Process 一次性处理整段音频，返回完整识别结果
	Process(pcmData []float32) (string, error)

	// StreamingRecognize 流式识别接口
	// 输入音频通过 audioStream 通道送入，识别结果从返回的通道读取
	// audioStream 关闭表示输入结束，最终结果发送后结果通道被关闭
	// 可以通过 ctx 控制识别过程的取消和超时
	StreamingRecognize(ctx context.Context, audioStream <-chan []float32) (chan types.StreamingResult, error)
}

// GetSttProvider 创建一个STT实例
// config 为 map[string]interface{}，键与各提供商构造函数约定一致
func GetSttProvider(providerName string, config map[string]interface{}) (SttProvider, error) {
	switch providerName {
	case constants.SttTypeGoogle:
		return google.NewGoogleStt(config)
	case constants.SttTypeDeepgram:
		return deepgram.NewDeepgramStt(config)
	default:
		return nil, fmt.Errorf("不支持的STT提供商: %s", providerName)
	}
}
