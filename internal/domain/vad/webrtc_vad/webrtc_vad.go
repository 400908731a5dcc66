package webrtc_vad

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/hackers365/go-webrtcvad"

	"homey-assistant-golang/internal/domain/vad/inter"
)

const (
	// DefaultSampleRate WebRTC VAD 支持 8000/16000/32000/48000
	DefaultSampleRate = 16000
	// DefaultMode 敏感度 (0: 最不敏感, 3: 最敏感)
	DefaultMode = 2
	// FrameDuration WebRTC VAD 支持 10ms/20ms/30ms 帧
	FrameDuration = 20
)

// WebRTCVAD 能量门限实现，silero之外的轻量备选
// 同时实现 inter.VAD 和 util.Resource 接口
type WebRTCVAD struct {
	webrtcVad      *webrtcvad.VAD
	sampleRate     int
	mode           int
	frameSizeBytes int
	initialized    bool
	lastUsed       time.Time
	mu             sync.RWMutex
}

// NewWebRTCVADWithConfig 使用指定配置创建实例
func NewWebRTCVADWithConfig(sampleRate, mode int) (*WebRTCVAD, error) {
	if !isValidSampleRate(sampleRate) {
		return nil, fmt.Errorf("不支持的采样率: %d, 仅支持 8000/16000/32000/48000", sampleRate)
	}
	if mode < 0 || mode > 3 {
		return nil, fmt.Errorf("非法的VAD模式: %d, 取值范围 0-3", mode)
	}

	vad := &WebRTCVAD{
		sampleRate: sampleRate,
		mode:       mode,
		lastUsed:   time.Now(),
	}
	if err := vad.init(); err != nil {
		return nil, err
	}
	return vad, nil
}

func (w *WebRTCVAD) init() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.initialized {
		return nil
	}

	// 每帧字节数: 16-bit PCM
	w.frameSizeBytes = w.sampleRate / 1000 * FrameDuration * 2

	var err error
	w.webrtcVad, err = webrtcvad.New()
	if w.webrtcVad == nil {
		return fmt.Errorf("创建WebRTC VAD实例失败")
	}

	if err = w.webrtcVad.SetMode(w.mode); err != nil {
		webrtcvad.Free(w.webrtcVad)
		return fmt.Errorf("设置WebRTC VAD模式失败: %v", err)
	}

	w.initialized = true
	w.lastUsed = time.Now()
	return nil
}

// IsVAD 检测语音活动，多帧数据过半活跃判定为有语音
func (w *WebRTCVAD) IsVAD(pcmData []float32) (bool, error) {
	if len(pcmData) == 0 {
		return false, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastUsed = time.Now()

	pcmBytes := float32ToPCMBytes(pcmData)
	if len(pcmBytes) < w.frameSizeBytes {
		return false, nil
	}

	activityCount := 0
	frameCount := 0
	for i := 0; i+w.frameSizeBytes <= len(pcmBytes); i += w.frameSizeBytes {
		active, err := w.webrtcVad.Process(w.sampleRate, pcmBytes[i:i+w.frameSizeBytes])
		if err != nil {
			return false, fmt.Errorf("WebRTC VAD处理失败: %w", err)
		}
		if active {
			activityCount++
		}
		frameCount++
	}

	return activityCount > frameCount/2, nil
}

// Reset WebRTC VAD无跨帧状态，无需重置
func (w *WebRTCVAD) Reset() error {
	return nil
}

// Close 释放底层C实例，实现 Resource 接口
func (w *WebRTCVAD) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.initialized && w.webrtcVad != nil {
		webrtcvad.Free(w.webrtcVad)
		w.webrtcVad = nil
		w.initialized = false
	}
	return nil
}

// IsValid 实现 Resource 接口
func (w *WebRTCVAD) IsValid() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.initialized && w.webrtcVad != nil
}

// float32ToPCMBytes float32采样转16-bit小端PCM
func float32ToPCMBytes(samples []float32) []byte {
	pcmBytes := make([]byte, len(samples)*2)
	for i, sample := range samples {
		var intSample int16
		if sample > 1.0 {
			intSample = 32767
		} else if sample < -1.0 {
			intSample = -32768
		} else {
			intSample = int16(sample * 32767)
		}
		binary.LittleEndian.PutUint16(pcmBytes[i*2:], uint16(intSample))
	}
	return pcmBytes
}

func isValidSampleRate(sampleRate int) bool {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
		return true
	}
	return false
}

var _ inter.VAD = (*WebRTCVAD)(nil)
