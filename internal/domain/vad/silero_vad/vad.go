package silero_vad

import (
	"errors"
	"sync"

	"github.com/streamer45/silero-vad-go/speech"

	log "homey-assistant-golang/logger"
)

// SileroVAD silero onnx模型实现
// detector非并发安全，实例内部加锁，跨会话复用走资源池
type SileroVAD struct {
	detector         *speech.Detector
	vadThreshold     float32
	silenceThreshold int64 // 毫秒
	sampleRate       int
	mu               sync.Mutex
}

// NewSileroVAD 创建SileroVAD实例
func NewSileroVAD(config map[string]interface{}) (*SileroVAD, error) {
	threshold, ok := config["threshold"].(float64)
	if !ok {
		threshold = 0.5
	}

	silenceMs, ok := config["min_silence_duration_ms"].(int64)
	if !ok {
		silenceMs = 100
	}

	sampleRate, ok := config["sample_rate"].(int)
	if !ok {
		sampleRate = 16000
	}

	speechPadMs, ok := config["speech_pad_ms"].(int)
	if !ok {
		speechPadMs = 60
	}

	modelPath, ok := config["model_path"].(string)
	if !ok || modelPath == "" {
		return nil, errors.New("缺少模型路径配置")
	}

	detector, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            modelPath,
		SampleRate:           sampleRate,
		Threshold:            float32(threshold),
		MinSilenceDurationMs: int(silenceMs),
		SpeechPadMs:          speechPadMs,
		LogLevel:             speech.LogLevelWarn,
	})
	if err != nil {
		return nil, err
	}

	return &SileroVAD{
		detector:         detector,
		vadThreshold:     float32(threshold),
		silenceThreshold: silenceMs,
		sampleRate:       sampleRate,
	}, nil
}

// IsVAD 实现VAD接口
func (s *SileroVAD) IsVAD(pcmData []float32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	segments, err := s.detector.Detect(pcmData)
	if err != nil {
		log.Errorf("silero检测失败: %v", err)
		return false, err
	}

	for _, seg := range segments {
		log.Debugf("speech starts at %0.2fs", seg.SpeechStartAt)
		if seg.SpeechEndAt > 0 {
			log.Debugf("speech ends at %0.2fs", seg.SpeechEndAt)
		}
	}

	return len(segments) > 0, nil
}

// Reset 重置检测器状态
func (s *SileroVAD) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detector.Reset()
}

// Close 销毁detector，释放onnx会话
func (s *SileroVAD) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detector != nil {
		err := s.detector.Destroy()
		s.detector = nil
		return err
	}
	return nil
}
