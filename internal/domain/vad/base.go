package vad

import (
	"errors"

	"homey-assistant-golang/constants"
	"homey-assistant-golang/internal/domain/vad/inter"
	"homey-assistant-golang/internal/domain/vad/silero_vad"
	"homey-assistant-golang/internal/domain/vad/webrtc_vad"
)

// AcquireVAD 按提供商从对应资源池借出一个检测器
func AcquireVAD(provider string, config map[string]interface{}) (inter.VAD, error) {
	switch provider {
	case constants.VadTypeSileroVad:
		return silero_vad.AcquireVAD(config)
	case constants.VadTypeWebRTCVad:
		return webrtc_vad.AcquireVAD(config)
	default:
		return nil, errors.New("invalid vad provider")
	}
}

// ReleaseVAD 按实例类型归还到对应资源池
func ReleaseVAD(v inter.VAD) error {
	switch v.(type) {
	case *webrtc_vad.WebRTCVAD:
		return webrtc_vad.ReleaseVAD(v)
	case *silero_vad.SileroVAD:
		return silero_vad.ReleaseVAD(v)
	default:
		return errors.New("invalid vad type")
	}
}
