package webrtc_vad

import (
	"fmt"
	"sync"
	"time"

	"homey-assistant-golang/internal/domain/vad/inter"
	"homey-assistant-golang/internal/util"
)

// WebRTCVADConfig WebRTC VAD 配置
type WebRTCVADConfig struct {
	SampleRate int
	Mode       int
}

// webrtcVADFactory 实现 util.ResourceFactory
type webrtcVADFactory struct {
	config WebRTCVADConfig
}

func (f *webrtcVADFactory) Create() (util.Resource, error) {
	return NewWebRTCVADWithConfig(f.config.SampleRate, f.config.Mode)
}

func (f *webrtcVADFactory) Validate(resource util.Resource) bool {
	vad, ok := resource.(*WebRTCVAD)
	return ok && vad.IsValid()
}

func (f *webrtcVADFactory) Reset(resource util.Resource) error {
	vad, ok := resource.(*WebRTCVAD)
	if !ok {
		return fmt.Errorf("资源类型不是WebRTCVAD")
	}
	return vad.Reset()
}

var (
	vadPool *util.ResourcePool
	once    sync.Once
)

// AcquireVAD 从资源池借出一个实例，首次调用时建池
func AcquireVAD(config map[string]interface{}) (inter.VAD, error) {
	var initErr error
	once.Do(func() {
		poolConfig := util.DefaultConfig()
		poolConfig.MaxSize = 5
		poolConfig.MinSize = 1
		poolConfig.MaxIdle = 3
		poolConfig.IdleTimeout = 2 * time.Minute
		if maxSize, ok := config["pool_max_size"].(int); ok && maxSize > 0 {
			poolConfig.MaxSize = maxSize
		}

		vadConfig := WebRTCVADConfig{SampleRate: DefaultSampleRate, Mode: DefaultMode}
		if sampleRate, ok := config["sample_rate"].(int); ok && sampleRate > 0 {
			vadConfig.SampleRate = sampleRate
		}
		if mode, ok := config["mode"].(int); ok {
			vadConfig.Mode = mode
		}

		vadPool, initErr = util.NewResourcePool(poolConfig, &webrtcVADFactory{config: vadConfig})
	})
	if initErr != nil {
		return nil, fmt.Errorf("创建WebRTC VAD资源池失败: %v", initErr)
	}
	if vadPool == nil {
		return nil, fmt.Errorf("WebRTC VAD资源池未初始化")
	}

	resource, err := vadPool.Acquire()
	if err != nil {
		return nil, err
	}
	vad, ok := resource.(*WebRTCVAD)
	if !ok {
		vadPool.Release(resource)
		return nil, fmt.Errorf("资源池返回了非WebRTCVAD实例")
	}
	return vad, nil
}

// ReleaseVAD 归还实例
func ReleaseVAD(vad inter.VAD) error {
	if vadPool == nil {
		return nil
	}
	webrtcVAD, ok := vad.(*WebRTCVAD)
	if !ok {
		return fmt.Errorf("非WebRTC类型的VAD实例")
	}
	return vadPool.Release(webrtcVAD)
}
