package inter

// VAD 语音活动检测接口
type VAD interface {
	// IsVAD 检测一段16k单声道PCM中是否有语音活动
	IsVAD(pcmData []float32) (bool, error)
	// Reset 重置检测器状态，一段语音结束后调用
	Reset() error
	// Close 关闭并释放资源
	Close() error
}
