package types

// StreamingResult 流式识别的单条结果
type StreamingResult struct {
	// Text 识别文本
	Text string
	// IsFinal 是否为最终结果
	IsFinal bool
}
