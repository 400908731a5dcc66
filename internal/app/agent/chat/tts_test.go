package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llm_common "homey-assistant-golang/internal/domain/llm/common"
)

type fakeAudioOut struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeAudioOut) WriteFrame(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeAudioOut) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// fakeTTSProvider 返回固定帧序列
type fakeTTSProvider struct {
	frames [][]byte
}

func (f *fakeTTSProvider) TextToSpeech(ctx context.Context, text string, sampleRate int, channels int, frameDuration int) ([][]byte, error) {
	return f.frames, nil
}

func (f *fakeTTSProvider) TextToSpeechStream(ctx context.Context, text string, sampleRate int, channels int, frameDuration int) (chan []byte, error) {
	ch := make(chan []byte, len(f.frames))
	for _, frame := range f.frames {
		ch <- frame
	}
	close(ch)
	return ch, nil
}

func testFrames(n int) [][]byte {
	frames := make([][]byte, n)
	for i := range frames {
		frames[i] = []byte{byte(i), 0xAA}
	}
	return frames
}

func TestHandleTtsSendsAllFrames(t *testing.T) {
	out := &fakeAudioOut{}
	manager := NewTTSManager(&fakeTTSProvider{frames: testFrames(5)}, out)

	err := manager.handleTts(context.Background(), llm_common.LLMResponseStruct{Text: "你好。"})
	require.NoError(t, err)
	assert.Equal(t, 5, out.count())
}

func TestHandleTtsEmptyText(t *testing.T) {
	out := &fakeAudioOut{}
	manager := NewTTSManager(&fakeTTSProvider{frames: testFrames(3)}, out)

	err := manager.handleTts(context.Background(), llm_common.LLMResponseStruct{Text: ""})
	require.NoError(t, err)
	assert.Zero(t, out.count(), "空文本不应触发合成")
}

func TestHandleTextResponseSync(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &fakeAudioOut{}
	manager := NewTTSManager(&fakeTTSProvider{frames: testFrames(3)}, out)
	go manager.Start(ctx)

	// 同步模式等本句播完才返回
	err := manager.handleTextResponse(ctx, llm_common.LLMResponseStruct{Text: "好的。"}, true)
	require.NoError(t, err)
	assert.Equal(t, 3, out.count())
}

func TestHandleTtsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := &fakeAudioOut{}
	manager := NewTTSManager(&fakeTTSProvider{frames: testFrames(10)}, out)

	err := manager.handleTts(ctx, llm_common.LLMResponseStruct{Text: "这句不该播"})
	require.NoError(t, err)
	assert.Zero(t, out.count())
}

func TestClearTTSQueue(t *testing.T) {
	manager := NewTTSManager(&fakeTTSProvider{}, &fakeAudioOut{})

	for i := 0; i < 5; i++ {
		err := manager.ttsQueue.Push(TTSQueueItem{
			ctx:         context.Background(),
			llmResponse: llm_common.LLMResponseStruct{Text: "排队中"},
		})
		require.NoError(t, err)
	}
	manager.ClearTTSQueue()

	_, err := manager.ttsQueue.Pop(context.Background(), -1)
	assert.Error(t, err, "清空后队列应为空")

	// 清空后还能继续入队
	err = manager.ttsQueue.Push(TTSQueueItem{ctx: context.Background()})
	assert.NoError(t, err)
}
