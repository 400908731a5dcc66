package common

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeWav 生成一段PCM16正弦波的完整WAV字节
func makeWav(sampleRate, channels, samples int) []byte {
	dataLen := samples * channels * 2
	buf := make([]byte, 0, 44+dataLen)

	byteRate := sampleRate * channels * 2
	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))
	buf = append(buf, header...)

	for i := 0; i < samples; i++ {
		sample := int16(math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)) * 8000)
		for ch := 0; ch < channels; ch++ {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(sample))
		}
	}
	return buf
}

func TestWavToOpus(t *testing.T) {
	// 100ms@16k单声道 -> 5个20ms帧
	wavData := makeWav(16000, 1, 1600)

	frames, err := WavToOpus(wavData, 16000, 1, 20)
	require.NoError(t, err)
	assert.Len(t, frames, 5)
	for i, frame := range frames {
		assert.NotEmpty(t, frame, "第%d帧不应为空", i)
	}
}

func TestWavToOpusUsesHeaderParams(t *testing.T) {
	// 参数传0时从WAV头取采样率和通道数
	wavData := makeWav(16000, 1, 320)

	frames, err := WavToOpus(wavData, 0, 0, 0)
	require.NoError(t, err)
	assert.Len(t, frames, 1)
}

func TestWavToOpusInvalidData(t *testing.T) {
	_, err := WavToOpus([]byte("definitely not a wav"), 16000, 1, 20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "无效的WAV文件")
}

func collectFrames(t *testing.T, ch chan []byte) [][]byte {
	t.Helper()
	var frames [][]byte
	timeout := time.After(5 * time.Second)
	for {
		select {
		case frame, ok := <-ch:
			if !ok {
				return frames
			}
			frames = append(frames, frame)
		case <-timeout:
			t.Fatal("等待opus帧超时")
		}
	}
}

func TestAudioDecoderWav(t *testing.T) {
	pipeReader, pipeWriter := io.Pipe()
	outputChan := make(chan []byte, 100)

	decoder, err := CreateAudioDecoder(context.Background(), pipeReader, outputChan, 20, "wav")
	require.NoError(t, err)

	go func() {
		pipeWriter.Write(makeWav(16000, 1, 1600))
		pipeWriter.Close()
	}()

	errChan := make(chan error, 1)
	go func() { errChan <- decoder.Run(time.Now().UnixMilli()) }()

	frames := collectFrames(t, outputChan)
	assert.Len(t, frames, 5)
	assert.NoError(t, <-errChan)
}

func TestAudioDecoderRawPcm(t *testing.T) {
	pipeReader, pipeWriter := io.Pipe()
	outputChan := make(chan []byte, 100)

	decoder, err := CreateAudioDecoder(context.Background(), pipeReader, outputChan, 20, "pcm")
	require.NoError(t, err)
	decoder.WithFormat(beep.Format{SampleRate: 16000, NumChannels: 1, Precision: 2})

	go func() {
		// 裸PCM不带头: 90ms数据 -> 4整帧+1个补零的尾帧
		pcm := makeWav(16000, 1, 1440)[44:]
		pipeWriter.Write(pcm)
		pipeWriter.Close()
	}()

	errChan := make(chan error, 1)
	go func() { errChan <- decoder.Run(time.Now().UnixMilli()) }()

	frames := collectFrames(t, outputChan)
	assert.Len(t, frames, 5)
	assert.NoError(t, <-errChan)
}

func TestAudioDecoderStereoDownmix(t *testing.T) {
	pipeReader, pipeWriter := io.Pipe()
	outputChan := make(chan []byte, 100)

	decoder, err := CreateAudioDecoder(context.Background(), pipeReader, outputChan, 20, "wav")
	require.NoError(t, err)

	go func() {
		pipeWriter.Write(makeWav(16000, 2, 640))
		pipeWriter.Close()
	}()

	errChan := make(chan error, 1)
	go func() { errChan <- decoder.Run(time.Now().UnixMilli()) }()

	// 双声道压成单声道，帧数只看采样数
	frames := collectFrames(t, outputChan)
	assert.Len(t, frames, 2)
	assert.NoError(t, <-errChan)
}

func TestAudioDecoderUnknownFormat(t *testing.T) {
	pipeReader, _ := io.Pipe()
	decoder, err := CreateAudioDecoder(context.Background(), pipeReader, make(chan []byte, 1), 20, "flac")
	require.NoError(t, err)

	err = decoder.Run(time.Now().UnixMilli())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "不支持的音频格式")
}

func TestAudioDecoderContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeReader, pipeWriter := io.Pipe()
	outputChan := make(chan []byte)

	decoder, err := CreateAudioDecoder(ctx, pipeReader, outputChan, 20, "wav")
	require.NoError(t, err)

	go func() {
		pipeWriter.Write(makeWav(16000, 1, 1600))
		pipeWriter.Close()
	}()

	// 取消后Run应当很快返回且不报错
	done := make(chan error, 1)
	go func() { done <- decoder.Run(time.Now().UnixMilli()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("取消后Run未退出")
	}
}
