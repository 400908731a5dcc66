package common

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"gopkg.in/hraban/opus.v2"

	log "homey-assistant-golang/logger"
)

// WavToOpus 将整段WAV音频转为opus帧序列
// sampleRate/channels为0时使用WAV文件头里的参数
func WavToOpus(wavData []byte, sampleRate int, channels int, frameDuration int) ([][]byte, error) {
	wavDecoder := wav.NewDecoder(bytes.NewReader(wavData))
	if !wavDecoder.IsValidFile() {
		return nil, fmt.Errorf("无效的WAV文件")
	}

	wavDecoder.ReadInfo()
	format := wavDecoder.Format()
	if sampleRate == 0 {
		sampleRate = int(format.SampleRate)
	}
	if channels == 0 {
		channels = int(format.NumChannels)
	}
	if frameDuration == 0 {
		frameDuration = 20
	}

	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("创建Opus编码器失败: %v", err)
	}

	frameSize := sampleRate * frameDuration / 1000
	pcmBuffer := make([]int16, frameSize*channels)
	opusBuffer := make([]byte, 1000)

	audioBuf := &audio.IntBuffer{Data: make([]int, frameSize*channels), Format: format}

	opusFrames := make([][]byte, 0)
	for {
		n, err := wavDecoder.PCMBuffer(audioBuf)
		if err == io.EOF || n == 0 {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取WAV数据失败: %v", err)
		}

		// 不足一帧时尾部补零
		for i := 0; i < len(pcmBuffer); i++ {
			if i < n {
				pcmBuffer[i] = int16(audioBuf.Data[i])
			} else {
				pcmBuffer[i] = 0
			}
		}

		encoded, err := enc.Encode(pcmBuffer, opusBuffer)
		if err != nil {
			return nil, fmt.Errorf("opus编码失败: %v", err)
		}

		frameData := make([]byte, encoded)
		copy(frameData, opusBuffer[:encoded])
		opusFrames = append(opusFrames, frameData)
	}

	return opusFrames, nil
}

// AudioDecoder 云端音频流到opus帧的转换器
// 支持wav(带头)/pcm(裸流)/mp3三种输入，统一输出单声道opus帧
type AudioDecoder struct {
	pipeReader         io.ReadCloser
	outputOpusChan     chan []byte
	perFrameDurationMs int
	audioFormat        string

	format beep.Format // pcm裸流时的采样参数
	ctx    context.Context
}

// CreateAudioDecoder 创建转换器，Run在独立goroutine中驱动
func CreateAudioDecoder(ctx context.Context, pipeReader io.ReadCloser, outputOpusChan chan []byte, perFrameDurationMs int, audioFormat string) (*AudioDecoder, error) {
	if perFrameDurationMs == 0 {
		perFrameDurationMs = 20
	}
	return &AudioDecoder{
		pipeReader:         pipeReader,
		outputOpusChan:     outputOpusChan,
		perFrameDurationMs: perFrameDurationMs,
		audioFormat:        audioFormat,
		ctx:                ctx,
	}, nil
}

// WithFormat 设置pcm裸流的采样参数
func (d *AudioDecoder) WithFormat(format beep.Format) *AudioDecoder {
	d.format = format
	return d
}

// Run 消费pipeReader直到EOF或ctx取消，结束时关闭输出通道
func (d *AudioDecoder) Run(startTs int64) error {
	switch d.audioFormat {
	case "wav":
		return d.runPcmDecoder(startTs, false)
	case "pcm":
		return d.runPcmDecoder(startTs, true)
	case "mp3":
		return d.runMp3Decoder(startTs)
	}
	return fmt.Errorf("不支持的音频格式: %s", d.audioFormat)
}

// runPcmDecoder wav带44字节头，pcm裸流用WithFormat指定参数
func (d *AudioDecoder) runPcmDecoder(startTs int64, isRaw bool) error {
	defer close(d.outputOpusChan)

	var sampleRate int
	var channels int

	if !isRaw {
		header := make([]byte, 44)
		if _, err := io.ReadFull(d.pipeReader, header); err != nil {
			return fmt.Errorf("读取WAV头部失败: %v", err)
		}
		sampleRate = int(uint32(header[24]) | uint32(header[25])<<8 | uint32(header[26])<<16 | uint32(header[27])<<24)
		channels = int(uint16(header[22]) | uint16(header[23])<<8)
		log.Debugf("WAV格式: %d Hz, %d 通道", sampleRate, channels)
	} else {
		sampleRate = int(d.format.SampleRate)
		channels = d.format.NumChannels
		log.Debugf("原始PCM格式: %d Hz, %d 通道", sampleRate, channels)
	}
	if sampleRate == 0 || channels == 0 {
		return fmt.Errorf("非法的音频参数: %d Hz, %d 通道", sampleRate, channels)
	}

	// 多声道取均值压成单声道输出
	enc, err := opus.NewEncoder(sampleRate, 1, opus.AppAudio)
	if err != nil {
		return fmt.Errorf("创建Opus编码器失败: %v", err)
	}

	frameSize := sampleRate * d.perFrameDurationMs / 1000
	pcmBuffer := make([]int16, frameSize)
	opusBuffer := make([]byte, 1000)
	rawBuffer := make([]byte, frameSize*channels*2)
	currentFramePos := 0
	var firstFrame bool

	for {
		select {
		case <-d.ctx.Done():
			log.Debugf("pcmDecoder context done, exit")
			return nil
		default:
		}

		n, err := d.pipeReader.Read(rawBuffer)
		if err == io.EOF {
			// 剩余不足一帧的数据补零编码
			if currentFramePos > 0 {
				paddedFrame := make([]int16, frameSize)
				copy(paddedFrame, pcmBuffer[:currentFramePos])
				if n, err := enc.Encode(paddedFrame, opusBuffer); err == nil {
					frameData := make([]byte, n)
					copy(frameData, opusBuffer[:n])
					d.emit(frameData)
				}
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("读取PCM数据失败: %v", err)
		}

		samplesRead := n / (2 * channels)
		for i := 0; i < samplesRead; i++ {
			var sampleSum int32
			for ch := 0; ch < channels; ch++ {
				pos := i*channels*2 + ch*2
				sample := int16(uint16(rawBuffer[pos]) | uint16(rawBuffer[pos+1])<<8)
				sampleSum += int32(sample)
			}
			pcmBuffer[currentFramePos] = int16(sampleSum / int32(channels))
			currentFramePos++

			if currentFramePos == frameSize {
				if n, err := enc.Encode(pcmBuffer, opusBuffer); err == nil {
					frameData := make([]byte, n)
					copy(frameData, opusBuffer[:n])

					if !firstFrame {
						firstFrame = true
						log.Debugf("tts云端->首帧解码完成耗时: %d ms", time.Now().UnixMilli()-startTs)
					}
					if !d.emit(frameData) {
						return nil
					}
				}
				currentFramePos = 0
			}
		}
	}
}

func (d *AudioDecoder) runMp3Decoder(startTs int64) error {
	defer close(d.outputOpusChan)

	streamer, format, err := mp3.Decode(d.pipeReader)
	if err != nil {
		return fmt.Errorf("创建MP3解码器失败: %v", err)
	}
	defer streamer.Close()
	log.Debugf("MP3格式: %d Hz, %d 通道", format.SampleRate, format.NumChannels)

	sampleRate := int(format.SampleRate)
	enc, err := opus.NewEncoder(sampleRate, 1, opus.AppAudio)
	if err != nil {
		return fmt.Errorf("创建Opus编码器失败: %v", err)
	}

	frameSize := sampleRate * d.perFrameDurationMs / 1000
	pcmBuffer := make([]int16, frameSize)
	mp3Buffer := make([][2]float64, 1024)
	opusBuffer := make([]byte, 1000)

	currentFramePos := 0
	var firstFrame bool
	for {
		select {
		case <-d.ctx.Done():
			log.Debugf("mp3Decoder context done, exit")
			return nil
		default:
		}

		n, ok := streamer.Stream(mp3Buffer)
		if !ok {
			if currentFramePos > 0 {
				paddedFrame := make([]int16, frameSize)
				copy(paddedFrame, pcmBuffer[:currentFramePos])
				if n, err := enc.Encode(paddedFrame, opusBuffer); err == nil {
					frameData := make([]byte, n)
					copy(frameData, opusBuffer[:n])
					d.emit(frameData)
				} else {
					return fmt.Errorf("编码剩余数据失败: %v", err)
				}
			}
			return nil
		}
		if n == 0 {
			continue
		}

		for i := 0; i < n; i++ {
			// 浮点阶段求均值，避免int16相加溢出
			monoSampleFloat := (mp3Buffer[i][0] + mp3Buffer[i][1]) * 0.5
			if monoSampleFloat > 1.0 {
				monoSampleFloat = 1.0
			} else if monoSampleFloat < -1.0 {
				monoSampleFloat = -1.0
			}
			pcmBuffer[currentFramePos] = int16(monoSampleFloat * 32767.0)
			currentFramePos++

			if currentFramePos == frameSize {
				opusLen, err := enc.Encode(pcmBuffer, opusBuffer)
				if err != nil {
					log.Errorf("opus编码失败: %v", err)
					currentFramePos = 0
					continue
				}
				frameData := make([]byte, opusLen)
				copy(frameData, opusBuffer[:opusLen])

				if !firstFrame {
					firstFrame = true
					log.Debugf("tts云端->首帧解码完成耗时: %d ms", time.Now().UnixMilli()-startTs)
				}
				if !d.emit(frameData) {
					return nil
				}
				currentFramePos = 0
			}
		}
	}
}

// emit 发送一帧，ctx取消时返回false
func (d *AudioDecoder) emit(frame []byte) bool {
	select {
	case <-d.ctx.Done():
		return false
	case d.outputOpusChan <- frame:
		return true
	}
}
