package audio

import (
	"errors"
	"fmt"

	"gopkg.in/hraban/opus.v2"

	"homey-assistant-golang/constants"
)

// AudioProcesser 封装opus编解码器
// 房间入站音频解码为16k单声道float32，出站PCM编码为opus帧
type AudioProcesser struct {
	sampleRate       int
	channels         int
	perFrameDuration int
	decoder          *opus.Decoder
	encoder          *opus.Encoder

	pcmBuf []float32
}

func GetAudioProcesser(sampleRate int, channels int, perFrameDuration int) (*AudioProcesser, error) {
	decoder, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	encoder, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, err
	}

	return &AudioProcesser{
		sampleRate:       sampleRate,
		channels:         channels,
		perFrameDuration: perFrameDuration,
		decoder:          decoder,
		encoder:          encoder,
		// opus单包最长120ms
		pcmBuf: make([]float32, sampleRate*channels*120/1000),
	}, nil
}

// GetDefaultProcesser 按进程统一的音频参数创建编解码器
func GetDefaultProcesser() (*AudioProcesser, error) {
	return GetAudioProcesser(constants.AudioSampleRate, constants.AudioChannels, constants.AudioFrameDuration)
}

// FrameSize 每帧采样点数
func (a *AudioProcesser) FrameSize() int {
	return a.sampleRate * a.perFrameDuration / 1000 * a.channels
}

func (a *AudioProcesser) Decoder(audio []byte, pcmData []int16) (int, error) {
	if a.decoder == nil {
		return 0, errors.New("decoder is nil")
	}
	return a.decoder.Decode(audio, pcmData)
}

func (a *AudioProcesser) DecoderFloat32(audio []byte, pcmData []float32) (int, error) {
	if a.decoder == nil {
		return 0, errors.New("decoder is nil")
	}
	return a.decoder.DecodeFloat32(audio, pcmData)
}

// DecodeFrameFloat32 解码一个opus包并拷贝出有效采样
// 解码目标采样率与包内采样率不一致时由opus内部重采样
func (a *AudioProcesser) DecodeFrameFloat32(packet []byte) ([]float32, error) {
	if a.decoder == nil {
		return nil, errors.New("decoder is nil")
	}
	n, err := a.decoder.DecodeFloat32(packet, a.pcmBuf)
	if err != nil {
		return nil, fmt.Errorf("opus解码失败: %v", err)
	}
	out := make([]float32, n*a.channels)
	copy(out, a.pcmBuf[:n*a.channels])
	return out, nil
}

func (a *AudioProcesser) Encoder(pcmData []int16, audio []byte) (int, error) {
	if a.encoder == nil {
		return 0, errors.New("encoder is nil")
	}
	return a.encoder.Encode(pcmData, audio)
}
