package edge

import (
	"context"
	"io"
	"time"

	"github.com/difyz9/edge-tts-go/pkg/communicate"

	"homey-assistant-golang/constants"
	"homey-assistant-golang/internal/domain/tts/common"
	log "homey-assistant-golang/logger"
)

// EdgeTTSProvider 微软Edge在线合成，MP3流转opus帧
// 配置参数：voice, rate, volume, pitch, connect_timeout, receive_timeout
type EdgeTTSProvider struct {
	Voice          string
	Rate           string
	Volume         string
	Pitch          string
	ConnectTimeout int
	ReceiveTimeout int
}

// NewEdgeTTSProvider 创建Edge TTS实例
func NewEdgeTTSProvider(config map[string]interface{}) *EdgeTTSProvider {
	voice, _ := config["voice"].(string)
	rate, _ := config["rate"].(string)
	volume, _ := config["volume"].(string)
	pitch, _ := config["pitch"].(string)
	connectTimeout, _ := config["connect_timeout"].(int)
	receiveTimeout, _ := config["receive_timeout"].(int)
	if voice == "" {
		voice = constants.DefaultEdgeVoice
	}
	if rate == "" {
		rate = "+0%"
	}
	if volume == "" {
		volume = "+0%"
	}
	if pitch == "" {
		pitch = "+0Hz"
	}
	if connectTimeout == 0 {
		connectTimeout = 10
	}
	if receiveTimeout == 0 {
		receiveTimeout = 60
	}
	return &EdgeTTSProvider{
		Voice:          voice,
		Rate:           rate,
		Volume:         volume,
		Pitch:          pitch,
		ConnectTimeout: connectTimeout,
		ReceiveTimeout: receiveTimeout,
	}
}

// TextToSpeech 一次性合成，返回全部opus帧
func (p *EdgeTTSProvider) TextToSpeech(ctx context.Context, text string, sampleRate int, channels int, frameDuration int) ([][]byte, error) {
	outputChan, err := p.TextToSpeechStream(ctx, text, sampleRate, channels, frameDuration)
	if err != nil {
		return nil, err
	}

	var opusFrames [][]byte
	for frame := range outputChan {
		opusFrames = append(opusFrames, frame)
	}
	return opusFrames, nil
}

// TextToSpeechStream 流式合成，MP3分片边到边转opus帧
func (p *EdgeTTSProvider) TextToSpeechStream(ctx context.Context, text string, sampleRate int, channels int, frameDuration int) (chan []byte, error) {
	startTs := time.Now().UnixMilli()

	comm, err := communicate.NewCommunicate(
		text,
		p.Voice,
		p.Rate,
		p.Volume,
		p.Pitch,
		"", // proxy
		p.ConnectTimeout,
		p.ReceiveTimeout,
	)
	if err != nil {
		log.Errorf("EdgeTTS Communicate创建失败: %v", err)
		return nil, err
	}

	chunkChan, errChan := comm.Stream(ctx)
	outputChan := make(chan []byte, 100)
	pipeReader, pipeWriter := io.Pipe()

	// 搬运MP3分片到pipe
	go func() {
		defer func() {
			pipeWriter.Close()
			log.Debugf("EdgeTTS流式合成结束, 耗时 %d ms", time.Now().UnixMilli()-startTs)
			if err := <-errChan; err != nil {
				log.Errorf("EdgeTTS流式合成出错: %v", err)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				log.Debugf("EdgeTTS Stream context done, exit")
				return
			case chunk, ok := <-chunkChan:
				if !ok {
					return
				}
				if chunk.Type == "audio" {
					_, _ = pipeWriter.Write(chunk.Data)
				}
			}
		}
	}()

	// MP3→Opus解码
	go func() {
		mp3Decoder, err := common.CreateAudioDecoder(ctx, pipeReader, outputChan, frameDuration, "mp3")
		if err != nil {
			log.Errorf("EdgeTTS MP3解码器创建失败: %v", err)
			close(outputChan)
			return
		}
		if err := mp3Decoder.Run(startTs); err != nil {
			log.Errorf("EdgeTTS MP3解码失败: %v", err)
		}
	}()

	return outputChan, nil
}
