package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep"

	"homey-assistant-golang/constants"
	"homey-assistant-golang/internal/domain/tts/common"
	log "homey-assistant-golang/logger"
)

const apiHost = "https://api.elevenlabs.io"

// pcm输出只支持这几个采样率
const streamSampleRate = 16000

var (
	httpClient     *http.Client
	httpClientOnce sync.Once
)

func getHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		transport := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		httpClient = &http.Client{
			Transport: transport,
			Timeout:   60 * time.Second,
		}
	})
	return httpClient
}

// ElevenlabsTTSProvider ElevenLabs流式合成，裸PCM输出转opus帧
type ElevenlabsTTSProvider struct {
	APIKey  string
	VoiceID string
	Model   string

	// voice_settings 可选项，nil表示不下发走服务端默认
	Stability       *float64
	SimilarityBoost *float64
	Style           *float64
	Speed           *float64
	UseSpeakerBoost *bool
}

// NewElevenlabsTTSProvider 创建ElevenLabs TTS实例
func NewElevenlabsTTSProvider(config map[string]interface{}) (*ElevenlabsTTSProvider, error) {
	apiKey, _ := config["api_key"].(string)
	if apiKey == "" {
		apiKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ElevenLabs TTS缺少api_key配置")
	}

	voiceID, _ := config["voice_id"].(string)
	if voiceID == "" {
		return nil, fmt.Errorf("ElevenLabs TTS缺少voice_id配置")
	}

	model, _ := config["model"].(string)
	if model == "" {
		model = constants.DefaultElevenlabsModel
	}

	p := &ElevenlabsTTSProvider{
		APIKey:  apiKey,
		VoiceID: voiceID,
		Model:   model,
	}

	if stability, ok := config["stability"].(float64); ok {
		p.Stability = &stability
	}
	if similarityBoost, ok := config["similarity_boost"].(float64); ok {
		p.SimilarityBoost = &similarityBoost
	}
	if style, ok := config["style"].(float64); ok {
		p.Style = &style
	}
	if speed, ok := config["speed"].(float64); ok {
		p.Speed = &speed
	}
	if useSpeakerBoost, ok := config["use_speaker_boost"].(bool); ok {
		p.UseSpeakerBoost = &useSpeakerBoost
	}

	return p, nil
}

type voiceSettings struct {
	Stability       *float64 `json:"stability,omitempty"`
	SimilarityBoost *float64 `json:"similarity_boost,omitempty"`
	Style           *float64 `json:"style,omitempty"`
	Speed           *float64 `json:"speed,omitempty"`
	UseSpeakerBoost *bool    `json:"use_speaker_boost,omitempty"`
}

type streamRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// hasVoiceSettings 有任意一项设置时才下发voice_settings
func (p *ElevenlabsTTSProvider) hasVoiceSettings() bool {
	return p.Stability != nil || p.SimilarityBoost != nil || p.Style != nil ||
		p.Speed != nil || p.UseSpeakerBoost != nil
}

// openStream 发起流式合成请求，返回裸PCM16响应体
func (p *ElevenlabsTTSProvider) openStream(ctx context.Context, text string) (io.ReadCloser, error) {
	reqBody := streamRequest{Text: text, ModelID: p.Model}
	if p.hasVoiceSettings() {
		reqBody.VoiceSettings = &voiceSettings{
			Stability:       p.Stability,
			SimilarityBoost: p.SimilarityBoost,
			Style:           p.Style,
			Speed:           p.Speed,
			UseSpeakerBoost: p.UseSpeakerBoost,
		}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化合成请求失败: %v", err)
	}

	query := url.Values{}
	query.Set("output_format", fmt.Sprintf("pcm_%d", streamSampleRate))
	requestURL := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?%s", apiHost, p.VoiceID, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", p.APIKey)

	resp, err := getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求ElevenLabs失败: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ElevenLabs请求失败, 状态码 %d: %s", resp.StatusCode, string(body))
	}

	return resp.Body, nil
}

// TextToSpeech 一次性合成，返回全部opus帧
func (p *ElevenlabsTTSProvider) TextToSpeech(ctx context.Context, text string, sampleRate int, channels int, frameDuration int) ([][]byte, error) {
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

// TextToSpeechStream 流式合成，PCM响应边到边转opus帧
func (p *ElevenlabsTTSProvider) TextToSpeechStream(ctx context.Context, text string, sampleRate int, channels int, frameDuration int) (chan []byte, error) {
	startTs := time.Now().UnixMilli()

	body, err := p.openStream(ctx, text)
	if err != nil {
		return nil, err
	}

	outputChan := make(chan []byte, 100)
	go func() {
		defer body.Close()

		pcmDecoder, err := common.CreateAudioDecoder(ctx, body, outputChan, frameDuration, "pcm")
		if err != nil {
			log.Errorf("创建PCM解码器失败: %v", err)
			close(outputChan)
			return
		}
		pcmDecoder.WithFormat(beep.Format{SampleRate: beep.SampleRate(streamSampleRate), NumChannels: 1, Precision: 2})

		if err := pcmDecoder.Run(startTs); err != nil {
			log.Errorf("PCM解码失败: %v", err)
			return
		}
		log.Debugf("elevenlabs流式合成结束, 耗时 %d ms", time.Now().UnixMilli()-startTs)
	}()

	return outputChan, nil
}
