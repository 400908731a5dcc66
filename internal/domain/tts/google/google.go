package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"homey-assistant-golang/constants"
	"homey-assistant-golang/internal/domain/tts/common"
	log "homey-assistant-golang/logger"
)

const synthesizeURL = "https://texttospeech.googleapis.com/v1/text:synthesize"

// 全局HTTP客户端，实现连接池
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
			Timeout:   30 * time.Second,
		}
	})
	return httpClient
}

// GoogleTTSProvider Google Cloud Text-to-Speech REST实现
// 输出LINEAR16(WAV)再转成opus帧
type GoogleTTSProvider struct {
	APIKey       string
	VoiceName    string
	Gender       string
	Language     string
	SpeakingRate float64
}

// NewGoogleTTSProvider 创建Google TTS实例
func NewGoogleTTSProvider(config map[string]interface{}) (*GoogleTTSProvider, error) {
	apiKey, _ := config["api_key"].(string)
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Google TTS缺少api_key配置")
	}

	voiceName, _ := config["voice_name"].(string)
	gender, _ := config["gender"].(string)
	language, _ := config["language"].(string)
	speakingRate, _ := config["speaking_rate"].(float64)

	if voiceName == "" {
		voiceName = constants.DefaultVoiceName
	}
	if gender == "" {
		gender = constants.DefaultVoiceGender
	}
	if language == "" {
		language = constants.DefaultLanguage
	}
	if speakingRate == 0 {
		speakingRate = constants.DefaultSpeakingRate
	}

	return &GoogleTTSProvider{
		APIKey:       apiKey,
		VoiceName:    voiceName,
		Gender:       gender,
		Language:     language,
		SpeakingRate: speakingRate,
	}, nil
}

// synthesizeRequest text:synthesize请求体
type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name,omitempty"`
		SsmlGender   string `json:"ssmlGender,omitempty"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding   string  `json:"audioEncoding"`
		SampleRateHertz int     `json:"sampleRateHertz,omitempty"`
		SpeakingRate    float64 `json:"speakingRate,omitempty"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
	Error        *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ssmlGender API要求大写枚举
func ssmlGender(gender string) string {
	switch gender {
	case "male":
		return "MALE"
	case "female":
		return "FEMALE"
	case "neutral":
		return "NEUTRAL"
	}
	return ""
}

// synthesize 调一次text:synthesize，返回带WAV头的LINEAR16数据
func (p *GoogleTTSProvider) synthesize(ctx context.Context, text string, sampleRate int) ([]byte, error) {
	var reqBody synthesizeRequest
	reqBody.Input.Text = text
	reqBody.Voice.LanguageCode = p.Language
	reqBody.Voice.Name = p.VoiceName
	reqBody.Voice.SsmlGender = ssmlGender(p.Gender)
	reqBody.AudioConfig.AudioEncoding = "LINEAR16"
	reqBody.AudioConfig.SampleRateHertz = sampleRate
	reqBody.AudioConfig.SpeakingRate = p.SpeakingRate

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化合成请求失败: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, synthesizeURL+"?key="+p.APIKey, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求Google TTS失败: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取合成响应失败: %v", err)
	}

	var result synthesizeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("解析合成响应失败: %v", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("Google TTS返回错误 %d: %s", result.Error.Code, result.Error.Message)
	}

	audioData, err := base64.StdEncoding.DecodeString(result.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("解码音频数据失败: %v", err)
	}
	return audioData, nil
}

// TextToSpeech 一次性合成，返回全部opus帧
func (p *GoogleTTSProvider) TextToSpeech(ctx context.Context, text string, sampleRate int, channels int, frameDuration int) ([][]byte, error) {
	startTs := time.Now().UnixMilli()

	wavData, err := p.synthesize(ctx, text, sampleRate)
	if err != nil {
		return nil, err
	}
	log.Debugf("google合成完成, %d 字节, 耗时 %d ms", len(wavData), time.Now().UnixMilli()-startTs)

	return common.WavToOpus(wavData, sampleRate, channels, frameDuration)
}

// TextToSpeechStream 流式出口
// 批量接口一次返回整段音频，转码阶段按帧吐出降低首帧延迟
func (p *GoogleTTSProvider) TextToSpeechStream(ctx context.Context, text string, sampleRate int, channels int, frameDuration int) (chan []byte, error) {
	startTs := time.Now().UnixMilli()
	outputChan := make(chan []byte, 100)

	go func() {
		wavData, err := p.synthesize(ctx, text, sampleRate)
		if err != nil {
			log.Errorf("google合成失败: %v", err)
			close(outputChan)
			return
		}

		wavDecoder, err := common.CreateAudioDecoder(ctx, io.NopCloser(bytes.NewReader(wavData)), outputChan, frameDuration, "wav")
		if err != nil {
			log.Errorf("创建WAV解码器失败: %v", err)
			close(outputChan)
			return
		}
		if err := wavDecoder.Run(startTs); err != nil {
			log.Errorf("WAV解码失败: %v", err)
		}
	}()

	return outputChan, nil
}
