package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"homey-assistant-golang/constants"
	"homey-assistant-golang/internal/domain/stt/types"
	"homey-assistant-golang/internal/util"
	log "homey-assistant-golang/logger"
)

const recognizeURL = "https://speech.googleapis.com/v1/speech:recognize"

// GoogleStt Google Cloud Speech-to-Text REST实现
// 接口本身是整段识别，流式入口在输入结束后做一次批量识别
type GoogleStt struct {
	apiKey      string
	model       string
	languages   []string
	punctuate   bool
	sampleRate  int
	httpClient  *http.Client
	requestTimeout time.Duration
}

// NewGoogleStt 创建Google STT实例
func NewGoogleStt(config map[string]interface{}) (*GoogleStt, error) {
	apiKey, _ := config["api_key"].(string)
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Google STT缺少api_key配置")
	}

	model, _ := config["model"].(string)
	if model == "" {
		model = constants.DefaultSttModel
	}

	languages, _ := config["languages"].([]string)
	if len(languages) == 0 {
		languages = []string{constants.DefaultSttLanguage}
	}

	punctuate, _ := config["punctuate"].(bool)

	sampleRate, _ := config["sample_rate"].(int)
	if sampleRate == 0 {
		sampleRate = constants.AudioSampleRate
	}

	return &GoogleStt{
		apiKey:         apiKey,
		model:          model,
		languages:      languages,
		punctuate:      punctuate,
		sampleRate:     sampleRate,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		requestTimeout: 60 * time.Second,
	}, nil
}

// recognizeRequest speech:recognize请求体
type recognizeRequest struct {
	Config recognizeConfig `json:"config"`
	Audio  recognizeAudio  `json:"audio"`
}

type recognizeConfig struct {
	Encoding                   string   `json:"encoding"`
	SampleRateHertz            int      `json:"sampleRateHertz"`
	LanguageCode               string   `json:"languageCode"`
	AlternativeLanguageCodes   []string `json:"alternativeLanguageCodes,omitempty"`
	Model                      string   `json:"model,omitempty"`
	EnableAutomaticPunctuation bool     `json:"enableAutomaticPunctuation,omitempty"`
}

type recognizeAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Process 整段识别
func (g *GoogleStt) Process(pcmData []float32) (string, error) {
	if len(pcmData) == 0 {
		return "", nil
	}
	return g.recognize(context.Background(), float32ToLinear16(pcmData))
}

// StreamingRecognize 流式适配
// 批量接口没有增量结果，累积到输入结束后一次识别，只发最终结果
func (g *GoogleStt) StreamingRecognize(ctx context.Context, audioStream <-chan []float32) (chan types.StreamingResult, error) {
	resultChan := make(chan types.StreamingResult, 1)

	go func() {
		defer close(resultChan)

		// 累积LINEAR16字节，SafeBuffer与取消路径并发安全
		var audioBuf util.SafeBuffer
		for {
			select {
			case <-ctx.Done():
				log.Debugf("google stt ctx done, exit")
				return
			case pcm, ok := <-audioStream:
				if !ok {
					text, err := g.recognize(ctx, audioBuf.Bytes())
					if err != nil {
						log.Errorf("google识别失败: %v", err)
						return
					}
					select {
					case resultChan <- types.StreamingResult{Text: text, IsFinal: true}:
					case <-ctx.Done():
					}
					return
				}
				audioBuf.Write(float32ToLinear16(pcm))
			}
		}
	}()

	return resultChan, nil
}

// recognize 调一次speech:recognize
func (g *GoogleStt) recognize(ctx context.Context, linear16 []byte) (string, error) {
	if len(linear16) == 0 {
		return "", nil
	}

	startTs := time.Now().UnixMilli()

	reqBody := recognizeRequest{
		Config: recognizeConfig{
			Encoding:                   "LINEAR16",
			SampleRateHertz:            g.sampleRate,
			LanguageCode:               g.languages[0],
			Model:                      g.model,
			EnableAutomaticPunctuation: g.punctuate,
		},
		Audio: recognizeAudio{Content: base64.StdEncoding.EncodeToString(linear16)},
	}
	if len(g.languages) > 1 {
		reqBody.Config.AlternativeLanguageCodes = g.languages[1:]
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("序列化识别请求失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, recognizeURL+"?key="+g.apiKey, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求Google STT失败: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取识别响应失败: %v", err)
	}

	var result recognizeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("解析识别响应失败: %v", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("Google STT返回错误 %d: %s", result.Error.Code, result.Error.Message)
	}

	var text bytes.Buffer
	for _, r := range result.Results {
		if len(r.Alternatives) > 0 {
			text.WriteString(r.Alternatives[0].Transcript)
		}
	}

	log.Debugf("google识别完成, 音频 %d 字节, 耗时 %d ms, 结果: %s",
		len(linear16), time.Now().UnixMilli()-startTs, text.String())
	return text.String(), nil
}

// float32ToLinear16 float32采样转16-bit小端PCM
func float32ToLinear16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		var intSample int16
		if sample > 1.0 {
			intSample = 32767
		} else if sample < -1.0 {
			intSample = -32768
		} else {
			intSample = int16(sample * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(intSample))
	}
	return out
}
