package deepgram

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"homey-assistant-golang/constants"
	"homey-assistant-golang/internal/domain/stt/types"
	log "homey-assistant-golang/logger"
)

const listenHost = "api.deepgram.com"

// DeepgramStt Deepgram实时识别，websocket双向流
type DeepgramStt struct {
	apiKey         string
	model          string
	language       string
	punctuate      bool
	smartFormat    *bool
	interimResults *bool
	sampleRate     int

	connectTimeout time.Duration
}

// NewDeepgramStt 创建Deepgram STT实例
func NewDeepgramStt(config map[string]interface{}) (*DeepgramStt, error) {
	apiKey, _ := config["api_key"].(string)
	if apiKey == "" {
		apiKey = os.Getenv("DEEPGRAM_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Deepgram STT缺少api_key配置")
	}

	model, _ := config["model"].(string)
	if model == "" {
		model = constants.DefaultDeepgramModel
	}

	language, _ := config["language"].(string)
	if language == "" {
		language = constants.DefaultSttLanguage
	}

	punctuate, _ := config["punctuate"].(bool)

	sampleRate, _ := config["sample_rate"].(int)
	if sampleRate == 0 {
		sampleRate = constants.AudioSampleRate
	}

	d := &DeepgramStt{
		apiKey:         apiKey,
		model:          model,
		language:       language,
		punctuate:      punctuate,
		sampleRate:     sampleRate,
		connectTimeout: 10 * time.Second,
	}

	// 可选参数只有设置了才放进查询串，服务端自己定默认值
	if smartFormat, ok := config["smart_format"].(bool); ok {
		d.smartFormat = &smartFormat
	}
	if interimResults, ok := config["interim_results"].(bool); ok {
		d.interimResults = &interimResults
	}

	return d, nil
}

// listenURL 拼接 /v1/listen 的查询参数
func (d *DeepgramStt) listenURL() string {
	query := url.Values{}
	query.Set("model", d.model)
	query.Set("language", d.language)
	query.Set("punctuate", strconv.FormatBool(d.punctuate))
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(d.sampleRate))
	query.Set("channels", strconv.Itoa(constants.AudioChannels))
	if d.smartFormat != nil {
		query.Set("smart_format", strconv.FormatBool(*d.smartFormat))
	}
	if d.interimResults != nil {
		query.Set("interim_results", strconv.FormatBool(*d.interimResults))
	}

	u := url.URL{Scheme: "wss", Host: listenHost, Path: "/v1/listen", RawQuery: query.Encode()}
	return u.String()
}

func (d *DeepgramStt) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.connectTimeout}
	header := http.Header{}
	header.Set("Authorization", "Token "+d.apiKey)

	conn, resp, err := dialer.DialContext(ctx, d.listenURL(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("连接Deepgram失败, 状态码 %d: %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("连接Deepgram失败: %v", err)
	}
	return conn, nil
}

// Process 整段识别，内部走一次流式会话
func (d *DeepgramStt) Process(pcmData []float32) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	audioStream := make(chan []float32, 1)
	audioStream <- pcmData
	close(audioStream)

	resultChan, err := d.StreamingRecognize(ctx, audioStream)
	if err != nil {
		return "", err
	}

	var text string
	for result := range resultChan {
		if result.IsFinal {
			text += result.Text
		}
	}
	return text, nil
}

// listenResult Deepgram识别结果消息
type listenResult struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// StreamingRecognize 流式识别
// 写goroutine发送PCM帧，输入结束后发CloseStream；读循环转发结果直到服务端关闭
func (d *DeepgramStt) StreamingRecognize(ctx context.Context, audioStream <-chan []float32) (chan types.StreamingResult, error) {
	conn, err := d.dial(ctx)
	if err != nil {
		return nil, err
	}

	resultChan := make(chan types.StreamingResult, 10)
	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { conn.Close() }) }

	// 发送音频
	go func() {
		startTs := time.Now().UnixMilli()
		frames := 0
		for {
			select {
			case <-ctx.Done():
				log.Debugf("deepgram发送端 ctx done, exit")
				closeConn()
				return
			case pcm, ok := <-audioStream:
				if !ok {
					// 输入结束，通知服务端产出最终结果
					closeMsg, _ := json.Marshal(map[string]string{"type": "CloseStream"})
					if err := conn.WriteMessage(websocket.TextMessage, closeMsg); err != nil {
						log.Errorf("发送CloseStream失败: %v", err)
						closeConn()
					}
					log.Debugf("deepgram音频发送完毕, %d 帧, 耗时 %d ms", frames, time.Now().UnixMilli()-startTs)
					return
				}
				if err := conn.WriteMessage(websocket.BinaryMessage, float32ToLinear16(pcm)); err != nil {
					log.Errorf("发送音频帧失败: %v", err)
					closeConn()
					return
				}
				frames++
			}
		}
	}()

	// 接收结果
	go func() {
		defer close(resultChan)
		defer closeConn()

		for {
			select {
			case <-ctx.Done():
				log.Debugf("deepgram接收端 ctx done, exit")
				return
			default:
			}

			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Debugf("deepgram连接正常关闭")
				} else {
					log.Errorf("读取识别结果失败: %v", err)
				}
				return
			}

			var result listenResult
			if err := json.Unmarshal(message, &result); err != nil {
				log.Warnf("解析识别结果失败: %v, 原文: %s", err, string(message))
				continue
			}
			if result.Type != "Results" || len(result.Channel.Alternatives) == 0 {
				continue
			}

			transcript := result.Channel.Alternatives[0].Transcript
			if transcript == "" && !result.IsFinal {
				continue
			}

			select {
			case resultChan <- types.StreamingResult{Text: transcript, IsFinal: result.IsFinal}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return resultChan, nil
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
