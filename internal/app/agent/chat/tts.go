package chat

import (
	"context"
	"fmt"
	"time"

	"homey-assistant-golang/constants"
	llm_common "homey-assistant-golang/internal/domain/llm/common"
	"homey-assistant-golang/internal/domain/tts"
	"homey-assistant-golang/internal/util"
	log "homey-assistant-golang/logger"
)

// AudioOut 音频出口，房间传输层实现
type AudioOut interface {
	// WriteFrame 发送一帧opus音频
	WriteFrame(frame []byte) error
}

type TTSQueueItem struct {
	ctx         context.Context
	llmResponse llm_common.LLMResponseStruct
	onEndFunc   func(err error)
}

// TTSManager 消费句子队列，合成后按帧时长匀速推到房间
type TTSManager struct {
	ttsProvider tts.TTSProvider
	audioOut    AudioOut
	ttsQueue    *util.Queue[TTSQueueItem]
}

func NewTTSManager(ttsProvider tts.TTSProvider, audioOut AudioOut) *TTSManager {
	return &TTSManager{
		ttsProvider: ttsProvider,
		audioOut:    audioOut,
		ttsQueue:    util.NewQueue[TTSQueueItem](10),
	}
}

// Start 启动队列消费循环，阻塞到ctx取消
func (t *TTSManager) Start(ctx context.Context) {
	for {
		item, err := t.ttsQueue.Pop(ctx, 0)
		if err != nil {
			if err == util.ErrQueueCtxDone {
				return
			}
			continue
		}
		err = t.handleTts(item.ctx, item.llmResponse)
		if item.onEndFunc != nil {
			item.onEndFunc(err)
		}
	}
}

func (t *TTSManager) ClearTTSQueue() {
	t.ttsQueue.Clear()
}

// handleTextResponse 句子入队，isSync时等本句播完再返回
func (t *TTSManager) handleTextResponse(ctx context.Context, llmResponse llm_common.LLMResponseStruct, isSync bool) error {
	if llmResponse.Text == "" {
		return nil
	}

	item := TTSQueueItem{ctx: ctx, llmResponse: llmResponse}
	endChan := make(chan bool, 1)
	item.onEndFunc = func(err error) {
		select {
		case endChan <- true:
		default:
		}
	}

	if err := t.ttsQueue.Push(item); err != nil {
		log.Warnf("ttsQueue 已满或已关闭, 丢弃句子: %s", llmResponse.Text)
		return err
	}

	if isSync {
		timer := time.NewTimer(30 * time.Second)
		defer timer.Stop()
		select {
		case <-endChan:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("TTS 处理上下文已取消")
		case <-timer.C:
			return fmt.Errorf("TTS 处理超时")
		}
	}

	return nil
}

// handleTts 合成一句并推流
func (t *TTSManager) handleTts(ctx context.Context, llmResponse llm_common.LLMResponseStruct) error {
	if llmResponse.Text == "" {
		return nil
	}

	select {
	case <-ctx.Done():
		return nil
	default:
	}

	outputChan, err := t.ttsProvider.TextToSpeechStream(ctx, llmResponse.Text,
		constants.AudioSampleRate, constants.AudioChannels, constants.AudioFrameDuration)
	if err != nil {
		log.Ctx(ctx).Errorf("生成 TTS 音频失败: %v", err)
		return fmt.Errorf("生成 TTS 音频失败: %v", err)
	}

	log.Ctx(ctx).Debugf("tts开始播放: %s", llmResponse.Text)
	if err := t.sendTTSAudio(ctx, outputChan); err != nil {
		return fmt.Errorf("发送 TTS 音频失败: %s, %v", llmResponse.Text, err)
	}
	return nil
}

// sendTTSAudio 前几帧立即发建立缓冲，之后按帧时长定时发
func (t *TTSManager) sendTTSAudio(ctx context.Context, audioChan chan []byte) error {
	totalFrames := 0

	// 先发60ms音频打底，避免起播卡顿
	firstFrameCount := 60 / constants.AudioFrameDuration
	if firstFrameCount < 3 {
		firstFrameCount = 3
	}
	for totalFrames < firstFrameCount {
		select {
		case <-ctx.Done():
			log.Debugf("sendTTSAudio context done, exit, totalFrames: %d", totalFrames)
			return nil
		case frame, ok := <-audioChan:
			if !ok {
				return nil
			}
			if err := t.audioOut.WriteFrame(frame); err != nil {
				return err
			}
			totalFrames++
		}
	}

	ticker := time.NewTicker(time.Duration(constants.AudioFrameDuration) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debugf("sendTTSAudio context done, exit, totalFrames: %d", totalFrames)
			return nil
		case <-ticker.C:
			select {
			case frame, ok := <-audioChan:
				if !ok {
					return nil
				}
				if err := t.audioOut.WriteFrame(frame); err != nil {
					return err
				}
				totalFrames++
			default:
				// 解码没跟上，等下一个周期
			}
		}
	}
}
