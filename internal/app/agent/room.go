package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"homey-assistant-golang/constants"
	"homey-assistant-golang/internal/domain/audio"
	log "homey-assistant-golang/logger"
)

// RoomTarget 要接入的房间
type RoomTarget struct {
	URL       string
	APIKey    string
	APISecret string
	RoomName  string
	Identity  string
}

func (t RoomTarget) validate() error {
	if t.URL == "" {
		return errors.New("房间URL不能为空")
	}
	if t.APIKey == "" || t.APISecret == "" {
		return errors.New("房间API凭证不能为空")
	}
	if t.RoomName == "" {
		return errors.New("房间名不能为空")
	}
	return nil
}

// RoomTransport 会话与房间之间的音频通道
// 出站: TTS的opus帧按帧时长写到发布音轨
// 入站: 订阅到的远端音轨逐包解码成16k单声道PCM交给frameHandler
type RoomTransport struct {
	ctx    context.Context
	target RoomTarget

	room  *lksdk.Room
	track *lksdk.LocalSampleTrack

	frameHandler func(pcm []float32)

	closeOnce sync.Once
	closedCh  chan struct{}
}

func NewRoomTransport(ctx context.Context, target RoomTarget) *RoomTransport {
	return &RoomTransport{
		ctx:      ctx,
		target:   target,
		closedCh: make(chan struct{}),
	}
}

// SetFrameHandler 设置入站PCM帧的回调，必须在Connect之前调用
func (t *RoomTransport) SetFrameHandler(handler func(pcm []float32)) {
	t.frameHandler = handler
}

// Connect 连接房间并发布opus音轨
func (t *RoomTransport) Connect() error {
	if err := t.target.validate(); err != nil {
		return err
	}

	track, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  2,
	})
	if err != nil {
		return fmt.Errorf("创建本地音轨失败: %w", err)
	}

	roomCallback := &lksdk.RoomCallback{
		OnDisconnected: t.onDisconnected,
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: t.onTrackSubscribed,
		},
	}

	room, err := lksdk.ConnectToRoom(t.target.URL, lksdk.ConnectInfo{
		APIKey:              t.target.APIKey,
		APISecret:           t.target.APISecret,
		RoomName:            t.target.RoomName,
		ParticipantIdentity: t.target.Identity,
	}, roomCallback)
	if err != nil {
		return fmt.Errorf("连接房间 %s 失败: %w", t.target.RoomName, err)
	}

	if _, err := room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name: "agent-audio",
	}); err != nil {
		room.Disconnect()
		return fmt.Errorf("发布音轨失败: %w", err)
	}

	t.room = room
	t.track = track
	log.Ctx(t.ctx).Infof("已连接房间 %s, 身份 %s", t.target.RoomName, t.target.Identity)
	return nil
}

// WriteFrame 发送一帧opus音频
func (t *RoomTransport) WriteFrame(frame []byte) error {
	if t.track == nil {
		return errors.New("音轨尚未发布")
	}
	return t.track.WriteSample(media.Sample{
		Data:     frame,
		Duration: time.Duration(constants.AudioFrameDuration) * time.Millisecond,
	}, nil)
}

// Closed 房间断开后关闭
func (t *RoomTransport) Closed() <-chan struct{} {
	return t.closedCh
}

// Disconnect 主动离开房间
func (t *RoomTransport) Disconnect() {
	if t.room != nil {
		t.room.Disconnect()
	}
	t.markClosed()
}

func (t *RoomTransport) onDisconnected() {
	log.Ctx(t.ctx).Infof("房间 %s 连接已断开", t.target.RoomName)
	t.markClosed()
}

func (t *RoomTransport) markClosed() {
	t.closeOnce.Do(func() { close(t.closedCh) })
}

func (t *RoomTransport) onTrackSubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	log.Ctx(t.ctx).Infof("订阅到 %s 的音轨 %s", rp.Identity(), publication.SID())
	go t.readLoop(track)
}

// readLoop 逐包读取远端音轨并解码
// 解码目标固定16k单声道，opus按需内部重采样
func (t *RoomTransport) readLoop(track *webrtc.TrackRemote) {
	processer, err := audio.GetDefaultProcesser()
	if err != nil {
		log.Errorf("创建音频解码器失败: %v", err)
		return
	}

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-t.closedCh:
			return
		default:
		}

		var packet *rtp.Packet
		packet, _, err = track.ReadRTP()
		if err != nil {
			log.Ctx(t.ctx).Debugf("读取远端音轨结束: %v", err)
			return
		}
		if len(packet.Payload) == 0 {
			continue
		}

		pcm, err := processer.DecodeFrameFloat32(packet.Payload)
		if err != nil {
			log.Ctx(t.ctx).Warnf("解码入站音频失败: %v", err)
			continue
		}
		if t.frameHandler != nil {
			t.frameHandler(pcm)
		}
	}
}
