package agent

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"homey-assistant-golang/constants"
	"homey-assistant-golang/internal/domain/mcp"
	"homey-assistant-golang/internal/domain/vad"
	"homey-assistant-golang/internal/domain/vad/silero_vad"
	log "homey-assistant-golang/logger"
)

// App 进程入口: 预热共享资源，然后跑一个房间会话直到结束
type App struct {
	sessionManager *SessionManager

	vadProvider string
	vadConfig   map[string]interface{}
}

func NewApp() *App {
	return &App{
		sessionManager: NewSessionManager(),
	}
}

// vadConfigFromViper 资源池工厂吃的是带类型的map，这里把viper的值转成约定类型
func vadConfigFromViper() map[string]interface{} {
	config := map[string]interface{}{
		"model_path":  viper.GetString("vad.model_path"),
		"sample_rate": constants.AudioSampleRate,
	}
	if threshold := viper.GetFloat64("vad.threshold"); threshold > 0 {
		config["threshold"] = threshold
	}
	if silenceMs := viper.GetInt64("vad.min_silence_duration_ms"); silenceMs > 0 {
		config["min_silence_duration_ms"] = silenceMs
	}
	if padMs := viper.GetInt("vad.speech_pad_ms"); padMs > 0 {
		config["speech_pad_ms"] = padMs
	}
	if poolSize := viper.GetInt("vad.pool_size"); poolSize > 0 {
		config["pool_size"] = poolSize
		config["pool_max_size"] = poolSize
	}
	if mode := viper.GetInt("vad.mode"); mode > 0 {
		config["mode"] = mode
	}
	return config
}

// PreWarm 进程预热: 加载VAD模型池、加载工具服务器配置并建立MCP连接
// 预热产物进程内只读共享
func (a *App) PreWarm(ctx context.Context) error {
	a.vadProvider = viper.GetString("vad.provider")
	if a.vadProvider == "" {
		a.vadProvider = constants.VadTypeSileroVad
	}
	a.vadConfig = vadConfigFromViper()

	if a.vadProvider == constants.VadTypeSileroVad {
		if err := silero_vad.InitVadPool(a.vadConfig); err != nil {
			return fmt.Errorf("初始化VAD资源池失败: %w", err)
		}
	}

	mcpConfigPath := viper.GetString("mcp.config_path")
	if mcpConfigPath == "" {
		mcpConfigPath = constants.DefaultMcpConfigPath
	}
	descriptors, warnings, err := mcp.LoadServers(mcpConfigPath)
	if err != nil {
		return fmt.Errorf("加载工具服务器配置失败: %w", err)
	}
	mcp.ReportConfig(descriptors, warnings)

	if err := mcp.GetToolManager().Start(descriptors); err != nil {
		return fmt.Errorf("启动MCP工具管理器失败: %w", err)
	}

	log.Info("预热完成")
	return nil
}

// Run 组装会话、接入房间、发开场白，然后等房间关闭或进程收到退出信号
func (a *App) Run(ctx context.Context) error {
	if err := a.PreWarm(ctx); err != nil {
		return err
	}
	defer mcp.GetToolManager().Stop()
	defer silero_vad.CloseVadPool()

	vadInst, err := vad.AcquireVAD(a.vadProvider, a.vadConfig)
	if err != nil {
		return fmt.Errorf("获取VAD实例失败: %w", err)
	}
	defer func() {
		if err := vad.ReleaseVAD(vadInst); err != nil {
			log.Warnf("归还VAD实例失败: %v", err)
		}
	}()

	assistant := NewAssistant(viper.GetString("livekit.identity"))
	session, err := a.sessionManager.CreateSession(ctx, assistant, vadInst)
	if err != nil {
		return fmt.Errorf("组装会话失败: %w", err)
	}
	defer session.Close()

	// 工具侧可以主动挂断会话
	mcp.SetEndConversationFunc(func(reason string) error {
		log.Infof("工具请求结束会话: %s", reason)
		session.Close()
		return nil
	})

	target := RoomTarget{
		URL:       viper.GetString("livekit.url"),
		APIKey:    viper.GetString("livekit.api_key"),
		APISecret: viper.GetString("livekit.api_secret"),
		RoomName:  viper.GetString("livekit.room"),
		Identity:  viper.GetString("livekit.identity"),
	}
	if err := session.Start(target); err != nil {
		return err
	}

	if err := session.GenerateReply(ctx, constants.DefaultGreetingInstructions); err != nil {
		return fmt.Errorf("发送开场白失败: %w", err)
	}

	select {
	case <-ctx.Done():
		log.Info("收到退出信号，结束会话")
	case <-session.Closed():
		log.Info("房间已关闭，结束会话")
	}
	return nil
}
