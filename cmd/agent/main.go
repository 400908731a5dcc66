package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"homey-assistant-golang/internal/app/agent"
	log "homey-assistant-golang/logger"
)

func main() {
	configFile := flag.String("c", "config/config.json", "配置文件路径")
	flag.Parse()

	if err := Init(*configFile); err != nil {
		fmt.Printf("init err: %+v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// 退出信号转为ctx取消，会话跟着收尾
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("收到退出信号，正在关闭...")
		cancel()
	}()

	appInstance := agent.NewApp()
	if err := appInstance.Run(ctx); err != nil {
		log.Errorf("运行失败: %v", err)
		cancel()
		os.Exit(1)
	}

	cancel()
	log.Info("已退出")
}
