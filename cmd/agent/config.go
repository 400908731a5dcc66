package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	logrus "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"homey-assistant-golang/logger"
)

func Init(configFile string) error {
	if err := initConfig(configFile); err != nil {
		return fmt.Errorf("initConfig err: %w", err)
	}
	if err := initLog(); err != nil {
		return fmt.Errorf("initLog err: %w", err)
	}
	return nil
}

// initConfig 配置文件可选，环境变量齐全时没有文件也能跑
// 点分键映射到下划线环境变量: tts.provider <-> TTS_PROVIDER
func initConfig(configFile string) error {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configFile == "" {
		return nil
	}

	basePath, file := filepath.Split(configFile)

	fileName, fileExt := func(file string) (string, string) {
		if pos := strings.LastIndex(file, "."); pos != -1 {
			return file[:pos], strings.ToLower(file[pos+1:])
		}
		return file, ""
	}(file)

	viper.SetConfigName(fileName)
	if basePath == "" {
		basePath = "."
	}
	viper.AddConfigPath(basePath)

	switch fileExt {
	case "json":
		viper.SetConfigType("json")
	case "yaml", "yml":
		viper.SetConfigType("yaml")
	default:
		return fmt.Errorf("unsupported config file type: %s", fileExt)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Printf("未找到配置文件 %s, 只用环境变量\n", configFile)
			return nil
		}
		return err
	}
	return nil
}

func initLog() error {
	logPath := viper.GetString("log.path")
	logFile := viper.GetString("log.file")

	// 没配日志文件就只打到标准输出
	if logPath == "" && logFile == "" {
		logger.UseStdout()
		if logLevel, err := logrus.ParseLevel(viper.GetString("log.level")); err == nil {
			logrus.SetLevel(logLevel)
		}
		return nil
	}

	fullPath := filepath.Join(logPath, logFile)
	writer, err := rotatelogs.New(
		fullPath+".%Y%m%d",
		rotatelogs.WithLinkName(fullPath),
		rotatelogs.WithRotationCount(uint(viper.GetInt("log.max_age"))),
		rotatelogs.WithRotationTime(time.Duration(86400)*time.Second),
	)
	if err != nil {
		fmt.Printf("init log error: %v\n", err)
		os.Exit(1)
		return err
	}

	if viper.GetBool("log.stdout") {
		// 同时输出到文件和标准输出
		multiWriter := io.MultiWriter(writer, os.Stdout)
		logrus.SetOutput(multiWriter)
		logrus.SetFormatter(logger.Formatter(true))
	} else {
		logrus.SetOutput(writer)
		logrus.SetFormatter(logger.Formatter(false))
	}

	logrus.SetReportCaller(false)
	logLevel, err := logrus.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logLevel)

	return nil
}
