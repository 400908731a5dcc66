package mcp

import (
	"strings"

	"homey-assistant-golang/constants"
	log "homey-assistant-golang/logger"
)

// ReportConfig 打印加载结果报告，方便启动时确认工具服务器配置
func ReportConfig(descriptors []ServerDescriptor, warnings []string) {
	log.Info("=== MCP配置检查 ===")

	if len(descriptors) == 0 && len(warnings) == 0 {
		log.Warn("⚠️  未配置任何MCP服务器")
		log.Info("=== MCP配置检查完成 ===")
		return
	}

	log.Infof("共加载了 %d 个MCP服务器:", len(descriptors))

	for i, desc := range descriptors {
		if desc.Type == constants.McpServerTypeHttp {
			status := "✅"
			issueStr := ""
			if !strings.HasPrefix(desc.URL, "http://") && !strings.HasPrefix(desc.URL, "https://") {
				status = "⚠️"
				issueStr = " - 问题: URL格式可能不正确"
			}
			log.Infof("  [%d] %s %s (http, URL: %s)%s", i+1, status, desc.Name, desc.URL, issueStr)
		} else {
			log.Infof("  [%d] ✅ %s (stdio, command: %s, args: %v)", i+1, desc.Name, desc.Command, desc.Args)
		}
	}

	if len(warnings) > 0 {
		log.Warnf("⚠️  %d 个条目被跳过:", len(warnings))
		for _, w := range warnings {
			log.Warnf("  - %s", w)
		}
	}

	log.Info("=== MCP配置检查完成 ===")
}
