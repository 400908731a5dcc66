package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"homey-assistant-golang/constants"
	log "homey-assistant-golang/logger"
)

// ConfigError 工具服务器配置文档的结构性错误
type ConfigError struct {
	msg   string
	cause error
}

func (e *ConfigError) Error() string { return e.msg }

func (e *ConfigError) Unwrap() error { return e.cause }

func configErrorf(cause error, format string, args ...interface{}) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...), cause: cause}
}

// ServerDescriptor 一条已校验的工具服务器连接描述
// http类型使用URL，stdio类型使用Command/Args，构造后不再修改
type ServerDescriptor struct {
	Name    string   `json:"-"`
	Type    string   `json:"type"`
	URL     string   `json:"url,omitempty"`
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
}

// LoadServers 从JSON配置文档加载工具服务器描述
// 返回按文档键顺序排列的描述列表，以及被跳过条目的告警列表
// 文件不存在视为未配置任何工具服务器，不是错误
// 单个条目非法只跳过该条目，文档整体结构非法才返回 *ConfigError
func LoadServers(configPath string) ([]ServerDescriptor, []string, error) {
	if configPath == "" {
		configPath = constants.DefaultMcpConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("MCP配置文件 %s 不存在，跳过工具服务器加载", configPath)
			return []ServerDescriptor{}, nil, nil
		}
		return nil, nil, configErrorf(err, "Error reading MCP configuration file %s: %v", configPath, err)
	}

	entries, err := parseServerEntries(configPath, data)
	if err != nil {
		return nil, nil, err
	}

	descriptors := make([]ServerDescriptor, 0, len(entries))
	var warnings []string
	for _, entry := range entries {
		desc, err := buildDescriptor(entry.name, entry.raw)
		if err != nil {
			// 坏条目不影响其余条目
			log.Errorf("创建MCP服务器 '%s' 失败: %v", entry.name, err)
			warnings = append(warnings, err.Error())
			continue
		}
		descriptors = append(descriptors, desc)
	}

	log.Infof("从 %s 加载了 %d 个MCP服务器配置", configPath, len(descriptors))
	return descriptors, warnings, nil
}

type rawServerEntry struct {
	name string
	raw  json.RawMessage
}

// parseServerEntries 按文档自身的键顺序提取servers条目
// 解到map会打乱键顺序，所以这里走token流手工遍历
func parseServerEntries(configPath string, data []byte) ([]rawServerEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, configErrorf(err, "Invalid JSON in MCP configuration file %s: %v", configPath, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, configErrorf(nil, "MCP configuration must be a JSON object")
	}

	var entries []rawServerEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, configErrorf(err, "Invalid JSON in MCP configuration file %s: %v", configPath, err)
		}
		key, _ := keyTok.(string)

		if key != "servers" {
			// servers以外的顶层字段直接跳过
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, configErrorf(err, "Invalid JSON in MCP configuration file %s: %v", configPath, err)
			}
			continue
		}

		valTok, err := dec.Token()
		if err != nil {
			return nil, configErrorf(err, "Invalid JSON in MCP configuration file %s: %v", configPath, err)
		}
		if delim, ok := valTok.(json.Delim); !ok || delim != '{' {
			return nil, configErrorf(nil, "MCP configuration 'servers' must be an object")
		}

		for dec.More() {
			nameTok, err := dec.Token()
			if err != nil {
				return nil, configErrorf(err, "Invalid JSON in MCP configuration file %s: %v", configPath, err)
			}
			name, _ := nameTok.(string)

			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, configErrorf(err, "Invalid JSON in MCP configuration file %s: %v", configPath, err)
			}
			entries = append(entries, rawServerEntry{name: name, raw: raw})
		}
		// servers对象的结束符
		if _, err := dec.Token(); err != nil {
			return nil, configErrorf(err, "Invalid JSON in MCP configuration file %s: %v", configPath, err)
		}
	}
	// 顶层对象结束符，其后不允许有尾随数据
	if _, err := dec.Token(); err != nil {
		return nil, configErrorf(err, "Invalid JSON in MCP configuration file %s: %v", configPath, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, configErrorf(nil, "Invalid JSON in MCP configuration file %s: trailing data after document", configPath)
	}

	return entries, nil
}

// buildDescriptor 校验单个条目并构造描述，非法条目返回指明字段的错误
func buildDescriptor(name string, raw json.RawMessage) (ServerDescriptor, error) {
	var entry map[string]interface{}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return ServerDescriptor{}, fmt.Errorf("Server '%s' configuration must be an object", name)
	}

	rawType, ok := entry["type"]
	if !ok || rawType == nil || rawType == "" {
		return ServerDescriptor{}, fmt.Errorf("Server '%s' missing required 'type' field", name)
	}
	serverType, ok := rawType.(string)
	if !ok {
		return ServerDescriptor{}, fmt.Errorf("Server '%s' has unsupported type '%v'. Supported types: 'http', 'stdio'", name, rawType)
	}

	switch serverType {
	case constants.McpServerTypeHttp:
		return buildHttpDescriptor(name, entry)
	case constants.McpServerTypeStdio:
		return buildStdioDescriptor(name, entry)
	default:
		return ServerDescriptor{}, fmt.Errorf("Server '%s' has unsupported type '%s'. Supported types: 'http', 'stdio'", name, serverType)
	}
}

func buildHttpDescriptor(name string, entry map[string]interface{}) (ServerDescriptor, error) {
	rawURL, ok := entry["url"]
	if !ok || rawURL == nil || rawURL == "" {
		return ServerDescriptor{}, fmt.Errorf("HTTP server '%s' missing required 'url' field", name)
	}
	url, ok := rawURL.(string)
	if !ok {
		return ServerDescriptor{}, fmt.Errorf("HTTP server '%s' 'url' must be a string", name)
	}

	log.Debugf("HTTP类型MCP服务器 '%s', URL: %s", name, url)
	return ServerDescriptor{Name: name, Type: constants.McpServerTypeHttp, URL: url}, nil
}

func buildStdioDescriptor(name string, entry map[string]interface{}) (ServerDescriptor, error) {
	rawCommand, ok := entry["command"]
	if !ok || rawCommand == nil || rawCommand == "" {
		return ServerDescriptor{}, fmt.Errorf("Stdio server '%s' missing required 'command' field", name)
	}
	command, ok := rawCommand.(string)
	if !ok {
		return ServerDescriptor{}, fmt.Errorf("Stdio server '%s' 'command' must be a string", name)
	}

	// args缺省为空列表
	args := []string{}
	if rawArgs, ok := entry["args"]; ok && rawArgs != nil {
		argList, ok := rawArgs.([]interface{})
		if !ok {
			return ServerDescriptor{}, fmt.Errorf("Stdio server '%s' 'args' must be a list", name)
		}
		for i, rawArg := range argList {
			arg, ok := rawArg.(string)
			if !ok {
				return ServerDescriptor{}, fmt.Errorf("Stdio server '%s' args[%d] must be a string, got %T", name, i, rawArg)
			}
			args = append(args, arg)
		}
	}

	log.Debugf("stdio类型MCP服务器 '%s', command: %s, args: %v", name, command, args)
	return ServerDescriptor{Name: name, Type: constants.McpServerTypeStdio, Command: command, Args: args}, nil
}

// MarshalServers 把描述列表序列化回配置文档格式，保持列表顺序
func MarshalServers(descriptors []ServerDescriptor) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"servers":{`)
	for i, desc := range descriptors {
		if i > 0 {
			buf.WriteByte(',')
		}
		nameJSON, err := json.Marshal(desc.Name)
		if err != nil {
			return nil, err
		}
		entryJSON, err := json.Marshal(desc)
		if err != nil {
			return nil, err
		}
		buf.Write(nameJSON)
		buf.WriteByte(':')
		buf.Write(entryJSON)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}
