package mcp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"homey-assistant-golang/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadServersFileMissing(t *testing.T) {
	servers, warnings, err := LoadServers(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err, "文件不存在不应该报错")
	assert.NotNil(t, servers)
	assert.Empty(t, servers, "文件不存在应该返回空列表")
	assert.Empty(t, warnings)
}

func TestLoadServersEmptyDocument(t *testing.T) {
	for _, content := range []string{`{}`, `{"servers": {}}`} {
		path := writeConfigFile(t, content)
		servers, warnings, err := LoadServers(path)
		require.NoError(t, err, content)
		assert.Empty(t, servers, content)
		assert.Empty(t, warnings, content)
	}
}

func TestLoadServersHttpAndStdio(t *testing.T) {
	path := writeConfigFile(t, `{
		"servers": {
			"homey": {"type": "http", "url": "http://localhost:3000/mcp"},
			"files": {"type": "stdio", "command": "mcp-files", "args": ["--root", "/tmp"]}
		}
	}`)

	servers, warnings, err := LoadServers(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, servers, 2)

	assert.Equal(t, "homey", servers[0].Name)
	assert.Equal(t, constants.McpServerTypeHttp, servers[0].Type)
	assert.Equal(t, "http://localhost:3000/mcp", servers[0].URL)

	assert.Equal(t, "files", servers[1].Name)
	assert.Equal(t, constants.McpServerTypeStdio, servers[1].Type)
	assert.Equal(t, "mcp-files", servers[1].Command)
	assert.Equal(t, []string{"--root", "/tmp"}, servers[1].Args)
}

func TestLoadServersStdioArgsDefault(t *testing.T) {
	path := writeConfigFile(t, `{"servers": {"files": {"type": "stdio", "command": "mcp-files"}}}`)

	servers, _, err := LoadServers(path)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	// args缺省是空列表而不是nil
	assert.NotNil(t, servers[0].Args)
	assert.Empty(t, servers[0].Args)
}

func TestLoadServersPreservesDocumentOrder(t *testing.T) {
	path := writeConfigFile(t, `{
		"servers": {
			"zeta": {"type": "http", "url": "http://z/mcp"},
			"alpha": {"type": "http", "url": "http://a/mcp"},
			"mid": {"type": "stdio", "command": "run"}
		}
	}`)

	servers, _, err := LoadServers(path)
	require.NoError(t, err)
	require.Len(t, servers, 3)

	names := []string{servers[0].Name, servers[1].Name, servers[2].Name}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names, "描述顺序应该和文档键顺序一致")
}

func TestLoadServersInvalidJson(t *testing.T) {
	for _, content := range []string{`{"servers": {`, `{"servers": {}} trailing`, `not json at all`} {
		path := writeConfigFile(t, content)
		_, _, err := LoadServers(path)
		require.Error(t, err, content)
		assert.Contains(t, err.Error(), "Invalid JSON", content)

		var cfgErr *ConfigError
		assert.True(t, errors.As(err, &cfgErr), "应该返回*ConfigError")
	}
}

func TestLoadServersTopLevelNotObject(t *testing.T) {
	path := writeConfigFile(t, `[1, 2, 3]`)
	_, _, err := LoadServers(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a JSON object")
}

func TestLoadServersServersNotObject(t *testing.T) {
	path := writeConfigFile(t, `{"servers": ["a", "b"]}`)
	_, _, err := LoadServers(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'servers' must be an object")
}

func TestLoadServersEntryValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		warning string
	}{
		{
			name:    "条目不是对象",
			content: `{"servers": {"bad": "nope"}}`,
			warning: "must be an object",
		},
		{
			name:    "缺少type字段",
			content: `{"servers": {"bad": {"url": "http://x/mcp"}}}`,
			warning: "missing required 'type' field",
		},
		{
			name:    "不支持的type",
			content: `{"servers": {"bad": {"type": "websocket"}}}`,
			warning: "unsupported type 'websocket'",
		},
		{
			name:    "http缺url",
			content: `{"servers": {"bad": {"type": "http"}}}`,
			warning: "missing required 'url' field",
		},
		{
			name:    "http的url不是字符串",
			content: `{"servers": {"bad": {"type": "http", "url": 123}}}`,
			warning: "'url' must be a string",
		},
		{
			name:    "stdio缺command",
			content: `{"servers": {"bad": {"type": "stdio"}}}`,
			warning: "missing required 'command' field",
		},
		{
			name:    "stdio的command不是字符串",
			content: `{"servers": {"bad": {"type": "stdio", "command": 7}}}`,
			warning: "'command' must be a string",
		},
		{
			name:    "args不是列表",
			content: `{"servers": {"bad": {"type": "stdio", "command": "run", "args": "x"}}}`,
			warning: "'args' must be a list",
		},
		{
			name:    "args元素不是字符串",
			content: `{"servers": {"bad": {"type": "stdio", "command": "run", "args": ["ok", 42]}}}`,
			warning: "args[1] must be a string",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfigFile(t, tc.content)
			servers, warnings, err := LoadServers(path)
			require.NoError(t, err, "坏条目不应该让整个加载失败")
			assert.Empty(t, servers)
			require.Len(t, warnings, 1)
			assert.Contains(t, warnings[0], tc.warning)
			assert.Contains(t, warnings[0], "bad", "告警信息应该带上服务器名字")
		})
	}
}

func TestLoadServersPartialFailure(t *testing.T) {
	path := writeConfigFile(t, `{
		"servers": {
			"good": {"type": "http", "url": "http://ok/mcp"},
			"bad": {"type": "http"},
			"also_good": {"type": "stdio", "command": "run"}
		}
	}`)

	servers, warnings, err := LoadServers(path)
	require.NoError(t, err)
	require.Len(t, servers, 2, "坏条目只跳过自己")
	assert.Equal(t, "good", servers[0].Name)
	assert.Equal(t, "also_good", servers[1].Name)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "bad")
}

func TestLoadServersIgnoresUnknownTopLevelKeys(t *testing.T) {
	path := writeConfigFile(t, `{
		"comment": "local setup",
		"servers": {"homey": {"type": "http", "url": "http://localhost:3000/mcp"}},
		"extra": [1, 2]
	}`)

	servers, warnings, err := LoadServers(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, servers, 1)
	assert.Equal(t, "homey", servers[0].Name)
}

func TestMarshalServersRoundTrip(t *testing.T) {
	original := []ServerDescriptor{
		{Name: "homey", Type: constants.McpServerTypeHttp, URL: "http://localhost:3000/mcp"},
		{Name: "files", Type: constants.McpServerTypeStdio, Command: "mcp-files", Args: []string{"--root", "/tmp"}},
		{Name: "tools", Type: constants.McpServerTypeStdio, Command: "npx", Args: []string{}},
	}

	data, err := MarshalServers(original)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "mcp.json")
	require.NoError(t, os.WriteFile(path, data, 0644))

	reloaded, warnings, err := LoadServers(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, original, reloaded, "序列化再加载应该得到相同的描述列表")
}
