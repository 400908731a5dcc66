package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homey-assistant-golang/constants"
)

func TestToolManager_Singleton(t *testing.T) {
	manager1 := GetToolManager()
	manager2 := GetToolManager()

	assert.Equal(t, manager1, manager2, "应该返回同一个实例")
}

func TestToolManager_StartWithoutServers(t *testing.T) {
	manager := GetToolManager()

	// 没有远程服务器时只注册本地工具
	err := manager.Start(nil)
	require.NoError(t, err)

	tool, exists := manager.GetToolByName("local_end_conversation")
	assert.True(t, exists, "本地工具应该已注册")
	assert.NotNil(t, tool)
}

func TestToolManager_GetAllTools(t *testing.T) {
	manager := GetToolManager()

	tools := manager.GetAllTools()
	assert.NotNil(t, tools)
}

func TestToolManager_GetToolByName_NotFound(t *testing.T) {
	manager := GetToolManager()

	tool, exists := manager.GetToolByName("non_existent_tool")
	assert.False(t, exists)
	assert.Nil(t, tool)
}

func TestBuildTransport(t *testing.T) {
	t.Run("http", func(t *testing.T) {
		trans, err := buildTransport(ServerDescriptor{
			Name: "homey",
			Type: constants.McpServerTypeHttp,
			URL:  "http://localhost:3000/mcp",
		})
		require.NoError(t, err)
		assert.NotNil(t, trans)
	})

	t.Run("stdio", func(t *testing.T) {
		// 子进程在Start时才拉起，这里只构造传输层
		trans, err := buildTransport(ServerDescriptor{
			Name:    "files",
			Type:    constants.McpServerTypeStdio,
			Command: "mcp-files",
			Args:    []string{"--root", "/tmp"},
		})
		require.NoError(t, err)
		assert.NotNil(t, trans)
	})

	t.Run("未知类型", func(t *testing.T) {
		_, err := buildTransport(ServerDescriptor{Name: "bad", Type: "websocket"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "不支持的MCP服务器类型")
	})
}

func TestMCPTool_Info(t *testing.T) {
	tool := &mcpTool{
		name:        "test_tool",
		description: "测试工具",
		inputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "搜索关键词",
				},
				"limit": map[string]interface{}{
					"type": "integer",
				},
			},
			"required": []interface{}{"query"},
		},
		serverName: "test_server",
		client:     nil, // 测试中不需要真实客户端
	}

	info, err := tool.Info(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "test_tool", info.Name)
	assert.Equal(t, "测试工具", info.Desc)
	assert.NotNil(t, info.ParamsOneOf, "有properties的schema应该转出参数定义")
}

func TestConvertInputSchema_Empty(t *testing.T) {
	assert.Nil(t, convertInputSchema(nil))
	assert.Nil(t, convertInputSchema(map[string]interface{}{"type": "object"}))
	assert.Nil(t, convertInputSchema(map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}))
}

func TestConvertProperty(t *testing.T) {
	t.Run("基础类型", func(t *testing.T) {
		info := convertProperty(map[string]interface{}{
			"type":        "number",
			"description": "温度",
		}, true)
		assert.Equal(t, "温度", info.Desc)
		assert.True(t, info.Required)
	})

	t.Run("数组带元素类型", func(t *testing.T) {
		info := convertProperty(map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "string",
			},
		}, false)
		require.NotNil(t, info.ElemInfo)
		assert.False(t, info.Required)
	})

	t.Run("嵌套对象", func(t *testing.T) {
		info := convertProperty(map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"name": map[string]interface{}{"type": "string"},
			},
		}, false)
		require.Contains(t, info.SubParams, "name")
	})

	t.Run("字符串枚举", func(t *testing.T) {
		info := convertProperty(map[string]interface{}{
			"type": "string",
			"enum": []interface{}{"on", "off"},
		}, false)
		assert.Equal(t, []string{"on", "off"}, info.Enum)
	})

	t.Run("nil属性退化为字符串", func(t *testing.T) {
		info := convertProperty(nil, false)
		assert.NotNil(t, info)
	})
}

func TestMCPTool_InvokableRun(t *testing.T) {
	tool := &mcpTool{
		name:        "test_tool",
		description: "测试工具",
		inputSchema: map[string]interface{}{},
		serverName:  "test_server",
		client:      nil, // 测试中不需要真实客户端
	}

	// 客户端为nil时应该直接报错
	_, err := tool.InvokableRun(context.Background(), `{"query": "test"}`)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "调用MCP工具失败")
}

func TestEndConversationTool(t *testing.T) {
	tool := &EndConversationTool{}

	info, err := tool.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "end_conversation", info.Name)
	assert.NotNil(t, info.ParamsOneOf)

	// 会话结束后结果不回传LLM
	assert.False(t, tool.ShouldReturnToLLM())
	assert.False(t, CheckToolShouldReturnToLLM(tool))
}

func TestEndConversationTool_InvokableRun(t *testing.T) {
	tool := &EndConversationTool{}

	// 回调未设置时报错
	SetEndConversationFunc(nil)
	_, err := tool.InvokableRun(context.Background(), `{}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "未初始化")

	// 设置回调后透传原因
	var gotReason string
	SetEndConversationFunc(func(reason string) error {
		gotReason = reason
		return nil
	})
	defer SetEndConversationFunc(nil)

	result, err := tool.InvokableRun(context.Background(), `{"reason": "user said goodbye"}`)
	require.NoError(t, err)
	assert.Equal(t, "user said goodbye", gotReason)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result), &parsed))
	assert.Equal(t, true, parsed["success"])
}

func TestServerDescriptor_Structure(t *testing.T) {
	desc := ServerDescriptor{
		Name: "homey",
		Type: constants.McpServerTypeHttp,
		URL:  "http://localhost:3000/mcp",
	}

	assert.Equal(t, "homey", desc.Name)
	assert.Equal(t, "http", desc.Type)
	assert.Equal(t, "http://localhost:3000/mcp", desc.URL)
}

func TestReconnectConfig_Structure(t *testing.T) {
	config := ReconnectConfig{
		Interval:    5 * time.Second,
		MaxAttempts: 10,
	}

	assert.Equal(t, 5*time.Second, config.Interval)
	assert.Equal(t, 10, config.MaxAttempts)
}

// TestMCPGoStructures 测试 mcp-go 库结构体的使用
func TestMCPGoStructures(t *testing.T) {
	t.Run("InitializeRequest", func(t *testing.T) {
		initRequest := mcp.InitializeRequest{
			Request: mcp.Request{
				Method: string(mcp.MethodInitialize),
			},
			Params: mcp.InitializeParams{
				ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
				ClientInfo: mcp.Implementation{
					Name:    "test-client",
					Version: "1.0.0",
				},
				Capabilities: mcp.ClientCapabilities{
					Experimental: make(map[string]any),
				},
			},
		}

		assert.Equal(t, string(mcp.MethodInitialize), initRequest.Request.Method)
		assert.Equal(t, "test-client", initRequest.Params.ClientInfo.Name)
	})

	t.Run("Tool", func(t *testing.T) {
		tool := mcp.NewTool(
			"test-tool",
			mcp.WithDescription("A test tool"),
		)

		assert.Equal(t, "test-tool", tool.Name)
		assert.Equal(t, "A test tool", tool.Description)
	})

	t.Run("ConvertMcpTools", func(t *testing.T) {
		tools := []mcp.Tool{
			mcp.NewTool("lights_on", mcp.WithDescription("Turn on the lights")),
			mcp.NewTool("lights_off", mcp.WithDescription("Turn off the lights")),
		}

		converted := ConvertMcpTools(tools, "homey", nil)
		require.Len(t, converted, 2)
		assert.Contains(t, converted, "lights_on")
		assert.Contains(t, converted, "lights_off")
	})
}
