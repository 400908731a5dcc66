package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/spf13/viper"

	"homey-assistant-golang/constants"
	"homey-assistant-golang/internal/util/workqueue"
	log "homey-assistant-golang/logger"
)

// 初始连接时的并发度
const maxConnectWorkers = 4

// ToolManager 工具服务器管理器，维护所有MCP连接和聚合后的工具表
type ToolManager struct {
	servers       map[string]*ServerConnection
	tools         cmap.ConcurrentMap[string, tool.InvokableTool]
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	reconnectConf ReconnectConfig
}

// ReconnectConfig 重连配置
type ReconnectConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// ServerConnection 单个MCP服务器连接
type ServerConnection struct {
	desc       ServerDescriptor
	client     *client.Client
	tools      map[string]tool.InvokableTool
	connected  bool
	mu         sync.RWMutex
	lastError  error
	retryCount int
	lastPing   time.Time
}

var (
	toolManager *ToolManager
	once        sync.Once
)

// GetToolManager 获取工具管理器单例
func GetToolManager() *ToolManager {
	once.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())

		interval := viper.GetInt("mcp.reconnect_interval")
		if interval <= 0 {
			interval = 30
		}
		maxAttempts := viper.GetInt("mcp.max_reconnect_attempts")
		if maxAttempts <= 0 {
			maxAttempts = 5
		}

		toolManager = &ToolManager{
			servers: make(map[string]*ServerConnection),
			tools:   cmap.New[tool.InvokableTool](),
			ctx:     ctx,
			cancel:  cancel,
			reconnectConf: ReconnectConfig{
				Interval:    time.Duration(interval) * time.Second,
				MaxAttempts: maxAttempts,
			},
		}
	})
	return toolManager
}

// transportBuilders 按服务器类型分发传输层构造
var transportBuilders = map[string]func(ServerDescriptor) (transport.Interface, error){
	constants.McpServerTypeHttp: func(desc ServerDescriptor) (transport.Interface, error) {
		return transport.NewStreamableHTTP(desc.URL)
	},
	constants.McpServerTypeStdio: func(desc ServerDescriptor) (transport.Interface, error) {
		return transport.NewStdio(desc.Command, nil, desc.Args...), nil
	},
}

func buildTransport(desc ServerDescriptor) (transport.Interface, error) {
	builder, ok := transportBuilders[desc.Type]
	if !ok {
		return nil, fmt.Errorf("不支持的MCP服务器类型: %s", desc.Type)
	}
	return builder(desc)
}

// Start 连接所有配置的服务器并启动监控
// 单个服务器连接失败只记录日志，不影响其他服务器
func (g *ToolManager) Start(descriptors []ServerDescriptor) error {
	// 首先注册本地工具
	g.registerLocalTools()

	if len(descriptors) == 0 {
		log.Info("没有配置MCP服务器，仅注册本地工具")
		return nil
	}

	// 并行建立初始连接
	var connectedCount atomic.Int32
	workqueue.ParallelizeUntil(g.ctx, maxConnectWorkers, len(descriptors), func(i int) {
		desc := descriptors[i]
		if err := g.connectToServer(desc); err != nil {
			log.Errorf("连接MCP服务器 %s 失败: %v", desc.Name, err)
			return
		}
		connectedCount.Add(1)
	})

	log.Infof("成功连接 %d/%d 个MCP服务器", connectedCount.Load(), len(descriptors))

	// 启动监控goroutine
	go g.monitorConnections()

	log.Info("工具管理器已启动")
	return nil
}

// Stop 停止管理器并断开所有连接
func (g *ToolManager) Stop() error {
	g.cancel()

	g.mu.Lock()
	defer g.mu.Unlock()

	for name, conn := range g.servers {
		if err := conn.disconnect(); err != nil {
			log.Errorf("断开MCP服务器 %s 连接失败: %v", name, err)
		}
	}

	g.servers = make(map[string]*ServerConnection)
	g.tools.Clear()

	log.Info("工具管理器已停止")
	return nil
}

// connectToServer 建立单个服务器连接并登记
func (g *ToolManager) connectToServer(desc ServerDescriptor) error {
	log.Infof("正在连接MCP服务器: %s (类型: %s)", desc.Name, desc.Type)

	conn := &ServerConnection{
		desc:  desc,
		tools: make(map[string]tool.InvokableTool),
	}

	if err := conn.connect(); err != nil {
		return err
	}

	g.mu.Lock()
	g.servers[desc.Name] = conn
	g.mu.Unlock()

	log.Infof("已连接到MCP服务器: %s", desc.Name)
	return nil
}

// connect 建立连接并完成初始化握手
func (conn *ServerConnection) connect() error {
	// stdio子进程和http会话都要长期保持，用背景上下文
	ctx := context.Background()

	// client为空时重新创建传输层和客户端
	if conn.client == nil {
		trans, err := buildTransport(conn.desc)
		if err != nil {
			return fmt.Errorf("创建传输层失败: %v", err)
		}
		conn.client = client.NewClient(trans)
	}

	if err := conn.client.Start(ctx); err != nil {
		log.Errorf("启动MCP客户端失败，服务器: %s, 错误: %v", conn.desc.Name, err)
		return fmt.Errorf("启动客户端失败: %v", err)
	}

	initRequest := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "homey-assistant",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{
				Experimental: make(map[string]any),
			},
		},
	}

	initResult, err := conn.client.Initialize(ctx, initRequest)
	if err != nil {
		log.Errorf("初始化MCP服务器失败，服务器: %s, 错误: %v", conn.desc.Name, err)
		return fmt.Errorf("初始化失败: %v", err)
	}

	log.Infof("MCP服务器初始化成功: %s, 服务端: %s %s", conn.desc.Name,
		initResult.ServerInfo.Name, initResult.ServerInfo.Version)

	// 工具列表获取失败不阻止连接建立，监控会再刷新
	if err := conn.refreshTools(ctx); err != nil {
		log.Errorf("获取工具列表失败: %v", err)
	}

	conn.mu.Lock()
	conn.connected = true
	conn.lastError = nil
	conn.retryCount = 0
	conn.mu.Unlock()

	log.Infof("MCP服务器连接建立完成: %s", conn.desc.Name)
	return nil
}

// refreshTools 刷新工具列表并更新全局工具表
func (conn *ServerConnection) refreshTools(ctx context.Context) error {
	toolsResult, err := conn.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("获取工具列表失败: %v", err)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()

	conn.tools = ConvertMcpTools(toolsResult.Tools, conn.desc.Name, conn.client)

	GetToolManager().updateGlobalTools(conn.desc.Name, conn.tools)

	log.Infof("MCP服务器 %s 工具列表已更新，共 %d 个工具", conn.desc.Name, len(conn.tools))
	return nil
}

// ConvertMcpTools 把MCP工具列表转成eino可调用工具
func ConvertMcpTools(tools []mcp.Tool, serverName string, cli *client.Client) map[string]tool.InvokableTool {
	invokeTools := make(map[string]tool.InvokableTool)
	for _, t := range tools {
		// InputSchema通过JSON序列化转成通用map
		var inputSchema map[string]interface{}
		if schemaBytes, err := json.Marshal(t.InputSchema); err == nil {
			json.Unmarshal(schemaBytes, &inputSchema)
		}

		invokeTools[t.Name] = &mcpTool{
			name:        t.Name,
			description: t.Description,
			inputSchema: inputSchema,
			serverName:  serverName,
			client:      cli,
		}
	}
	return invokeTools
}

// disconnect 断开连接并清空工具
func (conn *ServerConnection) disconnect() error {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	if conn.client != nil {
		if err := conn.client.Close(); err != nil {
			log.Errorf("关闭MCP客户端失败: %v", err)
		}
		conn.client = nil
	}

	conn.connected = false
	conn.tools = make(map[string]tool.InvokableTool)

	return nil
}

// updateGlobalTools 替换某个服务器在全局工具表中的条目
func (g *ToolManager) updateGlobalTools(serverName string, tools map[string]tool.InvokableTool) {
	// 移除该服务器的旧工具
	for item := range g.tools.IterBuffered() {
		if mt, ok := item.Val.(*mcpTool); ok && mt.serverName == serverName {
			g.tools.Remove(item.Key)
		}
	}

	// 添加新工具，键带服务器名前缀避免不同服务器重名
	for name, t := range tools {
		g.tools.Set(fmt.Sprintf("%s_%s", serverName, name), t)
	}
}

// registerLocalTools 注册进程内实现的本地工具
func (g *ToolManager) registerLocalTools() {
	localTools := GetLocalTools()

	for name, t := range localTools {
		g.tools.Set(fmt.Sprintf("local_%s", name), t)
		log.Infof("已注册本地工具: local_%s", name)
	}

	log.Infof("已注册 %d 个本地工具", len(localTools))
}

// GetAllTools 获取所有可用工具的快照
func (g *ToolManager) GetAllTools() map[string]tool.InvokableTool {
	return g.tools.Items()
}

// GetToolByName 根据名称获取工具
// 先按完整名查找（如 local_end_conversation），再尝试各服务器前缀
func (g *ToolManager) GetToolByName(name string) (tool.InvokableTool, bool) {
	if t, ok := g.tools.Get(name); ok {
		return t, true
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	for serverName := range g.servers {
		if t, ok := g.tools.Get(fmt.Sprintf("%s_%s", serverName, name)); ok {
			return t, true
		}
	}

	return nil, false
}

// isSessionClosedError 判断是否为session closed错误
func isSessionClosedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "session closed")
}

// monitorConnections 周期性做健康检查和断线重连
func (g *ToolManager) monitorConnections() {
	ticker := time.NewTicker(g.reconnectConf.Interval)
	pingTicker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer pingTicker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
			g.checkAndReconnect()

			g.mu.RLock()
			for name, conn := range g.servers {
				go func(name string, conn *ServerConnection) {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := conn.refreshTools(ctx); err != nil {
						if isSessionClosedError(err) {
							log.Warnf("MCP服务器 %s 健康检查失败(session closed): %v", name, err)
							conn.mu.Lock()
							conn.connected = false
							conn.lastError = err
							conn.mu.Unlock()
						} else {
							log.Debugf("MCP服务器 %s 健康检查失败: %v", name, err)
						}
					}
				}(name, conn)
			}
			g.mu.RUnlock()
		case <-pingTicker.C:
			g.mu.RLock()
			for name, conn := range g.servers {
				go func(name string, conn *ServerConnection) {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()

					if err := conn.ping(ctx); err != nil {
						log.Warnf("MCP服务器 %s ping失败: %v", name, err)
						if isSessionClosedError(err) {
							conn.mu.Lock()
							conn.connected = false
							conn.lastError = err
							conn.mu.Unlock()
						}
					} else {
						log.Debugf("MCP服务器 %s ping成功", name)
					}
				}(name, conn)
			}
			g.mu.RUnlock()
		}
	}
}

// checkAndReconnect 检查并重连断开的服务器
func (g *ToolManager) checkAndReconnect() {
	g.mu.RLock()
	servers := make(map[string]*ServerConnection)
	for name, conn := range g.servers {
		servers[name] = conn
	}
	g.mu.RUnlock()

	for name, conn := range servers {
		conn.mu.RLock()
		connected := conn.connected
		retryCount := conn.retryCount
		conn.mu.RUnlock()

		if !connected && retryCount < g.reconnectConf.MaxAttempts {
			log.Infof("尝试重连MCP服务器: %s (第%d次)", name, retryCount+1)

			conn.mu.Lock()
			conn.retryCount++
			conn.mu.Unlock()

			if _, err := g.reconnectServer(name); err != nil {
				log.Errorf("重连MCP服务器 %s 失败: %v", name, err)
				conn.mu.Lock()
				conn.lastError = err
				conn.mu.Unlock()
			}
		}
	}
}

// reconnectServer 重连服务器并返回新的client
func (g *ToolManager) reconnectServer(serverName string) (*client.Client, error) {
	g.mu.RLock()
	conn := g.servers[serverName]
	g.mu.RUnlock()

	if conn == nil {
		return nil, fmt.Errorf("未找到服务器连接: %s", serverName)
	}

	if err := conn.disconnect(); err != nil {
		log.Errorf("断开连接失败: %v", err)
	}

	// 等待一小段时间确保stdio子进程和会话资源释放
	time.Sleep(time.Second)

	if err := conn.connect(); err != nil {
		return nil, fmt.Errorf("重连失败: %v", err)
	}

	return conn.client, nil
}

// ping 发送ping请求检测连接状态
func (conn *ServerConnection) ping(ctx context.Context) error {
	if conn.client == nil {
		return fmt.Errorf("client未初始化")
	}

	if err := conn.client.Ping(ctx); err != nil {
		return fmt.Errorf("ping失败: %v", err)
	}

	conn.mu.Lock()
	conn.lastPing = time.Now()
	conn.mu.Unlock()

	return nil
}

// mcpTool MCP工具实现，实现eino的InvokableTool接口
type mcpTool struct {
	name        string
	description string
	inputSchema map[string]interface{}
	serverName  string
	client      *client.Client
}

// Info 获取工具信息，参数定义从MCP的JSON Schema转换而来
func (t *mcpTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        t.name,
		Desc:        t.description,
		ParamsOneOf: convertInputSchema(t.inputSchema),
	}, nil
}

// convertInputSchema 把MCP工具的JSON Schema转成eino的参数定义
func convertInputSchema(inputSchema map[string]interface{}) *schema.ParamsOneOf {
	if inputSchema == nil {
		return nil
	}

	props, _ := inputSchema["properties"].(map[string]interface{})
	if len(props) == 0 {
		return nil
	}

	required := make(map[string]bool)
	if rawRequired, ok := inputSchema["required"].([]interface{}); ok {
		for _, r := range rawRequired {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	params := make(map[string]*schema.ParameterInfo, len(props))
	for name, rawProp := range props {
		prop, _ := rawProp.(map[string]interface{})
		params[name] = convertProperty(prop, required[name])
	}

	return schema.NewParamsOneOfByParams(params)
}

func convertProperty(prop map[string]interface{}, required bool) *schema.ParameterInfo {
	info := &schema.ParameterInfo{
		Type:     schema.String,
		Required: required,
	}
	if prop == nil {
		return info
	}

	if desc, ok := prop["description"].(string); ok {
		info.Desc = desc
	}

	switch t, _ := prop["type"].(string); t {
	case "number":
		info.Type = schema.Number
	case "integer":
		info.Type = schema.Integer
	case "boolean":
		info.Type = schema.Boolean
	case "array":
		info.Type = schema.Array
		if items, ok := prop["items"].(map[string]interface{}); ok {
			info.ElemInfo = convertProperty(items, false)
		}
	case "object":
		info.Type = schema.Object
		if subProps, ok := prop["properties"].(map[string]interface{}); ok {
			sub := make(map[string]*schema.ParameterInfo, len(subProps))
			for name, rawSub := range subProps {
				subProp, _ := rawSub.(map[string]interface{})
				sub[name] = convertProperty(subProp, false)
			}
			info.SubParams = sub
		}
	}

	// enum只对字符串类型有意义
	if info.Type == schema.String {
		if rawEnum, ok := prop["enum"].([]interface{}); ok {
			for _, e := range rawEnum {
				if s, ok := e.(string); ok {
					info.Enum = append(info.Enum, s)
				}
			}
		}
	}

	return info
}

// InvokableRun 调用工具，实现InvokableTool接口
// session closed时重连服务器并重试一次
func (t *mcpTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	if t.client == nil {
		return "", fmt.Errorf("调用MCP工具失败: MCP客户端未初始化")
	}

	var arguments map[string]interface{}
	if argumentsInJSON != "" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &arguments); err != nil {
			return "", fmt.Errorf("解析工具参数失败: %v", err)
		}
	}

	callRequest := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      t.name,
			Arguments: arguments,
		},
	}

	result, err := t.client.CallTool(ctx, callRequest)
	if err != nil && isSessionClosedError(err) {
		log.Warnf("工具 %s 调用失败(session closed): %v，尝试重连后重试", t.name, err)

		newClient, rerr := GetToolManager().reconnectServer(t.serverName)
		if rerr != nil {
			return "", fmt.Errorf("重连服务器失败: %v", rerr)
		}
		t.client = newClient

		result, err = t.client.CallTool(ctx, callRequest)
		if err != nil {
			return "", fmt.Errorf("重连后调用仍然失败: %v", err)
		}
	} else if err != nil {
		return "", fmt.Errorf("调用工具失败: %v", err)
	}

	if len(result.Content) > 0 {
		if textContent, ok := result.Content[0].(mcp.TextContent); ok {
			return textContent.Text, nil
		}

		contentBytes, err := json.Marshal(result.Content[0])
		if err != nil {
			return "", fmt.Errorf("序列化工具结果失败: %v", err)
		}
		return string(contentBytes), nil
	}

	return "", fmt.Errorf("工具调用未返回任何内容")
}
