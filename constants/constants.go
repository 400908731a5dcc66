package constants

const (
	VadTypeSileroVad = "silero_vad"
	VadTypeWebRTCVad = "webrtc_vad"
)

const (
	SttTypeGoogle   = "google"
	SttTypeDeepgram = "deepgram"
)

const (
	LlmTypeGoogle = "google"
	LlmTypeOpenai = "openai"
	LlmTypeOllama = "ollama"
)

const (
	TtsTypeGoogle     = "google"
	TtsTypeElevenlabs = "elevenlabs"
	TtsTypeEdge       = "edge"
)

// 各能力的默认提供商，未识别的提供商名称回退到这里
const (
	DefaultTtsProvider = TtsTypeGoogle
	DefaultSttProvider = SttTypeGoogle
	DefaultLlmProvider = LlmTypeGoogle
)

// 语言与音色默认值
const (
	DefaultLanguage     = "pl-PL"
	DefaultVoiceName    = "pl-PL-Chirp3-HD-Despina"
	DefaultVoiceGender  = "female"
	DefaultSpeakingRate = 1.15
)

// STT 默认值
const (
	DefaultSttModel      = "latest_long"
	DefaultSttLanguage   = "pl-PL"
	DefaultSttPunctuate  = false
	DefaultDeepgramModel = "nova-2"
)

// LLM 默认值
const (
	DefaultLlmModel           = "gemini-2.5-flash"
	DefaultOpenAIModel        = "gpt-4o-mini"
	DefaultOllamaModel        = "qwen3"
	DefaultOllamaBaseURL      = "http://localhost:11434"
	DefaultTemperature        = 0.7
	DefaultMaxToolSteps       = 20
	DefaultMaximumRemoteCalls = 100
)

// GeminiOpenAIBaseURL Gemini的OpenAI兼容接口地址
const GeminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// TTS 默认值
const (
	DefaultElevenlabsModel = "eleven_multilingual_v2"
	DefaultEdgeVoice       = "pl-PL-ZofiaNeural"
)

// MCP 工具服务器配置
const (
	DefaultMcpConfigPath = "mcp.json"
)

const (
	McpServerTypeHttp  = "http"
	McpServerTypeStdio = "stdio"
)

// 房间输入默认值
const (
	DefaultVideoEnabled = false
)

// 音频参数: 16k 单声道, 20ms一帧
const (
	AudioSampleRate    = 16000
	AudioChannels      = 1
	AudioFrameDuration = 20
)

// DefaultAgentInstructions 助手的固定指令文本
const DefaultAgentInstructions = "You are a helpful AI assistant for Homey smart home platform. " +
	"Use polish language by default. Keep your messages short and concise. " +
	"Greet the user very shortly. Welcome user just with 'Hey'. " +
	"You can help with home automation, device control, and smart home management. " +
	"You have access to various tools through MCP servers. The main one is Homey itself. " +
	"You're operating in Voice mode. " +
	"Before executing any MCP tool, always ask for confirmation from the user " +
	"unless the name of a tool starts with 'list' or 'search' then execute it without confirmation. " +
	"Use Memory MCP server for memory retrieval and storage. " +
	"Follow these steps for each interaction:\n" +
	"1. User Identification:\n" +
	"   - You should assume that you are interacting with default_user\n" +
	"   - If you have not identified default_user, proactively try to do so.\n" +
	"2. Memory Retrieval:\n" +
	"   - Retrieve all relevant information from your knowledge graph\n" +
	"   - Always refer to your knowledge graph as your 'memory'\n" +
	"3. Memory\n" +
	"   - While conversing with the user, be attentive to any new information that falls into these categories:\n" +
	"     a) Basic Identity (age, gender, name)\n" +
	"     c) Preferences (communication style, preferred language, etc.)\n" +
	"     d) Aliases for Homey entities used by the user\n" +
	"4. Homey items\n" +
	"   - While conversing with the user, be attentive to any new information that falls into these categories:\n" +
	"     a) Homey zones\n" +
	"     b) Homey devices\n" +
	"     c) Homey alternate names for devices, rooms, zones etc.\n" +
	"4. Memory Update:\n" +
	"   - If any new information was gathered during the interaction, update your memory as follows:\n" +
	"     a) Create entities for recurring people\n" +
	"     b) Create entities for Homey zones, devices and alternate names for devices, rooms, zones etc.\n" +
	"     c) Connect them to the current entities using relations\n" +
	"     d) Store facts about them as observations"

// DefaultGreetingInstructions 会话建立后的开场白指令
const DefaultGreetingInstructions = "Greet the user with 'Hey'. Use a friendly tone and Polish by default."
