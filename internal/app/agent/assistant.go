package agent

import "homey-assistant-golang/constants"

// Assistant 助手的固定身份: 指令文本和房间内的参与者标识
type Assistant struct {
	Instructions string
	Identity     string
}

func NewAssistant(identity string) *Assistant {
	if identity == "" {
		identity = "homey-assistant"
	}
	return &Assistant{
		Instructions: constants.DefaultAgentInstructions,
		Identity:     identity,
	}
}
