package live

import (
	"encoding/json"

	"github.com/buildlink-za/sitevoice/pkg/tool"
)

// ClientMessage is one frame from the client to the agent. Exactly one
// field is set per frame.
type ClientMessage struct {
	Setup        *Setup        `json:"setup,omitempty"`
	Audio        *AudioChunk   `json:"realtime_audio,omitempty"`
	Image        *ImageFrame   `json:"realtime_image,omitempty"`
	ToolResponse *ToolResponse `json:"tool_response,omitempty"`
}

// Setup configures the session at open time. Instructions and the tool
// manifest are opaque to the transport.
type Setup struct {
	Instructions string             `json:"instructions,omitempty"`
	Tools        []tool.Declaration `json:"tools,omitempty"`
}

// AudioChunk carries base64 16 kHz mono PCM uplink audio.
type AudioChunk struct {
	Audio string `json:"audio"`
}

// ImageFrame carries a base64 compressed camera frame.
type ImageFrame struct {
	Image    string `json:"image"`
	MIMEType string `json:"mime_type"`
}

// Status values for tool responses.
const (
	ToolStatusOK          = "ok"
	ToolStatusError       = "error"
	ToolStatusUnknownTool = "unknown_tool"
)

// ToolResponse acknowledges a tool call. ID echoes the agent's
// correlation id verbatim.
type ToolResponse struct {
	ID      string          `json:"id"`
	Status  string          `json:"status"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

// ServerMessage is one frame from the agent. Several payload kinds may
// appear in a single frame; every present kind is routed.
type ServerMessage struct {
	Text      *ModelText  `json:"model_text,omitempty"`
	UserText  *UserText   `json:"user_text,omitempty"`
	Audio     *ModelAudio `json:"model_audio,omitempty"`
	ToolCalls []ToolCall  `json:"tool_calls,omitempty"`

	TurnComplete bool `json:"turn_complete,omitempty"`
	Interrupted  bool `json:"interrupted,omitempty"`

	Error *WireError `json:"error,omitempty"`
}

// ModelText is an agent transcript delta.
type ModelText struct {
	Text string `json:"text"`
}

// UserText is the agent's transcription of the user's speech.
type UserText struct {
	Text string `json:"text"`
}

// ModelAudio carries base64 PCM downlink audio. Rate defaults to 24000
// when omitted; channels default to 1.
type ModelAudio struct {
	Audio    string `json:"audio"`
	Rate     int    `json:"rate,omitempty"`
	Channels int    `json:"channels,omitempty"`
}

// ToolCall is an agent-issued request to run a named local action.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// WireError is a transport-level error reported by the agent.
type WireError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *WireError) Error() string {
	if e.Code != "" {
		return "live: agent error " + e.Code + ": " + e.Message
	}
	return "live: agent error: " + e.Message
}
