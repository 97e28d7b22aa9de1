package ipc

// Commands understood by the owner process.
const (
	CommandStatus      = "status"
	CommandStop        = "stop"
	CommandStartGlobal = "start-global"
	CommandStartLocal  = "start-local"
	CommandTake        = "take"
)

type Request struct {
	Command string `json:"command"`
	// Active opens the wake gate immediately on start-global.
	Active bool `json:"active,omitempty"`
}

type Response struct {
	OK        bool   `json:"ok"`
	State     string `json:"state,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Listening bool   `json:"listening,omitempty"`
	Active    bool   `json:"active,omitempty"`
	Volume    int    `json:"volume,omitempty"`
	Speaking  bool   `json:"speaking,omitempty"`
	// Transcript is the latest interim text.
	Transcript string `json:"transcript,omitempty"`
	// Command carries the consumed command for take.
	Command string `json:"command,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
