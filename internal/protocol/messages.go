package protocol

import (
	"github.com/saker-ai/robodog-server/internal/command"
	"github.com/saker-ai/robodog-server/internal/motion"
	"github.com/saker-ai/robodog-server/internal/stream"
)

// CommandRequest is the body of POST /process_command. Text is a pointer so a
// missing field can be told apart from an empty one.
type CommandRequest struct {
	Text *string `json:"text"`
}

// ClientMessage is sent by status websocket clients.
type ClientMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Status is the full server status pushed to dashboards.
type Status struct {
	Motion      motion.State    `json:"motion"`
	Viewers     int             `json:"viewers"`
	ViewerList  []stream.Viewer `json:"viewer_list,omitempty"`
	LastCommand *command.Result `json:"last_command,omitempty"`
	FrameSeq    uint64          `json:"frame_seq"`
}

// ServerMessage is sent to status websocket clients.
type ServerMessage struct {
	Type    string          `json:"type"`
	Status  *Status         `json:"status,omitempty"`
	Command *command.Result `json:"command,omitempty"`
	Message string          `json:"message,omitempty"`
}

const (
	TypeStatus    = "status"
	TypeCommand   = "command"
	TypeHeartbeat = "heartbeat"
	TypeError     = "error"
)
