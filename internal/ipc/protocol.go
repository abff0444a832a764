// Package ipc is the control plane of the voxscribe daemon: newline-delimited
// JSON over the runtime unix socket.
package ipc

// Request carries one control command for the running daemon: status, start,
// stop, or reset.
type Request struct {
	Command string `json:"command"`
}

// Response reports the command outcome together with a session snapshot.
type Response struct {
	OK         bool   `json:"ok"`
	State      string `json:"state,omitempty"`
	Utterances int    `json:"utterances,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}
