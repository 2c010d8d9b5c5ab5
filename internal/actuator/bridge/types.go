package bridge

const (
	opAction   = "action"
	opPreset   = "preset"
	opHead     = "head_move"
	opDistance = "read_distance"
	opStop     = "body_stop"

	typeReply = "reply"
	typeEvent = "event"
)

type request struct {
	ID     string    `json:"id"`
	Op     string    `json:"op"`
	Name   string    `json:"name,omitempty"`
	Speed  int       `json:"speed,omitempty"`
	Angles []float64 `json:"angles,omitempty"`
}

type reply struct {
	Type     string   `json:"type,omitempty"`
	ID       string   `json:"id"`
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Distance *float64 `json:"distance,omitempty"`

	err error
}
