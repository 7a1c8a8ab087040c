package models

// Request/response payloads for the Protocol Backend HTTP boundary.
// Field names follow the established wire format.

// ConnectRequest starts a protocol session on the backend.
type ConnectRequest struct {
	Mode       Role          `json:"mode"`
	IP         string        `json:"ip"`
	Port       uint16        `json:"port"`
	LocalAddr  uint16        `json:"localAddr"`
	RemoteAddr uint16        `json:"remoteAddr"`
	ConnType   TransportKind `json:"connType,omitempty"`
	SerialName string        `json:"serialName,omitempty"`
	BaudRate   uint32        `json:"baudRate,omitempty"`
	DataBits   uint8         `json:"dataBits,omitempty"`
	Parity     string        `json:"parity,omitempty"`
	StopBits   float32       `json:"stopBits,omitempty"`
}

// APIResponse is the generic ok/error envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// DataResponse carries the current point values and session counters.
type DataResponse struct {
	Points []DataPoint `json:"points"`
	Stats  Stats       `json:"stats"`
}

// LogsResponse is the full current log window.
type LogsResponse struct {
	Logs []LogEntry `json:"logs"`
}

// FramesResponse is the full current frame window.
type FramesResponse struct {
	Frames []FrameCapture `json:"frames" msgpack:"frames"`
}

// Discipline tags the control phase so the backend can map it to the
// correct function code.
type Discipline string

const (
	DisciplineDirect      Discipline = "Direct"      // FC 0x05, acknowledged
	DisciplineDirectNoAck Discipline = "DirectNoAck" // FC 0x06, unacknowledged
	DisciplineSelect      Discipline = "Select"      // FC 0x03
	DisciplineOperate     Discipline = "Operate"     // FC 0x04
)

// ControlRequest issues one control phase against a single point.
type ControlRequest struct {
	PointType PointType  `json:"point_type"`
	Index     uint16     `json:"index"`
	Value     float64    `json:"value"`
	OpMode    Discipline `json:"op_mode"`
}

// ControlResponse reports the outcome of a control phase.
type ControlResponse struct {
	Status  string `json:"status"` // "success" or "error"
	Message string `json:"message,omitempty"`
}

// OK reports whether the backend accepted the control phase.
func (r ControlResponse) OK() bool { return r.Status == "success" }

// AddPointRequest appends a single point to the session's point table.
type AddPointRequest struct {
	PointType string `json:"point_type"`
	Index     uint16 `json:"index"`
	Name      string `json:"name"`
}

// SerialPortsResponse lists discovered serial devices, advisory order.
type SerialPortsResponse struct {
	Ports []string `json:"ports"`
}

// HostIPResponse is the backend's best-effort local address.
type HostIPResponse struct {
	IP string `json:"ip"`
}
