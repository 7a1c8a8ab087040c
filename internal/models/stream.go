package models

// Direction labels the origin of a log entry or frame capture.
type Direction string

const (
	DirectionTX     Direction = "TX"
	DirectionRX     Direction = "RX"
	DirectionSystem Direction = "System"
	DirectionError  Direction = "Error"
)

// LogEntry is one entry in the backend's append-only protocol log.
// IDs are strictly increasing and unique within the log stream.
type LogEntry struct {
	ID        uint64    `json:"id"`
	Timestamp int64     `json:"timestamp"` // Unix ms
	Direction Direction `json:"direction"`
	Message   string    `json:"message"`
}

// FrameCapture is one raw link-layer frame captured by the backend.
// IDs are strictly increasing, numbered independently from LogEntry.
type FrameCapture struct {
	ID        uint64    `json:"id" msgpack:"id"`
	Timestamp int64     `json:"timestamp" msgpack:"timestamp"` // Unix ms
	Direction Direction `json:"direction" msgpack:"direction"`
	Data      []byte    `json:"data" msgpack:"data"`
}
