// Package models contains domain types for the DNP3 tester.
package models

import (
	"fmt"
	"time"
)

// PointType identifies one of the five point groups.
type PointType string

const (
	PointBinaryInput  PointType = "BinaryInput"
	PointBinaryOutput PointType = "BinaryOutput"
	PointAnalogInput  PointType = "AnalogInput"
	PointAnalogOutput PointType = "AnalogOutput"
	PointCounter      PointType = "Counter"
)

// ParsePointType maps the wire string to a PointType.
func ParsePointType(s string) (PointType, error) {
	switch PointType(s) {
	case PointBinaryInput, PointBinaryOutput, PointAnalogInput, PointAnalogOutput, PointCounter:
		return PointType(s), nil
	}
	return "", fmt.Errorf("invalid point type: %s", s)
}

// IsBinary reports whether values for this type are on/off.
func (t PointType) IsBinary() bool {
	return t == PointBinaryInput || t == PointBinaryOutput
}

// IsOutput reports whether the type accepts control operations.
func (t PointType) IsOutput() bool {
	return t == PointBinaryOutput || t == PointAnalogOutput
}

// Quality represents the reported quality of a point value.
type Quality string

const (
	QualityOnline   Quality = "Online"
	QualityOffline  Quality = "Offline"
	QualityCommLost Quality = "CommLost"
)

// DataPoint is a single typed point with its current value.
type DataPoint struct {
	Type      PointType `json:"type"`
	Index     uint16    `json:"index"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Quality   Quality   `json:"quality"`
	Timestamp int64     `json:"timestamp"` // Unix ms
}

// NewDataPoint creates a point with a zero value.
func NewDataPoint(t PointType, index uint16, name string) DataPoint {
	return DataPoint{
		Type:      t,
		Index:     index,
		Name:      name,
		Value:     0,
		Quality:   QualityOffline,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Role is the protocol role a session runs as.
type Role string

const (
	RoleMaster     Role = "master"
	RoleOutstation Role = "outstation"
)

// TransportKind selects the wire transport the backend should use.
type TransportKind string

const (
	TransportTCPClient TransportKind = "tcp"
	TransportTCPServer TransportKind = "tcp_server"
	TransportUDP       TransportKind = "udp"
	TransportSerial    TransportKind = "serial"
)

// Stats are the session's transmit/receive counters.
type Stats struct {
	TX     uint32 `json:"tx"`
	RX     uint32 `json:"rx"`
	Errors uint32 `json:"errors"`
}
