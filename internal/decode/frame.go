// Package decode provides a best-effort, display-only decoder for raw
// DNP3 frames. Output is advisory: it never drives protocol behavior and
// the CRC is not validated.
package decode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Link-layer preamble. Every DNP3 frame starts with these two octets.
const (
	Start0 = 0x05
	Start1 = 0x64
)

// minFrameLen is the link header: start(2) + len + ctrl + dst(2) + src(2) + crc(2).
const minFrameLen = 10

// Layer labels for decoded records.
const (
	LayerLink      = "LINK"
	LayerTransport = "TRANS"
	LayerApp       = "APP"
)

// Record is one decoded layer of a frame.
type Record struct {
	Layer  string            `json:"layer"`
	Fields map[string]string `json:"fields"`
}

// Decoded is a partial, layered decode of a single frame.
type Decoded struct {
	Records []Record `json:"records"`
}

// functionNames maps DNP3 application function codes to display names.
var functionNames = map[byte]string{
	0x00: "CONFIRM",
	0x01: "READ",
	0x02: "WRITE",
	0x03: "SELECT",
	0x04: "OPERATE",
	0x05: "DIRECT_OPERATE",
	0x06: "DIRECT_OPERATE_NO_ACK",
	0x0D: "COLD_RESTART",
	0x0E: "WARM_RESTART",
	0x14: "ENABLE_UNSOLICITED",
	0x15: "DISABLE_UNSOLICITED",
	0x81: "RESPONSE",
	0x82: "UNSOLICITED_RESPONSE",
}

// FunctionName returns the display name of an application function code,
// or "UNKNOWN" for codes outside the table.
func FunctionName(code byte) string {
	if name, ok := functionNames[code]; ok {
		return name
	}
	return "UNKNOWN"
}

// Decode produces a layered decode of a raw frame. It returns ok=false
// when the input is too short or does not begin with the link preamble.
// Layers are independent: a frame may legitimately end after any layer.
func Decode(data []byte) (Decoded, bool) {
	if len(data) < minFrameLen || data[0] != Start0 || data[1] != Start1 {
		return Decoded{}, false
	}

	var d Decoded

	d.Records = append(d.Records, Record{
		Layer: LayerLink,
		Fields: map[string]string{
			"start":   fmt.Sprintf("%02X %02X", data[0], data[1]),
			"length":  fmt.Sprintf("%d", data[2]),
			"control": fmt.Sprintf("0x%02X", data[3]),
			"dest":    fmt.Sprintf("%d", binary.LittleEndian.Uint16(data[4:6])),
			"source":  fmt.Sprintf("%d", binary.LittleEndian.Uint16(data[6:8])),
			"crc":     fmt.Sprintf("0x%04X", binary.LittleEndian.Uint16(data[8:10])),
		},
	})

	if len(data) > 10 {
		th := data[10]
		d.Records = append(d.Records, Record{
			Layer: LayerTransport,
			Fields: map[string]string{
				"fin": fmt.Sprintf("%d", th>>7&0x01),
				"fir": fmt.Sprintf("%d", th>>6&0x01),
				"seq": fmt.Sprintf("%d", th&0x3F),
			},
		})
	}

	if len(data) > 12 {
		d.Records = append(d.Records, Record{
			Layer: LayerApp,
			Fields: map[string]string{
				"control":  fmt.Sprintf("0x%02X", data[11]),
				"function": FunctionName(data[12]),
				"code":     fmt.Sprintf("0x%02X", data[12]),
			},
		})
	}

	return d, true
}

// HexDump renders raw bytes as a fixed-width hex-plus-ASCII dump,
// 16 bytes per line. Non-printable bytes show as '.'.
func HexDump(data []byte) string {
	var b strings.Builder
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		line := data[off:end]

		fmt.Fprintf(&b, "%04X  ", off)
		for i := 0; i < 16; i++ {
			if i < len(line) {
				fmt.Fprintf(&b, "%02X ", line[i])
			} else {
				b.WriteString("   ")
			}
			if i == 7 {
				b.WriteByte(' ')
			}
		}
		b.WriteByte(' ')
		for _, c := range line {
			if c >= 0x20 && c < 0x7F {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
