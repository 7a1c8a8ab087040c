package backendsim

import (
	"encoding/binary"

	"github.com/grid-telemetry/dnp3-tester/internal/decode"
)

// Application function codes the simulator emits.
const (
	fcRead                 = 0x01
	fcSelect               = 0x03
	fcOperate              = 0x04
	fcDirectOperate        = 0x05
	fcDirectOperateNoAck   = 0x06
	fcResponse             = 0x81
	fcUnsolicitedResponse  = 0x82
	linkControlPrimary     = 0xC4
	linkControlSecondary   = 0x44
	transportSingleSegment = 0xC0 // FIR|FIN, seq merged in
)

// buildFrame synthesizes a minimal but well-formed frame: valid link
// preamble and header, single-segment transport octet, application
// control and function code. The CRC field is left zero; captures are
// display-only and the decoder never validates it.
func buildFrame(primary bool, dst, src uint16, seq uint8, function byte) []byte {
	ctrl := byte(linkControlSecondary)
	if primary {
		ctrl = linkControlPrimary
	}
	frame := make([]byte, 13)
	frame[0] = decode.Start0
	frame[1] = decode.Start1
	frame[2] = 8 // link length: ctrl + addrs + user data octets
	frame[3] = ctrl
	binary.LittleEndian.PutUint16(frame[4:6], dst)
	binary.LittleEndian.PutUint16(frame[6:8], src)
	// frame[8:10] crc, intentionally zero
	frame[10] = transportSingleSegment | (seq & 0x3F)
	frame[11] = 0xC0 | (seq & 0x0F) // application control
	frame[12] = function
	return frame
}
