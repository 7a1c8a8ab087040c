package decode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linkOnly is a bare 10-byte link header: dest=1024, source=1, crc=0x21E9.
var linkOnly = []byte{0x05, 0x64, 0x05, 0xC0, 0x00, 0x04, 0x01, 0x00, 0xE9, 0x21}

func TestDecodeRejectsShortInput(t *testing.T) {
	for _, data := range [][]byte{
		nil,
		{},
		{0x05},
		{0x05, 0x64},
		linkOnly[:9],
	} {
		_, ok := Decode(data)
		assert.False(t, ok, "input of %d bytes must be undecodable", len(data))
	}
}

func TestDecodeRejectsBadPreamble(t *testing.T) {
	bad := make([]byte, len(linkOnly))
	copy(bad, linkOnly)
	bad[0] = 0x06
	_, ok := Decode(bad)
	assert.False(t, ok)

	bad[0] = 0x05
	bad[1] = 0x65
	_, ok = Decode(bad)
	assert.False(t, ok)
}

func TestDecodeLinkHeader(t *testing.T) {
	d, ok := Decode(linkOnly)
	require.True(t, ok)
	require.Len(t, d.Records, 1)

	link := d.Records[0]
	assert.Equal(t, LayerLink, link.Layer)
	assert.Equal(t, "5", link.Fields["length"])
	assert.Equal(t, "0xC0", link.Fields["control"])
	assert.Equal(t, "1024", link.Fields["dest"])
	assert.Equal(t, "1", link.Fields["source"])
	assert.Equal(t, "0x21E9", link.Fields["crc"])
}

func TestDecodeTransportHeader(t *testing.T) {
	// FIN=1 FIR=1 seq=9 => 0xC9
	frame := append(append([]byte{}, linkOnly...), 0xC9)
	d, ok := Decode(frame)
	require.True(t, ok)
	require.Len(t, d.Records, 2)

	trans := d.Records[1]
	assert.Equal(t, LayerTransport, trans.Layer)
	assert.Equal(t, "1", trans.Fields["fin"])
	assert.Equal(t, "1", trans.Fields["fir"])
	assert.Equal(t, "9", trans.Fields["seq"])
}

func TestDecodeApplicationLayer(t *testing.T) {
	cases := []struct {
		code byte
		name string
	}{
		{0x01, "READ"},
		{0x03, "SELECT"},
		{0x04, "OPERATE"},
		{0x05, "DIRECT_OPERATE"},
		{0x81, "RESPONSE"},
		{0x82, "UNSOLICITED_RESPONSE"},
		{0x7F, "UNKNOWN"},
	}
	for _, tc := range cases {
		frame := append(append([]byte{}, linkOnly...), 0xC0, 0xC1, tc.code)
		d, ok := Decode(frame)
		require.True(t, ok)
		require.Len(t, d.Records, 3, "13-byte frame must decode all three layers")

		app := d.Records[2]
		assert.Equal(t, LayerApp, app.Layer)
		assert.Equal(t, tc.name, app.Fields["function"])
		assert.Equal(t, "0xC1", app.Fields["control"])
	}
}

func TestDecodeDeterministic(t *testing.T) {
	frame := append(append([]byte{}, linkOnly...), 0xC4, 0xC2, 0x81)
	a, ok := Decode(frame)
	require.True(t, ok)
	b, ok := Decode(frame)
	require.True(t, ok)
	assert.Equal(t, a, b)
}

func TestDecodeEarlierLayersSurviveTruncation(t *testing.T) {
	// 12 bytes: link + transport + app control octet but no function code.
	frame := append(append([]byte{}, linkOnly...), 0x44, 0xC3)
	d, ok := Decode(frame)
	require.True(t, ok)
	assert.Len(t, d.Records, 2)
	assert.Equal(t, LayerLink, d.Records[0].Layer)
	assert.Equal(t, LayerTransport, d.Records[1].Layer)
}

func TestHexDump(t *testing.T) {
	dump := HexDump([]byte("ABCDEFGHIJKLMNOPQ\x00"))
	lines := strings.Split(strings.TrimRight(dump, "\n"), "\n")
	require.Len(t, lines, 2)

	assert.True(t, strings.HasPrefix(lines[0], "0000  41 42 43 44 45 46 47 48  49 4A 4B 4C 4D 4E 4F 50"))
	assert.True(t, strings.HasSuffix(lines[0], "ABCDEFGHIJKLMNOP"))
	assert.True(t, strings.HasPrefix(lines[1], "0010  51 00"))
	assert.True(t, strings.HasSuffix(lines[1], "Q."))
}

func TestHexDumpEmpty(t *testing.T) {
	assert.Equal(t, "", HexDump(nil))
}
