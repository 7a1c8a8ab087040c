package backendsim

import (
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tarm/serial"
)

// serialPrefixes are the device name patterns enumerated under /dev.
var serialPrefixes = []string{"ttyUSB", "ttyACM", "ttyAMA", "ttyS", "cu.", "tty."}

// ListSerialPorts enumerates candidate serial devices. Ordering is a UX
// affordance only: USB-style adapters first, Bluetooth bridges last.
func ListSerialPorts() []string {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return nil
	}

	var ports []string
	for _, e := range entries {
		name := e.Name()
		for _, prefix := range serialPrefixes {
			if strings.HasPrefix(name, prefix) {
				ports = append(ports, filepath.Join("/dev", name))
				break
			}
		}
	}
	sortPorts(ports)
	return ports
}

// sortPorts orders a port list for display: USB-like names first,
// Bluetooth-like names last, alphabetical within a class.
func sortPorts(ports []string) {
	class := func(p string) int {
		lower := strings.ToLower(p)
		switch {
		case strings.Contains(lower, "usb") || strings.Contains(lower, "acm"):
			return 0
		case strings.Contains(lower, "bluetooth"):
			return 2
		default:
			return 1
		}
	}
	sort.Slice(ports, func(i, j int) bool {
		ci, cj := class(ports[i]), class(ports[j])
		if ci != cj {
			return ci < cj
		}
		return ports[i] < ports[j]
	})
}

// validateSerialPort confirms the physical device can be opened before a
// serial connect is accepted.
func validateSerialPort(device string, baud int) error {
	port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return err
	}
	return port.Close()
}

// DetectHostIP returns the host's outbound IPv4 address, best effort.
// Dialing UDP picks a local address without sending any packet.
func DetectHostIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return ""
}
