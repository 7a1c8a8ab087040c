package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/grid-telemetry/dnp3-tester/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second)
}

func TestEveryRequestCarriesSessionHeader(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(SessionHeader)
		json.NewEncoder(w).Encode(models.APIResponse{Success: true})
	})

	require.NoError(t, c.Read(context.Background()))
	assert.Equal(t, c.SessionID(), got)
	assert.NotEmpty(t, got)
}

func TestSessionIDIsStablePerInstance(t *testing.T) {
	c := New("http://unused", time.Second)
	assert.Equal(t, c.SessionID(), c.SessionID())
	assert.NotEqual(t, c.SessionID(), New("http://unused", time.Second).SessionID())
}

func TestConnectSendsWirePayload(t *testing.T) {
	var body map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/connect", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(models.APIResponse{Success: true})
	})

	err := c.Connect(context.Background(), models.ConnectRequest{
		Mode:       models.RoleOutstation,
		IP:         "0.0.0.0",
		Port:       20000,
		LocalAddr:  10,
		RemoteAddr: 1,
		ConnType:   models.TransportTCPServer,
	})
	require.NoError(t, err)

	assert.Equal(t, "outstation", body["mode"])
	assert.Equal(t, "tcp_server", body["connType"])
	assert.Equal(t, float64(20000), body["port"])
	assert.Equal(t, float64(10), body["localAddr"])
	assert.Equal(t, float64(1), body["remoteAddr"])
}

func TestConnectBusinessFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.APIResponse{Success: false, Error: "port in use"})
	})

	err := c.Connect(context.Background(), models.ConnectRequest{Mode: models.RoleMaster})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port in use")
}

func TestControlReturnsBackendRejectionAsResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/control", r.URL.Path)
		var req models.ControlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.DisciplineSelect, req.OpMode)
		json.NewEncoder(w).Encode(models.ControlResponse{Status: "error", Message: "not selected"})
	})

	resp, err := c.Control(context.Background(), models.ControlRequest{
		PointType: models.PointAnalogOutput,
		Index:     0,
		Value:     50.5,
		OpMode:    models.DisciplineSelect,
	})
	require.NoError(t, err, "a business rejection is not a transport error")
	assert.False(t, resp.OK())
	assert.Equal(t, "not selected", resp.Message)
}

func TestFetchDataDecodesPointsAndStats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/data", r.URL.Path)
		json.NewEncoder(w).Encode(models.DataResponse{
			Points: []models.DataPoint{{Type: models.PointBinaryOutput, Index: 0, Name: "Breaker", Value: 1}},
			Stats:  models.Stats{TX: 4, RX: 7, Errors: 1},
		})
	})

	data, err := c.FetchData(context.Background())
	require.NoError(t, err)
	require.Len(t, data.Points, 1)
	assert.Equal(t, "Breaker", data.Points[0].Name)
	assert.Equal(t, uint32(7), data.Stats.RX)
}

func TestFetchFramesMsgpack(t *testing.T) {
	frames := models.FramesResponse{Frames: []models.FrameCapture{
		{ID: 0, Direction: models.DirectionTX, Data: []byte{0x05, 0x64, 0x05}},
		{ID: 1, Direction: models.DirectionRX, Data: []byte{0x05, 0x64, 0x08}},
	}}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, msgpackMIME, r.Header.Get("Accept"))
		w.Header().Set("Content-Type", msgpackMIME)
		data, err := msgpack.Marshal(frames)
		require.NoError(t, err)
		w.Write(data)
	})

	got, err := c.FetchFrames(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []byte{0x05, 0x64, 0x08}, got[1].Data)
}

func TestFetchFramesJSONFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.FramesResponse{Frames: []models.FrameCapture{
			{ID: 5, Direction: models.DirectionTX, Data: []byte{0x05, 0x64}},
		}})
	})

	got, err := c.FetchFrames(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(5), got[0].ID)
}

func TestFetchLogs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/logs", r.URL.Path)
		json.NewEncoder(w).Encode(models.LogsResponse{Logs: []models.LogEntry{
			{ID: 5, Direction: models.DirectionSystem, Message: "Outstation started"},
		}})
	})

	logs, err := c.FetchLogs(context.Background())
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, uint64(5), logs[0].ID)
}

func TestHTTPErrorStatusIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.FetchData(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestSerialPortsAndHostIP(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/serial_ports":
			json.NewEncoder(w).Encode(models.SerialPortsResponse{Ports: []string{"/dev/ttyUSB0", "/dev/ttyS0"}})
		case "/api/host_ip":
			json.NewEncoder(w).Encode(models.HostIPResponse{IP: "192.168.1.20"})
		default:
			http.NotFound(w, r)
		}
	})

	ports, err := c.SerialPorts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyS0"}, ports)

	ip, err := c.HostIP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", ip)
}
