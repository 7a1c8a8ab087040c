package backendsim

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/grid-telemetry/dnp3-tester/internal/models"
)

// SessionHeader identifies the tester instance issuing a request. Each
// identifier gets its own Service so concurrent testers stay isolated.
const SessionHeader = "X-Session-ID"

const msgpackMIME = "application/msgpack"

// Handler serves the Protocol Backend HTTP boundary.
type Handler struct {
	cfg   Config
	store *LogStore

	mu       sync.RWMutex
	sessions map[string]*Service
}

// NewHandler creates a handler with a shared log store.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		cfg:      cfg,
		store:    NewLogStore(cfg.LogWindow, cfg.FrameWindow),
		sessions: make(map[string]*Service),
	}
}

// service returns the Service for a request's session id, creating it on
// first use. An absent header maps to the "default" session.
func (h *Handler) service(c echo.Context) *Service {
	id := c.Request().Header.Get(SessionHeader)
	if id == "" {
		id = "default"
	}

	h.mu.RLock()
	svc, ok := h.sessions[id]
	h.mu.RUnlock()
	if ok {
		return svc
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if svc, ok = h.sessions[id]; ok {
		return svc
	}
	svc = NewService(h.store)
	h.sessions[id] = svc
	return svc
}

func ok(c echo.Context) error {
	return c.JSON(http.StatusOK, models.APIResponse{Success: true})
}

func fail(c echo.Context, err error) error {
	return c.JSON(http.StatusOK, models.APIResponse{Success: false, Error: err.Error()})
}

// HandleApplyConfig replaces the session's point table.
func (h *Handler) HandleApplyConfig(c echo.Context) error {
	var cfg models.DeviceConfiguration
	if err := c.Bind(&cfg); err != nil {
		return c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Error: "invalid configuration document"})
	}
	if err := h.service(c).ApplyConfig(cfg); err != nil {
		return fail(c, err)
	}
	return ok(c)
}

// HandleConnect starts a simulated protocol session.
func (h *Handler) HandleConnect(c echo.Context) error {
	var req models.ConnectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Error: "invalid connect request"})
	}

	// Master with no target falls back to loopback; the outstation side
	// already normalized to the wildcard.
	if req.IP == "" && req.Mode == models.RoleMaster {
		req.IP = "127.0.0.1"
	}
	if req.ConnType == "" {
		req.ConnType = models.TransportTCPClient
	}

	if err := h.service(c).Connect(req, time.Duration(h.cfg.SimIntervalSeconds)*time.Second); err != nil {
		return fail(c, err)
	}
	return ok(c)
}

// HandleDisconnect stops the session.
func (h *Handler) HandleDisconnect(c echo.Context) error {
	h.service(c).Disconnect()
	return ok(c)
}

// HandleRead performs a manual integrity poll.
func (h *Handler) HandleRead(c echo.Context) error {
	if err := h.service(c).Read(); err != nil {
		return fail(c, err)
	}
	return ok(c)
}

// HandleData returns current point values and counters.
func (h *Handler) HandleData(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service(c).Data())
}

// HandleLogs returns the full current log window; the client filters by
// its cursor.
func (h *Handler) HandleLogs(c echo.Context) error {
	return c.JSON(http.StatusOK, models.LogsResponse{Logs: h.store.Logs()})
}

// HandleFrames returns the full current frame window, msgpack-encoded
// when the client asks for it.
func (h *Handler) HandleFrames(c echo.Context) error {
	resp := models.FramesResponse{Frames: h.store.Frames()}
	if c.Request().Header.Get("Accept") == msgpackMIME {
		data, err := msgpack.Marshal(resp)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.APIResponse{Success: false, Error: "encode frames"})
		}
		return c.Blob(http.StatusOK, msgpackMIME, data)
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleControl executes one control phase.
func (h *Handler) HandleControl(c echo.Context) error {
	var req models.ControlRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ControlResponse{Status: "error", Message: "invalid control request"})
	}
	return c.JSON(http.StatusOK, h.service(c).Control(req))
}

// HandleAddPoint appends a single point to the session's table.
func (h *Handler) HandleAddPoint(c echo.Context) error {
	var req models.AddPointRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Error: "invalid request"})
	}
	typ, err := models.ParsePointType(req.PointType)
	if err != nil {
		return fail(c, err)
	}
	if err := h.service(c).AddPoint(typ, req.Index, req.Name); err != nil {
		return fail(c, err)
	}
	return ok(c)
}

// HandleClearPoints removes every point from the session's table.
func (h *Handler) HandleClearPoints(c echo.Context) error {
	if err := h.service(c).ClearPoints(); err != nil {
		return fail(c, err)
	}
	return ok(c)
}

// HandleSerialPorts lists discoverable serial devices, USB-like first.
func (h *Handler) HandleSerialPorts(c echo.Context) error {
	ports := ListSerialPorts()
	if ports == nil {
		ports = []string{}
	}
	return c.JSON(http.StatusOK, models.SerialPortsResponse{Ports: ports})
}

// HandleHostIP returns the host's outbound address, best effort.
func (h *Handler) HandleHostIP(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HostIPResponse{IP: DetectHostIP()})
}
