// Package session owns the tester's connection lifecycle: when the point
// table may be applied, which polling cadence is legal for which role,
// and when the stream consumers are live.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/grid-telemetry/dnp3-tester/internal/models"
	"github.com/grid-telemetry/dnp3-tester/internal/stream"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle          State = "idle"
	StateConnecting    State = "connecting"
	StateRunning       State = "running"
	StateDisconnecting State = "disconnecting"
)

// StreamKind selects which stream the fetch cycle polls.
type StreamKind string

const (
	StreamLogs   StreamKind = "logs"
	StreamFrames StreamKind = "frames"
)

var (
	ErrNotIdle              = errors.New("session is not idle")
	ErrNotRunning           = errors.New("session is not running")
	ErrNoPointTable         = errors.New("no point configuration loaded")
	ErrSerialDeviceRequired = errors.New("serial transport requires a device")
	ErrMasterOnly           = errors.New("operation is only valid for the master role")
)

// Backend is the subset of the Protocol Backend client the controller
// drives.
type Backend interface {
	ApplyConfig(ctx context.Context, cfg models.DeviceConfiguration) error
	Connect(ctx context.Context, req models.ConnectRequest) error
	Disconnect(ctx context.Context) error
	Read(ctx context.Context) error
	FetchData(ctx context.Context) (models.DataResponse, error)
	FetchLogs(ctx context.Context) ([]models.LogEntry, error)
	FetchFrames(ctx context.Context) ([]models.FrameCapture, error)
}

// Options configure the controller's cadence, retention and sinks.
// Sinks are how decoded traffic reaches the rendering layer; nil sinks
// are legal and simply drop output.
type Options struct {
	MasterInterval     time.Duration
	OutstationInterval time.Duration
	LogRetention       int
	FrameRetention     int

	DataSink  func(models.DataResponse)
	LogSink   stream.Sink[models.LogEntry]
	FrameSink stream.Sink[models.FrameCapture]
}

func (o *Options) fillDefaults() {
	if o.MasterInterval <= 0 {
		o.MasterInterval = 5 * time.Second
	}
	if o.OutstationInterval <= 0 {
		o.OutstationInterval = time.Second
	}
	if o.LogRetention <= 0 {
		o.LogRetention = 1000
	}
	if o.FrameRetention <= 0 {
		o.FrameRetention = 500
	}
}

// ConnectParams are the operator-chosen transport settings for one
// connect.
type ConnectParams struct {
	Transport  models.TransportKind
	Address    string
	Port       uint16
	SerialName string
	BaudRate   uint32
	DataBits   uint8
	Parity     string
	StopBits   float32
}

// Controller is the session controller. All state is owned here; there
// are no ambient globals, so multiple tester instances stay isolated.
type Controller struct {
	backend Backend
	opts    Options

	mu         sync.Mutex
	state      State
	role       models.Role
	localAddr  uint16
	remoteAddr uint16
	transport  models.TransportKind
	table      *models.DeviceConfiguration
	polling    bool // master read-then-fetch toggle
	active     StreamKind
	epoch      uint64
	cancel     context.CancelFunc

	pollMu sync.Mutex // serializes fetch cycles across timers
	logs   *stream.Consumer[models.LogEntry]
	frames *stream.Consumer[models.FrameCapture]
}

// NewController creates an idle controller with outstation defaults.
func NewController(backend Backend, opts Options) *Controller {
	opts.fillDefaults()
	c := &Controller{
		backend: backend,
		opts:    opts,
		state:   StateIdle,
		active:  StreamLogs,
	}
	c.applyRoleDefaults(models.RoleOutstation)
	c.logs = stream.New(backend.FetchLogs,
		func(e models.LogEntry) uint64 { return e.ID }, opts.LogSink, opts.LogRetention)
	c.frames = stream.New(backend.FetchFrames,
		func(f models.FrameCapture) uint64 { return f.ID }, opts.FrameSink, opts.FrameRetention)
	return c
}

// applyRoleDefaults resets addressing and transport pairing for a role.
// Convenience defaults only; the operator may override before connect.
func (c *Controller) applyRoleDefaults(role models.Role) {
	c.role = role
	if role == models.RoleOutstation {
		c.localAddr, c.remoteAddr = 10, 1
		c.transport = models.TransportTCPServer
	} else {
		c.localAddr, c.remoteAddr = 1, 10
		c.transport = models.TransportTCPClient
	}
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Role returns the configured role.
func (c *Controller) Role() models.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Addressing returns the local and remote station addresses.
func (c *Controller) Addressing() (local, remote uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localAddr, c.remoteAddr
}

// Transport returns the preferred transport kind.
func (c *Controller) Transport() models.TransportKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}

// SetRole switches role, resetting addressing and transport defaults.
// Only permitted while idle.
func (c *Controller) SetRole(role models.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrNotIdle
	}
	c.applyRoleDefaults(role)
	return nil
}

// SetAddressing overrides the station addresses. Only while idle.
func (c *Controller) SetAddressing(local, remote uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrNotIdle
	}
	c.localAddr, c.remoteAddr = local, remote
	return nil
}

// LoadPointTable stores the point configuration to be applied on the
// next connect. Only while idle: once a session is live the backend owns
// the authoritative copy.
func (c *Controller) LoadPointTable(table models.DeviceConfiguration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrNotIdle
	}
	c.table = &table
	return nil
}

// PointTable returns the loaded configuration, or nil.
func (c *Controller) PointTable() *models.DeviceConfiguration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table
}

// SetPolling toggles the master read-then-fetch cycle. No effect on the
// outstation cadence, which is unconditional.
func (c *Controller) SetPolling(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.polling = enabled
}

// PollingEnabled reports the master polling toggle.
func (c *Controller) PollingEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polling
}

// SetActiveStream switches which stream the fetch cycle polls. The other
// stream's cursor is untouched, so no history is lost on switch-back.
func (c *Controller) SetActiveStream(kind StreamKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = kind
}

// ActiveStream returns the currently polled stream.
func (c *Controller) ActiveStream() StreamKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Logs returns the log stream consumer.
func (c *Controller) Logs() *stream.Consumer[models.LogEntry] { return c.logs }

// Frames returns the frame stream consumer.
func (c *Controller) Frames() *stream.Consumer[models.FrameCapture] { return c.frames }

// Connect applies the point table and starts a session. The table push
// happens synchronously before the connect call; if it fails the session
// stays idle and the backend sees no connect. Local validation failures
// make no backend call at all.
func (c *Controller) Connect(ctx context.Context, params ConnectParams) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrNotIdle
	}
	if c.table == nil || c.table.Empty() {
		c.mu.Unlock()
		return ErrNoPointTable
	}
	if params.Transport == "" {
		params.Transport = c.transport
	}
	if params.Transport == models.TransportSerial && params.SerialName == "" {
		c.mu.Unlock()
		return ErrSerialDeviceRequired
	}

	c.state = StateConnecting
	role := c.role
	table := *c.table
	local, remote := c.localAddr, c.remoteAddr
	c.mu.Unlock()

	fail := func(err error) error {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return err
	}

	if err := c.backend.ApplyConfig(ctx, table); err != nil {
		return fail(fmt.Errorf("apply configuration: %w", err))
	}

	// Empty address: outstation binds the wildcard; master defers to the
	// backend's own default-target policy.
	address := params.Address
	if address == "" && role == models.RoleOutstation {
		address = "0.0.0.0"
	}

	err := c.backend.Connect(ctx, models.ConnectRequest{
		Mode:       role,
		IP:         address,
		Port:       params.Port,
		LocalAddr:  local,
		RemoteAddr: remote,
		ConnType:   params.Transport,
		SerialName: params.SerialName,
		BaudRate:   params.BaudRate,
		DataBits:   params.DataBits,
		Parity:     params.Parity,
		StopBits:   params.StopBits,
	})
	if err != nil {
		return fail(fmt.Errorf("connect: %w", err))
	}

	c.mu.Lock()
	c.state = StateRunning
	c.epoch++
	epoch := c.epoch
	pollCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	if role == models.RoleMaster {
		go c.runCycle(pollCtx, c.opts.MasterInterval, epoch, true)
	} else {
		go c.runCycle(pollCtx, c.opts.OutstationInterval, epoch, false)
	}
	return nil
}

// Disconnect cancels the timers, then tells the backend. Timers are dead
// before the state transition completes; a fetch already in flight has
// its result discarded via the epoch check.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.state = StateDisconnecting
	c.epoch++
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	err := c.backend.Disconnect(ctx)

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
	return err
}

// ManualRead issues a one-shot integrity poll followed by a fetch.
// Master role only.
func (c *Controller) ManualRead(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return ErrNotRunning
	}
	if c.role != models.RoleMaster {
		c.mu.Unlock()
		return ErrMasterOnly
	}
	epoch := c.epoch
	c.mu.Unlock()

	if err := c.backend.Read(ctx); err != nil {
		return err
	}
	c.fetchCycle(ctx, epoch)
	return nil
}

// runCycle is the periodic timer loop: one goroutine, no overlapping
// firings, cancellation by context (stop rearming, not abort).
func (c *Controller) runCycle(ctx context.Context, interval time.Duration, epoch uint64, master bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if master {
				// Master cycle is gated by the operator toggle.
				if !c.PollingEnabled() {
					continue
				}
				if err := c.backend.Read(ctx); err != nil {
					fmt.Printf("[session] read failed: %v\n", err)
				}
			}
			c.fetchCycle(ctx, epoch)
		}
	}
}

// fetchCycle retrieves points and stats and polls the active stream.
// Firings that straddle a disconnect make no further calls and have any
// in-flight result discarded.
func (c *Controller) fetchCycle(ctx context.Context, epoch uint64) {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()

	c.mu.Lock()
	fresh := c.epoch == epoch && c.state == StateRunning
	c.mu.Unlock()
	if !fresh {
		return
	}

	data, err := c.backend.FetchData(ctx)

	c.mu.Lock()
	stale := c.epoch != epoch || c.state != StateRunning
	active := c.active
	c.mu.Unlock()
	if stale {
		return
	}

	if err != nil {
		fmt.Printf("[session] fetch data failed: %v\n", err)
	} else if c.opts.DataSink != nil {
		c.opts.DataSink(data)
	}

	switch active {
	case StreamFrames:
		c.frames.Poll(ctx)
	default:
		c.logs.Poll(ctx)
	}
}
