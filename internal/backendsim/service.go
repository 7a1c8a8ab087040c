package backendsim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/grid-telemetry/dnp3-tester/internal/models"
)

type pointKey struct {
	typ   models.PointType
	index uint16
}

// Service simulates one protocol session: point table, counters and the
// pending select bookkeeping for two-phase control. One Service per
// X-Session-ID; the log store is shared across sessions.
type Service struct {
	store *LogStore

	mu        sync.Mutex
	points    []models.DataPoint
	stats     models.Stats
	connected bool
	role      models.Role
	local     uint16
	remote    uint16
	seq       uint8
	pending   map[pointKey]float64 // value held by an accepted select
	simCancel context.CancelFunc
}

// NewService creates a disconnected service sharing the given store.
func NewService(store *LogStore) *Service {
	return &Service{
		store:   store,
		pending: make(map[pointKey]float64),
	}
}

// ApplyConfig replaces the point table. Refused while a session is live:
// once connected, the backend copy is authoritative until disconnect.
func (s *Service) ApplyConfig(cfg models.DeviceConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return fmt.Errorf("disconnect before applying configuration")
	}
	s.points = cfg.Points()
	s.pending = make(map[pointKey]float64)
	return nil
}

// AddPoint appends one point. The (type, index) identity must be unique.
func (s *Service) AddPoint(typ models.PointType, index uint16, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return fmt.Errorf("disconnect before editing points")
	}
	for _, p := range s.points {
		if p.Type == typ && p.Index == index {
			return fmt.Errorf("point %s[%d] already exists", typ, index)
		}
	}
	s.points = append(s.points, models.NewDataPoint(typ, index, name))
	return nil
}

// ClearPoints removes every point.
func (s *Service) ClearPoints() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return fmt.Errorf("disconnect before editing points")
	}
	s.points = nil
	s.pending = make(map[pointKey]float64)
	return nil
}

// Connect starts a simulated session. The outstation role gets a
// telemetry simulation ticker; outputs only ever change via control.
func (s *Service) Connect(req models.ConnectRequest, simInterval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return fmt.Errorf("already connected")
	}
	if len(s.points) == 0 {
		return fmt.Errorf("no point configuration applied")
	}
	switch req.Mode {
	case models.RoleMaster, models.RoleOutstation:
	default:
		return fmt.Errorf("invalid mode: %s", req.Mode)
	}
	if req.ConnType == models.TransportSerial {
		if req.SerialName == "" {
			return fmt.Errorf("serial device not configured")
		}
		baud := req.BaudRate
		if baud == 0 {
			baud = 9600
		}
		if err := validateSerialPort(req.SerialName, int(baud)); err != nil {
			return fmt.Errorf("serial open failed: %v", err)
		}
	}

	s.connected = true
	s.role = req.Mode
	s.local = req.LocalAddr
	s.remote = req.RemoteAddr
	s.stats = models.Stats{}
	for i := range s.points {
		s.points[i].Value = 0
		s.points[i].Quality = models.QualityOffline
		s.points[i].Timestamp = time.Now().UnixMilli()
	}

	if req.Mode == models.RoleOutstation {
		s.store.AddLog(models.DirectionSystem, "Outstation started")
		ctx, cancel := context.WithCancel(context.Background())
		s.simCancel = cancel
		go s.runSimulation(ctx, simInterval)
	} else {
		s.store.AddLog(models.DirectionSystem, "Master connected")
	}
	return nil
}

// Disconnect stops the session and its simulation ticker.
func (s *Service) Disconnect() {
	s.mu.Lock()
	cancel := s.simCancel
	s.simCancel = nil
	wasConnected := s.connected
	s.connected = false
	s.pending = make(map[pointKey]float64)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wasConnected {
		s.store.AddLog(models.DirectionSystem, "Disconnected")
	}
}

// Read simulates a manual integrity poll. Master role only.
func (s *Service) Read() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return fmt.Errorf("not connected")
	}
	if s.role != models.RoleMaster {
		return fmt.Errorf("read is only valid for the master role")
	}
	s.store.AddLog(models.DirectionTX, "READ Class 0,1,2,3 (Integrity Poll)")
	s.store.AddFrame(models.DirectionTX, buildFrame(true, s.remote, s.local, s.nextSeq(), fcRead))
	s.store.AddFrame(models.DirectionRX, buildFrame(false, s.local, s.remote, s.nextSeq(), fcResponse))
	s.stats.TX++
	s.stats.RX++
	for i := range s.points {
		s.points[i].Quality = models.QualityOnline
		s.points[i].Timestamp = time.Now().UnixMilli()
	}
	return nil
}

// Control executes one control phase against a single output point.
func (s *Service) Control(req models.ControlRequest) models.ControlResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	fail := func(format string, args ...interface{}) models.ControlResponse {
		s.stats.Errors++
		msg := fmt.Sprintf(format, args...)
		s.store.AddLog(models.DirectionError, "Control failed: "+msg)
		return models.ControlResponse{Status: "error", Message: msg}
	}

	if !s.connected {
		return fail("not connected")
	}
	if !req.PointType.IsOutput() {
		return fail("unsupported point type: %s", req.PointType)
	}
	idx := s.findPoint(req.PointType, req.Index)
	if idx < 0 {
		return fail("unknown point %s[%d]", req.PointType, req.Index)
	}

	key := pointKey{req.PointType, req.Index}
	switch req.OpMode {
	case models.DisciplineSelect:
		s.pending[key] = req.Value
		s.exchange(fcSelect, true)
		return models.ControlResponse{Status: "success", Message: "select accepted"}

	case models.DisciplineOperate:
		if _, ok := s.pending[key]; !ok {
			return fail("no select pending for %s[%d]", req.PointType, req.Index)
		}
		delete(s.pending, key)
		s.applyControl(idx, req.Value)
		s.exchange(fcOperate, true)
		return models.ControlResponse{Status: "success", Message: "operate executed"}

	case models.DisciplineDirectNoAck:
		s.applyControl(idx, req.Value)
		s.exchange(fcDirectOperateNoAck, false)
		return models.ControlResponse{Status: "success", Message: "direct operate (no ack) executed"}

	default: // Direct; unrecognized tags fall back to direct operate
		s.applyControl(idx, req.Value)
		s.exchange(fcDirectOperate, true)
		return models.ControlResponse{Status: "success", Message: "direct operate executed"}
	}
}

// exchange captures the TX frame for a control phase and, when the
// discipline is acknowledged, the RX response.
func (s *Service) exchange(function byte, acked bool) {
	s.store.AddLog(models.DirectionTX, fmt.Sprintf("Control %s", functionLabel(function)))
	s.store.AddFrame(models.DirectionTX, buildFrame(true, s.remote, s.local, s.nextSeq(), function))
	s.stats.TX++
	if acked {
		s.store.AddFrame(models.DirectionRX, buildFrame(false, s.local, s.remote, s.nextSeq(), fcResponse))
		s.stats.RX++
	}
}

func functionLabel(function byte) string {
	switch function {
	case fcSelect:
		return "SELECT"
	case fcOperate:
		return "OPERATE"
	case fcDirectOperateNoAck:
		return "DIRECT_OPERATE_NO_ACK"
	default:
		return "DIRECT_OPERATE"
	}
}

func (s *Service) applyControl(idx int, value float64) {
	s.points[idx].Value = value
	s.points[idx].Quality = models.QualityOnline
	s.points[idx].Timestamp = time.Now().UnixMilli()
}

func (s *Service) findPoint(typ models.PointType, index uint16) int {
	for i, p := range s.points {
		if p.Type == typ && p.Index == index {
			return i
		}
	}
	return -1
}

func (s *Service) nextSeq() uint8 {
	s.seq = (s.seq + 1) & 0x3F
	return s.seq
}

// Data returns the current points and counters.
func (s *Service) Data() models.DataResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	points := make([]models.DataPoint, len(s.points))
	copy(points, s.points)
	return models.DataResponse{Points: points, Stats: s.stats}
}

// runSimulation fabricates outstation telemetry: analog inputs random
// walk, counters accumulate, binary inputs toggle. Output points are
// never randomized.
func (s *Service) runSimulation(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.simulateOnce()
		}
	}
}

func (s *Service) simulateOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return
	}
	now := time.Now().UnixMilli()
	unsolicited := false
	for i := range s.points {
		p := &s.points[i]
		switch p.Type {
		case models.PointAnalogInput:
			p.Value = 200.0 + rand.Float64()*50.0
			unsolicited = true
		case models.PointCounter:
			p.Value += rand.Float64() * 10.0
			unsolicited = true
		case models.PointBinaryInput:
			if rand.Float64() > 0.5 {
				p.Value = 1.0
			} else {
				p.Value = 0.0
			}
			unsolicited = true
		}
		p.Quality = models.QualityOnline
		p.Timestamp = now
	}
	if unsolicited {
		s.store.AddFrame(models.DirectionTX, buildFrame(true, s.remote, s.local, s.nextSeq(), fcUnsolicitedResponse))
		s.stats.TX++
	}
}
