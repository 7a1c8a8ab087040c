// Package backendsim implements a simulated Protocol Backend behind the
// tester's HTTP/JSON boundary, so the tester can run and be integration
// tested without protocol hardware or a live peer.
package backendsim

import (
	"sync"
	"time"

	"github.com/grid-telemetry/dnp3-tester/internal/models"
)

// LogStore retains the append-only log and frame windows shared by every
// session served by one simulator. Entry ids are strictly increasing and
// start at 0; the two streams are numbered independently.
type LogStore struct {
	mu          sync.RWMutex
	logs        []models.LogEntry
	frames      []models.FrameCapture
	nextLogID   uint64
	nextFrameID uint64
	logCap      int
	frameCap    int
}

// NewLogStore creates a store with the given window caps.
func NewLogStore(logCap, frameCap int) *LogStore {
	return &LogStore{logCap: logCap, frameCap: frameCap}
}

// AddLog appends a log entry, evicting the oldest beyond the cap.
func (s *LogStore) AddLog(dir models.Direction, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, models.LogEntry{
		ID:        s.nextLogID,
		Timestamp: time.Now().UnixMilli(),
		Direction: dir,
		Message:   message,
	})
	s.nextLogID++
	if len(s.logs) > s.logCap {
		s.logs = s.logs[len(s.logs)-s.logCap:]
	}
}

// AddFrame appends a frame capture, evicting the oldest beyond the cap.
func (s *LogStore) AddFrame(dir models.Direction, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, models.FrameCapture{
		ID:        s.nextFrameID,
		Timestamp: time.Now().UnixMilli(),
		Direction: dir,
		Data:      data,
	})
	s.nextFrameID++
	if len(s.frames) > s.frameCap {
		s.frames = s.frames[len(s.frames)-s.frameCap:]
	}
}

// Logs returns a copy of the current log window, oldest first.
func (s *LogStore) Logs() []models.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

// Frames returns a copy of the current frame window, oldest first.
func (s *LogStore) Frames() []models.FrameCapture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FrameCapture, len(s.frames))
	copy(out, s.frames)
	return out
}
