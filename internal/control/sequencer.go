// Package control implements the per-point control attempt state machine
// covering the two sanctioned disciplines: immediate execute (acknowledged
// or not) and two-phase select-before-operate.
package control

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/grid-telemetry/dnp3-tester/internal/models"
)

// Client issues one control phase against the backend.
type Client interface {
	Control(ctx context.Context, req models.ControlRequest) (models.ControlResponse, error)
}

// Mode is the discipline chosen when the attempt is created.
type Mode int

const (
	ModeDirect Mode = iota
	ModeDirectNoAck
	ModeSBO
)

// Phase is the current state of an attempt.
type Phase int

const (
	PhaseReady      Phase = iota // direct discipline, not yet sent
	PhaseUnselected              // SBO, no select accepted
	PhaseSelected                // SBO, select accepted, operate or cancel legal
	PhaseDone                    // terminal
)

var (
	// ErrTerminated is returned when an operation is attempted on a
	// finished attempt.
	ErrTerminated = errors.New("control attempt already terminated")
	// ErrNotSelected is returned when Operate is attempted without an
	// accepted Select. Rejected locally; the backend is not contacted.
	ErrNotSelected = errors.New("operate requires an accepted select")
)

// CoerceValue normalizes operator input for a point type. Binary points
// map "on"/"true"/"1" (case-insensitive) to 1.0 and everything else to
// 0.0; analog and counter points parse as a float.
func CoerceValue(t models.PointType, raw string) (float64, error) {
	if t.IsBinary() {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "on", "true", "1":
			return 1.0, nil
		default:
			return 0.0, nil
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value %q", raw)
	}
	return v, nil
}

// Attempt is one live control transaction scoped to a single point.
// At most one exists at a time; it is discarded when the operator closes
// the control surface or the attempt terminates.
type Attempt struct {
	client Client
	mode   Mode
	typ    models.PointType
	index  uint16
	phase  Phase
	value  float64 // normalized value carried from Select to Operate
}

// NewAttempt opens an attempt on (typ, index) with the chosen discipline.
func NewAttempt(client Client, mode Mode, typ models.PointType, index uint16) *Attempt {
	phase := PhaseReady
	if mode == ModeSBO {
		phase = PhaseUnselected
	}
	return &Attempt{client: client, mode: mode, typ: typ, index: index, phase: phase}
}

// Phase returns the attempt's current phase.
func (a *Attempt) Phase() Phase { return a.phase }

// Value returns the normalized value of the last accepted phase.
func (a *Attempt) Value() float64 { return a.value }

func (a *Attempt) send(ctx context.Context, tag models.Discipline, value float64) error {
	resp, err := a.client.Control(ctx, models.ControlRequest{
		PointType: a.typ,
		Index:     a.index,
		Value:     value,
		OpMode:    tag,
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("control rejected: %s", resp.Message)
	}
	return nil
}

// Execute runs the direct discipline: one exchange, then terminal. On
// failure the attempt terminates with the error surfaced; there is no
// retry.
func (a *Attempt) Execute(ctx context.Context, raw string) error {
	if a.mode == ModeSBO {
		return errors.New("execute is not valid for a select-before-operate attempt")
	}
	if a.phase != PhaseReady {
		return ErrTerminated
	}
	value, err := CoerceValue(a.typ, raw)
	if err != nil {
		return err
	}
	tag := models.DisciplineDirect
	if a.mode == ModeDirectNoAck {
		tag = models.DisciplineDirectNoAck
	}
	a.phase = PhaseDone
	a.value = value
	return a.send(ctx, tag, value)
}

// Select runs the first SBO phase. A failed select does not advance the
// phase. Note the backend may execute both phases on a single select
// call; the state machine stays correct either way because Selected only
// records that the select was accepted, not that execution was withheld.
func (a *Attempt) Select(ctx context.Context, raw string) error {
	if a.mode != ModeSBO {
		return errors.New("select is only valid for a select-before-operate attempt")
	}
	if a.phase == PhaseDone {
		return ErrTerminated
	}
	if a.phase != PhaseUnselected {
		return fmt.Errorf("select not permitted in phase %d", a.phase)
	}
	value, err := CoerceValue(a.typ, raw)
	if err != nil {
		return err
	}
	if err := a.send(ctx, models.DisciplineSelect, value); err != nil {
		return err
	}
	a.value = value
	a.phase = PhaseSelected
	return nil
}

// Operate runs the second SBO phase with the value carried from Select.
// A failed operate reverts to Unselected: the select is considered
// consumed and must be re-issued explicitly.
func (a *Attempt) Operate(ctx context.Context) error {
	if a.phase == PhaseDone {
		return ErrTerminated
	}
	if a.phase != PhaseSelected {
		return ErrNotSelected
	}
	if err := a.send(ctx, models.DisciplineOperate, a.value); err != nil {
		a.phase = PhaseUnselected
		return err
	}
	a.phase = PhaseDone
	return nil
}

// Cancel abandons an accepted select without contacting the backend.
// It never terminates the attempt; from any phase other than Selected it
// is a no-op.
func (a *Attempt) Cancel() {
	if a.phase == PhaseSelected {
		a.phase = PhaseUnselected
	}
}
