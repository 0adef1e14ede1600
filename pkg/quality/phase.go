package quality

import (
	"fmt"
	"time"
)

type PhaseKind int

const (
	CenterCollecting PhaseKind = iota
	MovementCollecting
	Done
)

func (k PhaseKind) String() string {
	switch k {
	case CenterCollecting:
		return "centerCollecting"
	case MovementCollecting:
		return "movementCollecting"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Phase is the enrollment capture stage. Deadline is only set while collecting movement frames.
type Phase struct {
	Kind     PhaseKind
	Deadline time.Time
}

func (p Phase) String() string {
	if p.Kind == MovementCollecting {
		return fmt.Sprintf("%s(%s)", p.Kind, p.Deadline.Format(time.RFC3339Nano))
	}
	return p.Kind.String()
}

// Completion decides what ends the movement phase.
type Completion string

const (
	CompleteOnDeadline Completion = "deadline"
	CompleteOnQuota    Completion = "quota"
	CompleteOnEither   Completion = "either"
)

type PhaseConfig struct {
	CenterQuota      int
	MovementQuota    int
	MovementDuration time.Duration
	Completion       Completion
}

func DefaultPhaseConfig() PhaseConfig {
	return PhaseConfig{
		CenterQuota:      60,
		MovementQuota:    20,
		MovementDuration: 10 * time.Second,
		Completion:       CompleteOnEither,
	}
}

// Machine drives the registration phase forward. It never moves backwards;
// a new session gets a new Machine.
type Machine struct {
	cfg      PhaseConfig
	phase    Phase
	center   int
	movement int
}

func NewMachine(cfg PhaseConfig) *Machine {
	return &Machine{
		cfg:   cfg,
		phase: Phase{Kind: CenterCollecting},
	}
}

func (m *Machine) Phase() Phase {
	return m.phase
}

// Counts returns the accepted frames counted in the center and movement phases.
func (m *Machine) Counts() (center, movement int) {
	return m.center, m.movement
}

// Accept counts one accepted frame in the current phase and returns the phase
// the frame belongs to and whether the machine advanced.
func (m *Machine) Accept(now time.Time) (Phase, bool) {
	current := m.phase

	switch current.Kind {
	case CenterCollecting:
		m.center++
		if m.center >= m.cfg.CenterQuota {
			m.phase = Phase{
				Kind:     MovementCollecting,
				Deadline: now.Add(m.cfg.MovementDuration),
			}
		}
	case MovementCollecting:
		if m.deadlineReached(now) {
			m.phase = Phase{Kind: Done}
			return m.phase, true
		}
		m.movement++
		if m.quotaReached() {
			m.phase = Phase{Kind: Done}
		}
	case Done:
		return current, false
	}

	return current, m.phase.Kind != current.Kind
}

// Tick evaluates the movement deadline without a new frame.
func (m *Machine) Tick(now time.Time) (Phase, bool) {
	if m.phase.Kind == MovementCollecting && m.deadlineReached(now) {
		m.phase = Phase{Kind: Done}
		return m.phase, true
	}
	return m.phase, false
}

func (m *Machine) deadlineReached(now time.Time) bool {
	if m.cfg.Completion == CompleteOnQuota {
		return false
	}
	return !now.Before(m.phase.Deadline)
}

func (m *Machine) quotaReached() bool {
	if m.cfg.Completion == CompleteOnDeadline {
		return false
	}
	return m.movement >= m.cfg.MovementQuota
}
