package pipeline

import (
	"time"

	"github.com/byosync/facecommit/pkg/enrollment"
	"github.com/google/uuid"
)

type Mode int

const (
	ModeEnrollment Mode = iota
	ModeVerification
)

func (m Mode) String() string {
	switch m {
	case ModeEnrollment:
		return "enrollment"
	case ModeVerification:
		return "verification"
	default:
		return "unknown"
	}
}

// Session is the context of one capture session. The caller creates it when
// the session starts and replaces it through Pipeline.Reset.
type Session struct {
	ID        uuid.UUID
	Mode      Mode
	Identity  enrollment.Identity
	StartedAt time.Time
}

func NewSession(mode Mode, identity enrollment.Identity, now time.Time) Session {
	return Session{
		ID:        uuid.New(),
		Mode:      mode,
		Identity:  identity,
		StartedAt: now,
	}
}
