package failure

import (
	"errors"
	"strconv"
)

var (
	ErrInvalidInput       = errors.New("facecommit: invalid input")
	ErrInsufficientFrames = errors.New("facecommit: insufficient frames")
	ErrNoEnrollment       = errors.New("facecommit: no enrollment")
	ErrEncodingFailure    = errors.New("facecommit: encoding failure")
	ErrNotReady           = errors.New("facecommit: session not ready")
)

// InsufficientFramesError reports how many usable frames were available
// against how many an operation required.
type InsufficientFramesError struct {
	Matched  int
	Required int
}

func NewInsufficientFrames(matched, required int) *InsufficientFramesError {
	return &InsufficientFramesError{
		Matched:  matched,
		Required: required,
	}
}

func (e *InsufficientFramesError) Error() string {
	return ErrInsufficientFrames.Error() + " (" + strconv.Itoa(e.Matched) + " of " + strconv.Itoa(e.Required) + ")"
}

func (e *InsufficientFramesError) Unwrap() error {
	return ErrInsufficientFrames
}

type ErrorWithMessage struct {
	Message string
	Err     error
}

// WithMessage annotates err with a detail message. errors.Is still sees err.
func WithMessage(err error, msg string) *ErrorWithMessage {
	return &ErrorWithMessage{
		Message: msg,
		Err:     err,
	}
}

func (m *ErrorWithMessage) Error() string {
	if m.Message != "" {
		return m.Err.Error() + " (" + m.Message + ")"
	}
	return m.Err.Error()
}

func (m *ErrorWithMessage) Unwrap() error {
	return m.Err
}
