package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientFramesError(t *testing.T) {
	var err error = NewInsufficientFrames(7, 10)
	wrapped := fmt.Errorf("commit: %w", err)

	assert.ErrorIs(t, wrapped, ErrInsufficientFrames)

	var ife *InsufficientFramesError
	require.True(t, errors.As(wrapped, &ife))
	assert.Equal(t, 7, ife.Matched)
	assert.Equal(t, 10, ife.Required)
	assert.Equal(t, "facecommit: insufficient frames (7 of 10)", err.Error())
}

func TestErrorWithMessage(t *testing.T) {
	err := WithMessage(ErrInvalidInput, "frame width is zero")

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "facecommit: invalid input (frame width is zero)", err.Error())
	assert.Equal(t, "facecommit: no enrollment", WithMessage(ErrNoEnrollment, "").Error())
}
