package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"codeberg.org/mutker/envsim/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrInvalidDailyTime)
	assert.Equal(t, "Invalid daily time", err.Error())

	err = errFactory.Wrap(errors.ErrCycle, stderrors.New("disk full"))
	assert.Equal(t, "Rotation cycle failed: disk full", err.Error())

	err = errFactory.WithData(errors.ErrInvalidDailyTime, "7:xx")
	assert.Equal(t, "Invalid daily time: 7:xx", err.Error())

	err = errFactory.WithMessage(errors.ErrorCode("custom"), "custom message")
	assert.Equal(t, "custom message", err.Error())
	assert.Equal(t, "unknown_code", errors.GetErrorMessage("unknown_code"))
}

func TestHasCode(t *testing.T) {
	errFactory := errors.New()
	root := stderrors.New("locked")
	inner := errFactory.Wrap(errors.ErrorCode("store_access_failed"), root)
	outer := errFactory.Wrap(errors.ErrCycle, fmt.Errorf("insert: %w", inner))

	assert.True(t, errors.HasCode(outer, errors.ErrCycle))
	assert.True(t, errors.HasCode(outer, "store_access_failed"))
	assert.False(t, errors.HasCode(outer, errors.ErrInvalidDailyTime))
	assert.False(t, errors.HasCode(root, errors.ErrCycle))
	assert.False(t, errors.HasCode(nil, errors.ErrCycle))
	assert.True(t, errors.Is(outer, root))
}

func TestCodeOf(t *testing.T) {
	errFactory := errors.New()

	assert.Equal(t, errors.ErrNotRunning, errors.CodeOf(errFactory.New(errors.ErrNotRunning)))
	assert.Equal(t, errors.ErrInternal, errors.CodeOf(stderrors.New("plain")))
}
