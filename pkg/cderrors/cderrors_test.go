package cderrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapWithNilCauseReturnsKindItself(t *testing.T) {
	err := Wrap(Invalid, nil)
	assert.Equal(t, Invalid, err)
}

func TestWrapMatchesBothKindAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(NoSpace, cause)

	assert.ErrorIs(t, err, NoSpace)
	assert.ErrorIs(t, err, cause)
}
