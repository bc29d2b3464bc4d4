package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapAndIs(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(CodeTransportFailure, cause, "pull drawing")

	assert.True(t, Is(err, CodeTransportFailure))
	assert.False(t, Is(err, CodeUnauthorized))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeTransportFailure, CodeOf(fmt.Errorf("outer: %w", err)))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(CodeInternal, nil, "nothing"))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(stderrors.New("boom")))
	assert.False(t, Is(nil, CodeInternal))
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{New(CodeParseFailure, "bad json"), "Error importing file"},
		{New(CodeInvalidFormat, "missing objects"), "Invalid file format"},
		{New(CodeUnauthorized, "expired"), "Please sign in again"},
		{New(CodeTransportFailure, "dial"), "Could not read or write the drawing"},
		{Wrap(CodeTransportFailure, stderrors.New("permission denied"), "create out.pdf"), "Could not read or write the drawing"},
		{New(CodeServerRejected, "drawing too large"), "drawing too large"},
		{stderrors.New("boom"), "Something went wrong"},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Message(tt.err))
	}
}
