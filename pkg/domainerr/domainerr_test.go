package domainerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"code only", &Error{Code: CodeInvalidInput}, "INVALID_INPUT"},
		{"field and message", New(CodeNegativeCount, "$5", "negative count"), "$5: negative count"},
		{"formatted", Newf(CodeInvalidDenomination, "$3", "invalid denomination: %s", "$3"), "$3: invalid denomination: $3"},
		{"wrapped cause", Wrap(CodeInvalidInput, "safe_float", errors.New("boom")), "safe_float: INVALID_INPUT: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestSentinelMatching(t *testing.T) {
	err := Newf(CodeNoExactAllocation, "target_value", "cannot make %s", "50.00")

	assert.ErrorIs(t, err, ErrNoExactAllocation)
	assert.NotErrorIs(t, err, ErrInsufficientFunds)

	wrapped := fmt.Errorf("solve: %w", err)
	assert.ErrorIs(t, wrapped, ErrNoExactAllocation)
	assert.Equal(t, CodeNoExactAllocation, CodeOf(wrapped))
}

func TestWrapKeepsCause(t *testing.T) {
	inner := New(CodeNegativeCount, "$5", "negative")
	err := Wrap(CodeInvalidInput, "safe_float", inner)

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, ErrNegativeCount)
	assert.Equal(t, CodeInvalidInput, CodeOf(err), "outermost code wins")

	var de *Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "safe_float", de.Field)
	assert.Same(t, inner, errors.Unwrap(err))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(CodeInvalidInput, "x", nil))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
}
