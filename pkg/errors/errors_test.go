package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapAndIsCode(t *testing.T) {
	base := errors.New("disk full")
	err := Wrap(CodeStorage, "failed to store file", base)

	require.EqualError(t, err, "failed to store file: disk full")
	require.True(t, IsCode(err, CodeStorage))
	require.False(t, IsCode(err, CodeNotFound))
	require.ErrorIs(t, err, base)
}

func TestWrapWithoutCause(t *testing.T) {
	err := Wrap(CodeInvalidInput, "file content cannot be empty", nil)
	require.EqualError(t, err, "file content cannot be empty")
	require.Nil(t, errors.Unwrap(err))
}

func TestCodeOfWrappedChain(t *testing.T) {
	err := fmt.Errorf("process run: %w", Wrap(CodeLLM, "grading failed", context.DeadlineExceeded))
	require.Equal(t, CodeLLM, CodeOf(err))
	require.Equal(t, "", CodeOf(errors.New("plain")))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
