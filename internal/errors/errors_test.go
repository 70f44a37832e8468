package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	err := New(CodeValidation, "import-mnemonic", "mnemonic must not be empty")
	assert.Equal(t, "import-mnemonic: mnemonic must not be empty", err.Error())

	cause := errors.New("exit status 1")
	err = Newf(CodeCommand, "docker stop", "container %s", "push-node").WithCause(cause)
	assert.Equal(t, "docker stop: container push-node: exit status 1", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestWrapCode(t *testing.T) {
	t.Run("plain error gets a code", func(t *testing.T) {
		base := errors.New("boom")
		err := WrapCode(base, CodeConfig, "load", "reading store")
		require.NotNil(t, err)
		assert.Equal(t, CodeConfig, err.Code)
		assert.ErrorIs(t, err, base)
	})

	t.Run("coded error keeps its code", func(t *testing.T) {
		base := New(CodeResourceExhausted, "", "no free port")
		err := WrapCode(fmt.Errorf("outer: %w", base), CodeConfig, "start", "allocating ports")
		assert.Equal(t, CodeResourceExhausted, err.Code)
		assert.Equal(t, "start", err.Op)
		assert.Equal(t, "allocating ports", err.Context["wrapped_message"])
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, WrapCode(nil, CodeConfig, "", ""))
		assert.NoError(t, Wrap(nil, "x"))
		assert.NoError(t, Wrapf(nil, "x %d", 1))
	})
}

func TestIsFatal(t *testing.T) {
	testCases := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), true},
		{"precondition", New(CodePrecondition, "", "docker missing"), true},
		{"exhausted", New(CodeResourceExhausted, "", "no port"), true},
		{"validation", New(CodeValidation, "", "empty"), true},
		{"retrieval", New(CodeRetrieval, "", "empty output"), false},
		{"degraded", New(CodeDegraded, "", "no socket table"), false},
		{"wrapped retrieval", Wrap(New(CodeRetrieval, "", "bad json"), "poll"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.fatal, IsFatal(tc.err))
		})
	}
}

func TestHasCode(t *testing.T) {
	err := Wrapf(New(CodeRetrieval, "status", "no output"), "poll %d", 3)
	assert.True(t, HasCode(err, CodeRetrieval))
	assert.False(t, HasCode(err, CodeValidation))
	assert.Equal(t, CodeRetrieval, CodeOf(err))
	assert.Equal(t, Code(""), CodeOf(errors.New("x")))
}
