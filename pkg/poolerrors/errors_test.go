package poolerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByKindNotCause(t *testing.T) {
	causeA := errors.New("dial refused")
	causeB := errors.New("timeout")

	err1 := Wrap(NotReady, "wait_for_ready", causeA)
	err2 := Wrap(NotReady, "wait_for_ready", causeB)

	assert.True(t, errors.Is(err1, err2), "same Kind must match regardless of distinct causes")
	assert.True(t, errors.Is(err1, ErrNotReady))
	assert.False(t, errors.Is(err1, ErrUnhealthy))
}

func TestErrorUnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(Unhealthy, "health_check", cause)
	assert.ErrorIs(t, err, cause)
}

func TestErrorAsExtractsConcreteType(t *testing.T) {
	err := New(NoHealthyPools, "get_client").WithURL("redis://node-a")

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, NoHealthyPools, perr.Kind)
	assert.Equal(t, "redis://node-a", perr.URL)
}

func TestErrorMessageIncludesURLWhenSet(t *testing.T) {
	err := New(UnknownNode, "get_client").WithURL("redis://node-a")
	assert.Contains(t, err.Error(), "redis://node-a")
	assert.Contains(t, err.Error(), "get_client")
}

func TestWithURLDoesNotMutateOriginal(t *testing.T) {
	base := New(NodeClosing, "close_node")
	withURL := base.WithURL("redis://node-a")

	assert.Empty(t, base.URL)
	assert.Equal(t, "redis://node-a", withURL.URL)
}
