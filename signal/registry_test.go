package signal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryBuildAndUnknownName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("text_length", NewLengthSignal))

	sig, err := r.Build("text_length", nil)
	require.NoError(t, err)
	require.Equal(t, "text_length", sig.Descriptor().Name)

	_, err = r.Build("nope", nil)
	require.Error(t, err)
	var unknown *UnknownSignalError
	require.ErrorAs(t, err, &unknown)
}

func TestRegistryRejectsDuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("text_length", NewLengthSignal))
	require.Error(t, r.Register("text_length", NewLengthSignal))
}

func TestRegistryClearRemovesAll(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("text_length", NewLengthSignal))
	r.Clear()
	require.Empty(t, r.Names())
}
