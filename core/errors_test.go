package core

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsUnwrapThroughWrapping(t *testing.T) {
	base := &PersistenceError{Op: "write", Path: "/tmp/x", Err: os.ErrPermission}
	wrapped := fmt.Errorf("append turn: %w", base)

	var pe *PersistenceError
	require.True(t, errors.As(wrapped, &pe))
	assert.Equal(t, "write", pe.Op)
	assert.ErrorIs(t, wrapped, os.ErrPermission)
}

func TestProviderErrorMessage(t *testing.T) {
	assert.Equal(t, "completion provider: status 401: bad key",
		(&ProviderError{Provider: "completion", Status: 401, Message: "bad key"}).Error())
	assert.Equal(t, "speech provider: dial tcp: refused",
		(&ProviderError{Provider: "speech", Err: errors.New("dial tcp: refused")}).Error())
}

func TestStatusLine(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&RecognitionError{Kind: RecognitionUnintelligible}, "[Voice] Could not understand audio."},
		{&RecognitionError{Kind: RecognitionUnavailable, Err: errors.New("no key")}, "[Voice] Recognition unavailable: no key"},
		{&ProviderError{Provider: "completion", Status: 500}, "[Error] completion provider: status 500"},
		{&ProviderError{Provider: "speech", Status: 401}, "[TTS] speech provider: status 401"},
		{&NotFoundError{Resource: "session", Name: "x.txt"}, "[Error] session not found: x.txt"},
		{errors.New("boom"), "[Error] boom"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusLine(tc.err))
	}
	assert.Contains(t, StatusLine(&PersistenceError{Op: "open", Path: "p", Err: os.ErrNotExist}), "[Storage]")
}
