package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type retryableError struct {
	Retry bool `json:"retry"`
	Code  int  `json:"code"`
}

func (e *retryableError) Error() string { return "busy" }

func decodePayload(t *testing.T, payload string) map[string]any {
	t.Helper()
	var fields map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &fields))
	return fields
}

func TestEncodeErrorJoined(t *testing.T) {
	err := errors.Join(&codedError{Code: 42}, errors.New("other"))
	fields := decodePayload(t, EncodeError(err))
	require.Equal(t, "boom\nother", fields["message"])
	require.EqualValues(t, 42, fields["code"])
}

func TestEncodeErrorSeveralWrapped(t *testing.T) {
	err := fmt.Errorf("both: %w, %w", &codedError{Code: 7}, &retryableError{Retry: true, Code: 9})
	fields := decodePayload(t, EncodeError(err))
	require.Equal(t, "both: boom, busy", fields["message"])
	require.EqualValues(t, 7, fields["code"], "first wrapped error wins")
	require.Equal(t, true, fields["retry"])
}

func TestEncodeErrorOuterWins(t *testing.T) {
	inner := &codedError{Code: 1}
	outer := &wrappingError{Code: 2, err: inner}
	fields := decodePayload(t, EncodeError(outer))
	require.EqualValues(t, 2, fields["code"])
}

func TestEncodeErrorKeepsRemoteCause(t *testing.T) {
	remote := DecodeError(`{"message":"far away","code":5}`)
	fields := decodePayload(t, EncodeError(fmt.Errorf("relay: %w", remote)))
	require.Equal(t, "relay: far away", fields["message"])
	require.EqualValues(t, 5, fields["code"])
}

func TestDecodeErrorRawPayload(t *testing.T) {
	remote := DecodeError("plain text")
	require.Equal(t, "plain text", remote.Message)
	require.Nil(t, remote.Cause)

	remote = DecodeError(`{"code":3}`)
	require.Empty(t, remote.Message)
	require.EqualValues(t, 3, remote.Cause["code"])
}

type wrappingError struct {
	Code int `json:"code"`
	err  error
}

func (e *wrappingError) Error() string { return "wrapping: " + e.err.Error() }
func (e *wrappingError) Unwrap() error { return e.err }
