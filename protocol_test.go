package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeServerMessage(t *testing.T) {
	msg, err := decodeServerMessage([]byte(`{"type":"roundStart","round":3,"totalRounds":15,"item":{"name":"PARROT","canFly":true},"durationMs":1000}`))
	require.NoError(t, err)

	rs, ok := msg.(*RoundStartMessage)
	require.True(t, ok)
	assert.Equal(t, 3, rs.Round)
	assert.Equal(t, "PARROT", rs.Item.Name)
	assert.True(t, rs.Item.CanFly)
	assert.EqualValues(t, 1000, rs.DurationMs)
}

func TestDecodeServerMessageRoundEnd(t *testing.T) {
	msg, err := decodeServerMessage([]byte(`{"type":"roundEnd","correctAnswer":"lift","results":{"p1":{"action":"lifted","points":10,"correct":true,"newScore":10}}}`))
	require.NoError(t, err)

	re, ok := msg.(*RoundEndMessage)
	require.True(t, ok)
	assert.Equal(t, "lift", re.CorrectAnswer)
	require.Contains(t, re.Results, "p1")
	assert.Equal(t, ActionLifted, re.Results["p1"].Action)
	require.NotNil(t, re.Results["p1"].Correct)
	assert.True(t, *re.Results["p1"].Correct)
}

func TestDecodeServerMessageUnknownType(t *testing.T) {
	// Unknown tags are ignored, not errors: old clients must survive new
	// broadcasts.
	msg, err := decodeServerMessage([]byte(`{"type":"confetti","amount":9000}`))
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestDecodeServerMessageMalformed(t *testing.T) {
	_, err := decodeServerMessage([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestDecodeServerMessagePauseResume(t *testing.T) {
	msg, err := decodeServerMessage([]byte(`{"type":"pause","pausedBy":"host-1"}`))
	require.NoError(t, err)

	p, ok := msg.(*PauseMessage)
	require.True(t, ok)
	assert.Equal(t, msgPause, p.Type)
	assert.Equal(t, "host-1", p.PausedBy)

	msg, err = decodeServerMessage([]byte(`{"type":"resume"}`))
	require.NoError(t, err)

	p, ok = msg.(*PauseMessage)
	require.True(t, ok)
	assert.Equal(t, msgResume, p.Type)
}
