package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFacts(t *testing.T) {
	facts, err := parseFacts([]string{"cycle_length=28", " entry_count = 6 ", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"cycle_length": "28", "entry_count": "6", "note": "a=b"}, facts)

	_, err = parseFacts([]string{"missing-separator"})
	assert.Error(t, err)
	_, err = parseFacts([]string{"=value"})
	assert.Error(t, err)
}

func TestLocalAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8090", localAddr(":8090"))
	assert.Equal(t, "example.com:80", localAddr("example.com:80"))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "run", "probe", "status"} {
		assert.True(t, names[want], want)
	}
}
