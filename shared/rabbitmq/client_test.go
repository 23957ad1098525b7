package rabbitmq

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewClient_Unreachable(t *testing.T) {
	_, err := NewClient(&Config{
		Host:          "127.0.0.1",
		Port:          1,
		User:          "guest",
		Password:      "guest",
		ExchangeName:  "sync_runs",
		ExchangeType:  "topic",
		RetryAttempts: 2,
		RetryInterval: time.Millisecond,
	}, discardLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestPublish_NotConnected(t *testing.T) {
	c := &Client{config: &Config{}, logger: discardLogger()}

	assert.False(t, c.IsConnected())
	err := c.Publish(context.Background(), []byte(`{}`), "application/json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
	assert.NoError(t, c.Close())
}
