package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"teamchat-core/server/internal/config"
)

func TestNewBroker_DisabledConfigSkipsKafkaEntirely(t *testing.T) {
	b := NewBroker(&config.BrokerConfig{Enabled: false}, &config.CircuitBreakerConfig{})

	assert.False(t, b.enabled)
	assert.NoError(t, b.Publish(context.Background(), "topic", "key", []byte("payload")))
	assert.NoError(t, b.Close())
}
