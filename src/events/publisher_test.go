package events

import (
	"encoding/json"
	"testing"
	"time"

	"market-data-hub/src/logger"
	"market-data-hub/src/models"

	"github.com/stretchr/testify/require"
)

func TestMessageKeysByProvider(t *testing.T) {
	t.Parallel()

	// Arrange
	ts := time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)
	evt := models.MProviderEvent{ID: "e1", Type: models.EventCircuitOpened, Router: "global", Provider: "yahoo", Message: "3 failures", Timestamp: ts}

	// Act
	msg, err := message(evt)

	// Assert
	require.NoError(t, err)
	require.Equal(t, "yahoo", string(msg.Key))
	require.Equal(t, ts, msg.Time)
	require.Equal(t, string(models.EventCircuitOpened), string(msg.Headers[0].Value))

	var decoded models.MProviderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	require.Equal(t, evt.Provider, decoded.Provider)
	require.Equal(t, evt.Type, decoded.Type)
}

func TestNewPublisherSelectsBackend(t *testing.T) {
	t.Parallel()

	log := logger.NewLogger(nil, "EventsTest")

	// Act
	disabled, err1 := NewPublisher(models.MKafkaConfig{}, log)
	enabled, err2 := NewPublisher(models.MKafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "provider-events"}, log)
	_, err3 := NewPublisher(models.MKafkaConfig{Enabled: true}, log)

	// Assert
	require.NoError(t, err1)
	require.IsType(t, &LogPublisher{}, disabled)
	require.NoError(t, disabled.Publish(t.Context(), models.MProviderEvent{Type: models.EventRateLimited, Provider: "finnhub"}))

	require.NoError(t, err2)
	require.IsType(t, &KafkaPublisher{}, enabled)
	require.NoError(t, enabled.Close())
	require.NoError(t, enabled.Close())

	require.Error(t, err3)
}
