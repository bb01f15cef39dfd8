package consumer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/th1vairam/mHealthTools/internal/config"
	"github.com/th1vairam/mHealthTools/internal/models"
)

// setupMQTTConsumer 构造仅接 Redis 的 MQTT 消费者（handleMessage 不触碰 broker）
func setupMQTTConsumer(t *testing.T) (*MQTTConsumer, *redis.Client) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{}
	cfg.Stream.Name = "assay:recording:stream"
	cfg.MQTT.RecordingTopic = "assay/+/recording"

	return NewMQTTConsumer(cfg, nil, redisClient, zap.NewNop()), redisClient
}

func TestHandleMessage_PublishesToStream(t *testing.T) {
	consumer, redisClient := setupMQTTConsumer(t)
	ctx := context.Background()

	payload := []byte(`{"recording_id":"rec-1","accelerometer":[{"t":0,"x":1,"y":2,"z":3}]}`)
	err := consumer.handleMessage("assay/device-7/recording", payload)
	require.NoError(t, err)

	entries, err := redisClient.XRange(ctx, "assay:recording:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// 主题中的设备标识为准
	assert.Equal(t, "device-7", entries[0].Values["device_id"])
	assert.Equal(t, "rec-1", entries[0].Values["recording_id"])

	var recording models.Recording
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["data"].(string)), &recording))
	assert.Equal(t, "device-7", recording.DeviceID)
	assert.Equal(t, "rec-1", recording.RecordingID)
	require.Len(t, recording.Accelerometer, 1)
	assert.Equal(t, 1.0, recording.Accelerometer[0].X)
}

func TestHandleMessage_GeneratesRecordingID(t *testing.T) {
	consumer, redisClient := setupMQTTConsumer(t)
	ctx := context.Background()

	err := consumer.handleMessage("assay/device-7/recording", []byte(`{"accelerometer":[]}`))
	require.NoError(t, err)

	entries, err := redisClient.XRange(ctx, "assay:recording:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	recordingID, ok := entries[0].Values["recording_id"].(string)
	require.True(t, ok)
	_, err = uuid.Parse(recordingID)
	assert.NoError(t, err, "generated recording_id should be a UUID")
}

func TestHandleMessage_InvalidTopic(t *testing.T) {
	consumer, _ := setupMQTTConsumer(t)

	err := consumer.handleMessage("assay", []byte(`{}`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid topic format")
}

func TestHandleMessage_InvalidPayload(t *testing.T) {
	consumer, redisClient := setupMQTTConsumer(t)
	ctx := context.Background()

	err := consumer.handleMessage("assay/device-7/recording", []byte("not json"))
	assert.Error(t, err)

	entries, err := redisClient.XRange(ctx, "assay:recording:stream", "-", "+").Result()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
