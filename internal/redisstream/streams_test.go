package redisstream

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStream(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestEnsureGroup_Idempotent(t *testing.T) {
	client := setupStream(t)
	ctx := context.Background()

	require.NoError(t, EnsureGroup(ctx, client, "test:stream", "workers"))
	// 组已存在时（BUSYGROUP）不报错
	require.NoError(t, EnsureGroup(ctx, client, "test:stream", "workers"))
}

func TestPublishRecording_ReadRoundTrip(t *testing.T) {
	client := setupStream(t)
	ctx := context.Background()

	require.NoError(t, EnsureGroup(ctx, client, "test:stream", "workers"))

	payload := []byte(`{"recording_id":"rec-1","device_id":"device-1"}`)
	id, err := PublishRecording(ctx, client, "test:stream", "device-1", "rec-1", payload)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	messages, err := Read(ctx, client, "test:stream", "workers", "consumer-1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	assert.Equal(t, id, messages[0].ID)
	assert.Equal(t, "device-1", messages[0].Values["device_id"])
	assert.Equal(t, "rec-1", messages[0].Values["recording_id"])

	data, ok := messages[0].Data()
	require.True(t, ok)
	assert.JSONEq(t, string(payload), data)
}

func TestAck_ClearsPending(t *testing.T) {
	client := setupStream(t)
	ctx := context.Background()

	require.NoError(t, EnsureGroup(ctx, client, "test:stream", "workers"))

	id, err := PublishRecording(ctx, client, "test:stream", "device-1", "rec-1", []byte(`{}`))
	require.NoError(t, err)

	messages, err := Read(ctx, client, "test:stream", "workers", "consumer-1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	pending, err := client.XPending(ctx, "test:stream", "workers").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)

	require.NoError(t, Ack(ctx, client, "test:stream", "workers", id))

	pending, err = client.XPending(ctx, "test:stream", "workers").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestMessage_DataMissing(t *testing.T) {
	msg := Message{Values: map[string]interface{}{"device_id": "device-1"}}
	_, ok := msg.Data()
	assert.False(t, ok)

	msg = Message{Values: map[string]interface{}{"data": 42}}
	_, ok = msg.Data()
	assert.False(t, ok)
}
