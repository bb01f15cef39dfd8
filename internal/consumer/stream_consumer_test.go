package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/th1vairam/mHealthTools/internal/cache"
	"github.com/th1vairam/mHealthTools/internal/config"
	"github.com/th1vairam/mHealthTools/internal/models"
	"github.com/th1vairam/mHealthTools/internal/redisstream"
	"github.com/th1vairam/mHealthTools/internal/repository"
	"github.com/th1vairam/mHealthTools/internal/service"
)

// setupConsumer 构造带 sqlmock 数据库和 miniredis 的流消费者
func setupConsumer(t *testing.T) (*StreamConsumer, sqlmock.Sqlmock, *redis.Client) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{}
	cfg.Stream = config.StreamConfig{
		Name:     "assay:recording:stream",
		Group:    "assay-workers",
		Consumer: "test-consumer",
	}
	cfg.Assay = config.AssayConfig{
		WindowLength:      128,
		Overlap:           0.5,
		TimeRange:         [2]float64{1, 9},
		FrequencyRange:    [2]float64{1, 25},
		Bandpass:          true,
		RotationThreshold: 0.25,
	}
	cfg.Redis.CacheTTL = time.Hour

	logger := zap.NewNop()
	repo := repository.NewFeatureRepository(db, logger)
	cacheManager := cache.NewManager(redisClient, cfg.Redis.CacheTTL, logger)
	svc := service.NewAssayService(cfg, repo, cacheManager, nil, logger)

	return NewStreamConsumer(cfg, redisClient, svc, logger), mock, redisClient
}

// expectSingleErrorRowSave 预期一次单条错误行运行的落库
func expectSingleErrorRowSave(mock sqlmock.Sqlmock, deviceID, recordingID string) {
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO assay_runs").
		WithArgs(sqlmock.AnyArg(), deviceID, recordingID, models.RunStatusCompletedWithErrors, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep := mock.ExpectPrepare("INSERT INTO feature_records")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func TestProcessMessage_RunsAssayAndAcks(t *testing.T) {
	consumer, mock, _ := setupConsumer(t)
	ctx := context.Background()

	expectSingleErrorRowSave(mock, "device-1", "rec-1")

	// 空加速度计流：降级为单条错误行，但消息处理本身成功
	msg := redisstream.Message{
		ID: "1-0",
		Values: map[string]interface{}{
			"data": `{"recording_id":"rec-1","device_id":"device-1"}`,
		},
	}

	ack, err := consumer.processMessage(ctx, msg)
	require.NoError(t, err)
	assert.True(t, ack)
	require.NoError(t, mock.ExpectationsWereMet())

	snapshot := consumer.Metrics().GetSnapshot()
	assert.Equal(t, int64(1), snapshot.MessagesSucceeded)
	assert.Equal(t, int64(0), snapshot.MessagesFailed)
}

func TestProcessMessage_MissingDataField(t *testing.T) {
	consumer, _, _ := setupConsumer(t)

	msg := redisstream.Message{ID: "1-0", Values: map[string]interface{}{"device_id": "device-1"}}
	ack, err := consumer.processMessage(context.Background(), msg)
	assert.Error(t, err)
	assert.True(t, ack, "poison message should be acked")

	snapshot := consumer.Metrics().GetSnapshot()
	assert.Equal(t, int64(1), snapshot.ErrorsParse)
}

func TestProcessMessage_InvalidJSON(t *testing.T) {
	consumer, _, _ := setupConsumer(t)

	msg := redisstream.Message{ID: "1-0", Values: map[string]interface{}{"data": "not json"}}
	ack, err := consumer.processMessage(context.Background(), msg)
	assert.Error(t, err)
	assert.True(t, ack)

	snapshot := consumer.Metrics().GetSnapshot()
	assert.Equal(t, int64(1), snapshot.ErrorsParse)
}

func TestProcessMessage_SkipsRecordingWithoutIdentity(t *testing.T) {
	consumer, _, _ := setupConsumer(t)

	msg := redisstream.Message{ID: "1-0", Values: map[string]interface{}{"data": `{"device_id":"device-1"}`}}
	ack, err := consumer.processMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, ack)

	snapshot := consumer.Metrics().GetSnapshot()
	assert.Equal(t, int64(1), snapshot.MessagesSkipped)
	assert.Equal(t, int64(0), snapshot.MessagesFailed)
}

func TestProcessMessage_AssayFailureLeavesPending(t *testing.T) {
	consumer, mock, _ := setupConsumer(t)

	// 落库失败：消息不确认，留在 pending 列表
	mock.ExpectBegin().WillReturnError(assert.AnError)

	msg := redisstream.Message{
		ID: "1-0",
		Values: map[string]interface{}{
			"data": `{"recording_id":"rec-1","device_id":"device-1"}`,
		},
	}
	ack, err := consumer.processMessage(context.Background(), msg)
	assert.Error(t, err)
	assert.False(t, ack)

	snapshot := consumer.Metrics().GetSnapshot()
	assert.Equal(t, int64(1), snapshot.ErrorsAssayFailed)
}

func TestConsumeStream_AcksProcessedMessages(t *testing.T) {
	consumer, mock, redisClient := setupConsumer(t)
	ctx := context.Background()

	stream := consumer.config.Stream.Name
	group := consumer.config.Stream.Group
	require.NoError(t, redisstream.EnsureGroup(ctx, redisClient, stream, group))

	expectSingleErrorRowSave(mock, "device-1", "rec-1")

	_, err := redisstream.PublishRecording(ctx, redisClient, stream, "device-1", "rec-1",
		[]byte(`{"recording_id":"rec-1","device_id":"device-1"}`))
	require.NoError(t, err)

	require.NoError(t, consumer.consumeStream(ctx, stream))
	require.NoError(t, mock.ExpectationsWereMet())

	// 消息已确认，pending 列表为空
	pending, err := redisClient.XPending(ctx, stream, group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)

	snapshot := consumer.Metrics().GetSnapshot()
	assert.Equal(t, int64(1), snapshot.MessagesProcessed)
	assert.Equal(t, int64(1), snapshot.MessagesSucceeded)
}

func TestMetrics_ConcurrentUpdates(t *testing.T) {
	metrics := &Metrics{StartTime: time.Now()}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				metrics.IncrementProcessed()
				metrics.IncrementSucceeded(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snapshot := metrics.GetSnapshot()
	assert.Equal(t, int64(1000), snapshot.MessagesProcessed)
	assert.Equal(t, int64(1000), snapshot.MessagesSucceeded)
	assert.Equal(t, time.Second, snapshot.TotalProcessingTime)
}

func TestMetrics_FailureClassification(t *testing.T) {
	metrics := &Metrics{}

	metrics.IncrementFailed("parse")
	metrics.IncrementFailed("parse")
	metrics.IncrementFailed("assay_failed")
	metrics.IncrementFailed("unknown")

	snapshot := metrics.GetSnapshot()
	assert.Equal(t, int64(4), snapshot.MessagesFailed)
	assert.Equal(t, int64(2), snapshot.ErrorsParse)
	assert.Equal(t, int64(1), snapshot.ErrorsAssayFailed)
}
