package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/th1vairam/mHealthTools/internal/config"
	"github.com/th1vairam/mHealthTools/internal/models"
	"github.com/th1vairam/mHealthTools/internal/mqttclient"
	"github.com/th1vairam/mHealthTools/internal/redisstream"
)

// MQTTConsumer 录制上报的 MQTT 消费者
// 接收设备经 MQTT 提交的完整录制，转投 Redis Streams 供 worker 异步测定
type MQTTConsumer struct {
	config      *config.Config
	mqttClient  *mqttclient.Client
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqttclient.Client,
	redisClient *redis.Client,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:      cfg,
		mqttClient:  mqttClient,
		redisClient: redisClient,
		logger:      logger,
	}
}

// Start 订阅录制上报主题
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.mqttClient.Subscribe(c.config.MQTT.RecordingTopic, 1, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to recording topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.config.MQTT.RecordingTopic),
	)
	return nil
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.mqttClient.Unsubscribe(c.config.MQTT.RecordingTopic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理一条录制上报
// 主题格式: assay/{device_id}/recording
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	// 1. 从主题中提取设备标识
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	deviceID := parts[1]

	// 2. 解析录制负载
	var recording models.Recording
	if err := json.Unmarshal(payload, &recording); err != nil {
		c.logger.Error("Failed to unmarshal recording payload",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal recording: %w", err)
	}

	// 3. 补全标识：主题中的 device_id 为准，recording_id 缺失时现场生成
	recording.DeviceID = deviceID
	if recording.RecordingID == "" {
		recording.RecordingID = uuid.New().String()
	}

	data, err := json.Marshal(&recording)
	if err != nil {
		return fmt.Errorf("failed to marshal recording: %w", err)
	}

	// 4. 发布到 Redis Streams
	streamID, err := redisstream.PublishRecording(
		context.Background(),
		c.redisClient,
		c.config.Stream.Name,
		recording.DeviceID,
		recording.RecordingID,
		data,
	)
	if err != nil {
		c.logger.Error("Failed to publish to Redis Streams",
			zap.String("stream", c.config.Stream.Name),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	c.logger.Info("Published recording to Redis Streams",
		zap.String("device_id", recording.DeviceID),
		zap.String("recording_id", recording.RecordingID),
		zap.String("stream", c.config.Stream.Name),
		zap.String("stream_id", streamID),
	)

	return nil
}
