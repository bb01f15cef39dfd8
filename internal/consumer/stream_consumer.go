package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/th1vairam/mHealthTools/internal/config"
	"github.com/th1vairam/mHealthTools/internal/models"
	"github.com/th1vairam/mHealthTools/internal/redisstream"
	"github.com/th1vairam/mHealthTools/internal/service"
)

// 消费批大小
const consumeBatchSize = 10

// Metrics 消费侧监控指标
type Metrics struct {
	mu sync.RWMutex

	// 消息处理统计
	MessagesProcessed int64 // 处理的消息总数
	MessagesSucceeded int64 // 成功完成测定的消息数
	MessagesFailed    int64 // 处理失败的消息数
	MessagesSkipped   int64 // 跳过的消息数（缺标识等毒消息）

	// 错误分类统计
	ErrorsParse       int64 // 负载解析错误
	ErrorsAssayFailed int64 // 测定或落库失败

	// 性能指标
	TotalProcessingTime time.Duration // 总处理时间
	LastProcessTime     time.Time     // 最后处理时间

	// 启动时间
	StartTime time.Time
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		MessagesProcessed:   m.MessagesProcessed,
		MessagesSucceeded:   m.MessagesSucceeded,
		MessagesFailed:      m.MessagesFailed,
		MessagesSkipped:     m.MessagesSkipped,
		ErrorsParse:         m.ErrorsParse,
		ErrorsAssayFailed:   m.ErrorsAssayFailed,
		TotalProcessingTime: m.TotalProcessingTime,
		LastProcessTime:     m.LastProcessTime,
		StartTime:           m.StartTime,
	}
}

// IncrementProcessed 增加处理计数
func (m *Metrics) IncrementProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesProcessed++
}

// IncrementSucceeded 增加成功计数
func (m *Metrics) IncrementSucceeded(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSucceeded++
	m.TotalProcessingTime += duration
	m.LastProcessTime = time.Now()
}

// IncrementFailed 增加失败计数
func (m *Metrics) IncrementFailed(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesFailed++
	switch errorType {
	case "parse":
		m.ErrorsParse++
	case "assay_failed":
		m.ErrorsAssayFailed++
	}
}

// IncrementSkipped 增加跳过计数
func (m *Metrics) IncrementSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSkipped++
}

// StreamConsumer 录制流的 Redis Streams 消费者
// 对每条录制执行测定并确认；处理失败的消息留在 pending 列表，便于人工认领重放
type StreamConsumer struct {
	config       *config.Config
	redisClient  *redis.Client
	assayService *service.AssayService
	logger       *zap.Logger
	metrics      *Metrics
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	assayService *service.AssayService,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:       cfg,
		redisClient:  redisClient,
		assayService: assayService,
		logger:       logger,
		metrics: &Metrics{
			StartTime: time.Now(),
		},
	}
}

// Metrics 返回指标入口（供健康检查读取快照）
func (c *StreamConsumer) Metrics() *Metrics {
	return c.metrics
}

// Start 启动消费循环（阻塞直至 ctx 取消）
func (c *StreamConsumer) Start(ctx context.Context) error {
	stream := c.config.Stream.Name
	if err := redisstream.EnsureGroup(ctx, c.redisClient, stream, c.config.Stream.Group); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("stream", stream),
		zap.String("consumer_group", c.config.Stream.Group),
		zap.String("consumer_name", c.config.Stream.Consumer),
	)

	// 启动指标报告协程
	metricsCtx, metricsCancel := context.WithCancel(ctx)
	defer metricsCancel()
	go c.reportMetrics(metricsCtx)

	// 消费循环
	backoffDuration := time.Second // 初始退避时间
	maxBackoff := 30 * time.Second // 最大退避时间

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consumeStream(ctx, stream); err != nil {
				c.logger.Error("Failed to consume stream",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				// 指数退避：等待后重试
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				// 成功时重置退避时间
				backoffDuration = time.Second
			}
		}
	}
}

// consumeStream 读取一批消息并逐条处理
func (c *StreamConsumer) consumeStream(ctx context.Context, stream string) error {
	messages, err := redisstream.Read(
		ctx,
		c.redisClient,
		stream,
		c.config.Stream.Group,
		c.config.Stream.Consumer,
		consumeBatchSize,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		c.metrics.IncrementProcessed()
		ack, err := c.processMessage(ctx, msg)
		if err != nil {
			c.logger.Error("Failed to process message",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
			// 继续处理下一条消息，不中断
		}
		if ack {
			if err := redisstream.Ack(ctx, c.redisClient, stream, c.config.Stream.Group, msg.ID); err != nil {
				c.logger.Error("Failed to ack message",
					zap.String("stream_id", msg.ID),
					zap.Error(err),
				)
			}
		}
	}

	return nil
}

// processMessage 处理单条录制消息
//
// 返回值 ack 表示该消息是否应从 pending 列表确认掉：
// 成功与毒消息（解析失败、缺标识）确认，测定/落库失败不确认，留待重放
func (c *StreamConsumer) processMessage(ctx context.Context, msg redisstream.Message) (bool, error) {
	startTime := time.Now()

	dataStr, ok := msg.Data()
	if !ok {
		c.metrics.IncrementFailed("parse")
		return true, fmt.Errorf("missing data field in message")
	}

	var recording models.Recording
	if err := json.Unmarshal([]byte(dataStr), &recording); err != nil {
		c.metrics.IncrementFailed("parse")
		return true, fmt.Errorf("failed to unmarshal recording: %w", err)
	}

	if err := recording.Validate(); err != nil {
		c.metrics.IncrementSkipped()
		c.logger.Warn("Skipping recording without identity",
			zap.String("stream_id", msg.ID),
			zap.Error(err),
		)
		return true, nil
	}

	c.logger.Debug("Processing recording",
		zap.String("recording_id", recording.RecordingID),
		zap.String("device_id", recording.DeviceID),
	)

	result, err := c.assayService.Run(ctx, &recording)
	if err != nil {
		c.metrics.IncrementFailed("assay_failed")
		return false, fmt.Errorf("failed to run assay: %w", err)
	}

	processingDuration := time.Since(startTime)
	c.metrics.IncrementSucceeded(processingDuration)

	c.logger.Info("Processed recording from stream",
		zap.String("run_id", result.Run.RunID),
		zap.String("recording_id", recording.RecordingID),
		zap.String("device_id", recording.DeviceID),
		zap.String("status", result.Run.Status),
		zap.Duration("processing_time", processingDuration),
	)

	return true, nil
}

// reportMetrics 定期报告指标（每60秒）
func (c *StreamConsumer) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := c.metrics.GetSnapshot()
			uptime := time.Since(snapshot.StartTime)

			var avgProcessingTime time.Duration
			if snapshot.MessagesSucceeded > 0 {
				avgProcessingTime = snapshot.TotalProcessingTime / time.Duration(snapshot.MessagesSucceeded)
			}

			successRate := float64(0)
			if snapshot.MessagesProcessed > 0 {
				successRate = float64(snapshot.MessagesSucceeded) / float64(snapshot.MessagesProcessed) * 100
			}

			c.logger.Info("Metrics report",
				zap.Int64("messages_processed", snapshot.MessagesProcessed),
				zap.Int64("messages_succeeded", snapshot.MessagesSucceeded),
				zap.Int64("messages_failed", snapshot.MessagesFailed),
				zap.Int64("messages_skipped", snapshot.MessagesSkipped),
				zap.Float64("success_rate", successRate),
				zap.Int64("errors_parse", snapshot.ErrorsParse),
				zap.Int64("errors_assay_failed", snapshot.ErrorsAssayFailed),
				zap.Duration("avg_processing_time", avgProcessingTime),
				zap.Duration("uptime", uptime),
			)
		}
	}
}
