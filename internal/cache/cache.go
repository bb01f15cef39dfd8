package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/th1vairam/mHealthTools/internal/models"
)

// Manager 设备最新测定结果的 Redis 缓存
type Manager struct {
	redisClient *redis.Client
	ttl         time.Duration
	logger      *zap.Logger
}

// NewManager 创建缓存管理器
func NewManager(redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		redisClient: redisClient,
		ttl:         ttl,
		logger:      logger,
	}
}

// deviceKey 设备最新结果的缓存键
func deviceKey(deviceID string) string {
	return "mhealth:device:" + deviceID + ":latest"
}

// UpdateLatest 写入设备最新测定结果（带 TTL）
func (m *Manager) UpdateLatest(ctx context.Context, deviceID string, result *models.AssayResult) error {
	jsonData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal assay result: %w", err)
	}

	key := deviceKey(deviceID)
	if err := m.redisClient.Set(ctx, key, jsonData, m.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set latest result cache: %w", err)
	}

	m.logger.Debug("Updated latest result cache",
		zap.String("device_id", deviceID),
		zap.String("key", key),
		zap.Int("rows", len(result.Table.Records)),
	)
	return nil
}

// GetLatest 读取设备最新测定结果
func (m *Manager) GetLatest(ctx context.Context, deviceID string) (*models.AssayResult, error) {
	val, err := m.redisClient.Get(ctx, deviceKey(deviceID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("no cached result for device: %s", deviceID)
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var result models.AssayResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assay result: %w", err)
	}
	return &result, nil
}
