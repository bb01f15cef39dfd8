package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/th1vairam/mHealthTools/internal/config"
	"github.com/th1vairam/mHealthTools/internal/models"
)

// StudyClient 研究平台 API 客户端
// 按 recording_id 拉取参与者提交的原始录制数据
type StudyClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewStudyClient 创建研究平台客户端
func NewStudyClient(cfg *config.StudyConfig, logger *zap.Logger) *StudyClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")

	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &StudyClient{
		httpClient: client,
		logger:     logger,
	}
}

// FetchRecording 获取指定录制的原始传感器数据
func (c *StudyClient) FetchRecording(ctx context.Context, recordingID string) (*models.Recording, error) {
	if recordingID == "" {
		return nil, fmt.Errorf("recording_id is required")
	}

	c.logger.Info("Fetching recording from study platform",
		zap.String("recording_id", recordingID),
	)

	var recording models.Recording
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&recording).
		SetPathParam("recordingID", recordingID).
		Get("/api/v1/recordings/{recordingID}")

	if err != nil {
		c.logger.Error("Study platform API call failed",
			zap.Error(err),
			zap.String("recording_id", recordingID),
		)
		return nil, fmt.Errorf("failed to call study platform API: %w", err)
	}

	if resp.IsError() {
		c.logger.Error("Study platform API returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("recording_id", recordingID),
		)
		return nil, fmt.Errorf("study platform API error: status %d", resp.StatusCode())
	}

	// 部分平台响应体内不回显 ID，补全后再交给处理流程
	if recording.RecordingID == "" {
		recording.RecordingID = recordingID
	}

	c.logger.Info("Successfully fetched recording",
		zap.String("recording_id", recording.RecordingID),
		zap.String("device_id", recording.DeviceID),
		zap.Int("accelerometer_samples", len(recording.Accelerometer)),
		zap.Int("gyroscope_samples", len(recording.Gyroscope)),
		zap.Int("gravity_samples", len(recording.Gravity)),
	)

	return &recording, nil
}
