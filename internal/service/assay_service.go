package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/th1vairam/mHealthTools/internal/assay"
	"github.com/th1vairam/mHealthTools/internal/cache"
	"github.com/th1vairam/mHealthTools/internal/config"
	"github.com/th1vairam/mHealthTools/internal/models"
	"github.com/th1vairam/mHealthTools/internal/repository"
)

// AssayService 震颤测定服务：录制 → 特征表 → 持久化 → 缓存
type AssayService struct {
	config      *config.Config
	repo        *repository.FeatureRepository
	cache       *cache.Manager
	studyClient *StudyClient
	logger      *zap.Logger
}

// NewAssayService 创建测定服务
// studyClient 可为 nil（未配置研究平台时 Import 不可用）
func NewAssayService(
	cfg *config.Config,
	repo *repository.FeatureRepository,
	cacheManager *cache.Manager,
	studyClient *StudyClient,
	logger *zap.Logger,
) *AssayService {
	return &AssayService{
		config:      cfg,
		repo:        repo,
		cache:       cacheManager,
		studyClient: studyClient,
		logger:      logger,
	}
}

// assayConfig 将服务配置映射为测定参数
func (s *AssayService) assayConfig() assay.Config {
	a := s.config.Assay
	return assay.Config{
		WindowLength:       a.WindowLength,
		Overlap:            a.Overlap,
		TimeRange:          a.TimeRange,
		FrequencyRange:     a.FrequencyRange,
		Bandpass:           a.Bandpass,
		DeriveJerk:         a.DeriveJerk,
		DeriveDisplacement: a.DeriveDisplacement,
		RotationThreshold:  a.RotationThreshold,
	}
}

// Run 执行一次完整测定并落库
// 传感器数据内部的错误（malformed、detrend 失败等）表现为表内错误行，
// 运行本身仍然成功；返回 error 仅限配置非法或存储失败
func (s *AssayService) Run(ctx context.Context, recording *models.Recording) (*models.AssayResult, error) {
	if err := recording.Validate(); err != nil {
		return nil, err
	}

	s.logger.Info("Running tremor assay",
		zap.String("recording_id", recording.RecordingID),
		zap.String("device_id", recording.DeviceID),
		zap.Int("accelerometer_samples", len(recording.Accelerometer)),
		zap.Int("gyroscope_samples", len(recording.Gyroscope)),
	)

	start := time.Now()
	table, err := assay.Extract(assay.Input{
		Accelerometer: recording.Accelerometer,
		Gyroscope:     recording.Gyroscope,
		Gravity:       recording.Gravity,
	}, s.assayConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to extract features: %w", err)
	}
	duration := time.Since(start)

	run := &models.AssayRun{
		RunID:       uuid.New().String(),
		DeviceID:    recording.DeviceID,
		RecordingID: recording.RecordingID,
		Status:      models.RunStatus(table),
		RowCount:    len(table.Records),
		DurationMS:  duration.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.SaveRun(ctx, run, table); err != nil {
		return nil, fmt.Errorf("failed to save assay run: %w", err)
	}

	result := &models.AssayResult{
		Run:   *run,
		Table: table,
	}

	// 缓存失败不阻断运行结果，下游仍可从数据库读取
	if err := s.cache.UpdateLatest(ctx, recording.DeviceID, result); err != nil {
		s.logger.Warn("Failed to update latest result cache",
			zap.Error(err),
			zap.String("device_id", recording.DeviceID),
		)
	}

	s.logger.Info("Tremor assay completed",
		zap.String("run_id", run.RunID),
		zap.String("device_id", run.DeviceID),
		zap.String("status", run.Status),
		zap.Int("rows", run.RowCount),
		zap.Duration("duration", duration),
	)

	return result, nil
}

// Import 从研究平台拉取录制并执行测定
func (s *AssayService) Import(ctx context.Context, recordingID string) (*models.AssayResult, error) {
	if s.studyClient == nil {
		return nil, fmt.Errorf("study platform is not configured")
	}

	recording, err := s.studyClient.FetchRecording(ctx, recordingID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recording: %w", err)
	}

	return s.Run(ctx, recording)
}

// GetRun 读取运行元数据
func (s *AssayService) GetRun(ctx context.Context, runID string) (*models.AssayRun, error) {
	return s.repo.GetRun(ctx, runID)
}

// GetFeatures 读取一次运行的完整特征表
func (s *AssayService) GetFeatures(ctx context.Context, runID string) (*models.AssayResult, error) {
	run, err := s.repo.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	table, err := s.repo.GetFeaturesByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &models.AssayResult{Run: *run, Table: table}, nil
}

// GetLatestByDevice 读取设备最新测定结果（优先缓存，未命中回退数据库）
func (s *AssayService) GetLatestByDevice(ctx context.Context, deviceID string) (*models.AssayResult, error) {
	if result, err := s.cache.GetLatest(ctx, deviceID); err == nil {
		return result, nil
	}

	run, err := s.repo.GetLatestRunByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	table, err := s.repo.GetFeaturesByRun(ctx, run.RunID)
	if err != nil {
		return nil, err
	}

	result := &models.AssayResult{Run: *run, Table: table}

	// 回填缓存，后续读取不再落库
	if err := s.cache.UpdateLatest(ctx, deviceID, result); err != nil {
		s.logger.Warn("Failed to backfill latest result cache",
			zap.Error(err),
			zap.String("device_id", deviceID),
		)
	}

	return result, nil
}

// ListRuns 按设备列出历史运行
func (s *AssayService) ListRuns(ctx context.Context, deviceID string, limit int) ([]*models.AssayRun, error) {
	return s.repo.ListRunsByDevice(ctx, deviceID, limit)
}
