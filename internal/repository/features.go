package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/th1vairam/mHealthTools/internal/models"
)

// FeatureRepository 特征表与测定运行的持久化仓库
type FeatureRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFeatureRepository 创建特征仓库
func NewFeatureRepository(db *sql.DB, logger *zap.Logger) *FeatureRepository {
	return &FeatureRepository{
		db:     db,
		logger: logger,
	}
}

// ============================================
// 写入
// ============================================

// SaveRun 在单个事务内写入运行元数据与全部特征记录
//
// 行序与内存表一致（自增主键保持插入顺序），读取时按 id 排序还原。
func (r *FeatureRepository) SaveRun(ctx context.Context, run *models.AssayRun, table models.FeatureTable) error {
	if run.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if run.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO assay_runs (run_id, device_id, recording_id, status, row_count, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, run.RunID, run.DeviceID, run.RecordingID, run.Status, run.RowCount, run.DurationMS, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert assay run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO feature_records (run_id, device_id, sensor, axis, window_index, features, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare feature insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range table.Records {
		featuresJSON, err := json.Marshal(rec.Features)
		if err != nil {
			return fmt.Errorf("failed to marshal features for row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, run.RunID, run.DeviceID, rec.Sensor, rec.Axis, rec.Window, featuresJSON, rec.Error); err != nil {
			return fmt.Errorf("failed to insert feature record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.Debug("Saved assay run",
		zap.String("run_id", run.RunID),
		zap.String("device_id", run.DeviceID),
		zap.Int("rows", len(table.Records)),
	)
	return nil
}

// ============================================
// 读取
// ============================================

// GetRun 按 run_id 获取运行元数据
func (r *FeatureRepository) GetRun(ctx context.Context, runID string) (*models.AssayRun, error) {
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}

	run := &models.AssayRun{}
	err := r.db.QueryRowContext(ctx, `
		SELECT run_id, device_id, recording_id, status, row_count, duration_ms, created_at
		FROM assay_runs
		WHERE run_id = $1
	`, runID).Scan(&run.RunID, &run.DeviceID, &run.RecordingID, &run.Status, &run.RowCount, &run.DurationMS, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("assay run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query assay run: %w", err)
	}
	return run, nil
}

// GetLatestRunByDevice 获取设备最近一次运行
func (r *FeatureRepository) GetLatestRunByDevice(ctx context.Context, deviceID string) (*models.AssayRun, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}

	run := &models.AssayRun{}
	err := r.db.QueryRowContext(ctx, `
		SELECT run_id, device_id, recording_id, status, row_count, duration_ms, created_at
		FROM assay_runs
		WHERE device_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, deviceID).Scan(&run.RunID, &run.DeviceID, &run.RecordingID, &run.Status, &run.RowCount, &run.DurationMS, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no assay runs for device: %s", deviceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	return run, nil
}

// ListRunsByDevice 按时间倒序列出设备的运行历史
func (r *FeatureRepository) ListRunsByDevice(ctx context.Context, deviceID string, limit int) ([]*models.AssayRun, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, device_id, recording_id, status, row_count, duration_ms, created_at
		FROM assay_runs
		WHERE device_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.AssayRun
	for rows.Next() {
		run := &models.AssayRun{}
		if err := rows.Scan(&run.RunID, &run.DeviceID, &run.RecordingID, &run.Status, &run.RowCount, &run.DurationMS, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// GetFeaturesByRun 按插入顺序还原一次运行的特征表
func (r *FeatureRepository) GetFeaturesByRun(ctx context.Context, runID string) (models.FeatureTable, error) {
	if runID == "" {
		return models.FeatureTable{}, fmt.Errorf("run_id is required")
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT sensor, axis, window_index, features, error
		FROM feature_records
		WHERE run_id = $1
		ORDER BY id
	`, runID)
	if err != nil {
		return models.FeatureTable{}, fmt.Errorf("failed to query feature records: %w", err)
	}
	defer rows.Close()

	var table models.FeatureTable
	for rows.Next() {
		var rec models.FeatureRecord
		var featuresJSON []byte
		if err := rows.Scan(&rec.Sensor, &rec.Axis, &rec.Window, &featuresJSON, &rec.Error); err != nil {
			return models.FeatureTable{}, fmt.Errorf("failed to scan feature record: %w", err)
		}
		if len(featuresJSON) > 0 && string(featuresJSON) != "null" {
			if err := json.Unmarshal(featuresJSON, &rec.Features); err != nil {
				return models.FeatureTable{}, fmt.Errorf("failed to unmarshal features: %w", err)
			}
		}
		table.Records = append(table.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return models.FeatureTable{}, fmt.Errorf("failed to iterate feature records: %w", err)
	}
	return table, nil
}
