package models

import "time"

// 运行状态
const (
	// RunStatusCompleted 全部记录正常
	RunStatusCompleted = "completed"
	// RunStatusCompletedWithErrors 表内存在 error 列非 "None" 的记录
	RunStatusCompletedWithErrors = "completed_with_errors"
)

// AssayRun 一次测定运行的元数据
type AssayRun struct {
	RunID       string    `json:"run_id"`
	DeviceID    string    `json:"device_id"`
	RecordingID string    `json:"recording_id"`
	Status      string    `json:"status"`
	RowCount    int       `json:"row_count"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// AssayResult 一次测定的完整输出：运行元数据 + 特征表
type AssayResult struct {
	Run   AssayRun     `json:"run"`
	Table FeatureTable `json:"table"`
}

// RunStatus 根据记录内容推导运行状态
func RunStatus(table FeatureTable) string {
	for _, rec := range table.Records {
		if rec.Error != ErrorNone {
			return RunStatusCompletedWithErrors
		}
	}
	return RunStatusCompleted
}
