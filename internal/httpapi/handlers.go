package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/th1vairam/mHealthTools/internal/export"
	"github.com/th1vairam/mHealthTools/internal/models"
	"github.com/th1vairam/mHealthTools/internal/service"
)

// 录制负载上限：三条传感器流的 JSON 文本
const maxRecordingBody = 32 << 20

// AssayHandler 震颤测定 API Handler
type AssayHandler struct {
	assayService *service.AssayService
	logger       *zap.Logger
	startTime    time.Time
}

// NewAssayHandler 创建测定 Handler
func NewAssayHandler(assayService *service.AssayService, logger *zap.Logger) *AssayHandler {
	return &AssayHandler{
		assayService: assayService,
		logger:       logger,
		startTime:    time.Now(),
	}
}

// RunRecording 同步执行一次测定
// POST /assay/api/v1/recordings
func (h *AssayHandler) RunRecording(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var recording models.Recording
	if err := readBodyJSON(r, maxRecordingBody, &recording); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	result, err := h.assayService.Run(ctx, &recording)
	if err != nil {
		h.logger.Error("RunRecording failed",
			zap.String("recording_id", recording.RecordingID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to run assay: %v", err)))
		return
	}

	writeJSON(w, http.StatusOK, Ok(result))
}

// ImportRecording 从研究平台拉取录制并测定
// POST /assay/api/v1/recordings/import
func (h *AssayHandler) ImportRecording(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload struct {
		RecordingID string `json:"recording_id"`
	}
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}
	if payload.RecordingID == "" {
		writeJSON(w, http.StatusOK, Fail("recording_id is required"))
		return
	}

	result, err := h.assayService.Import(ctx, payload.RecordingID)
	if err != nil {
		h.logger.Error("ImportRecording failed",
			zap.String("recording_id", payload.RecordingID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to import recording: %v", err)))
		return
	}

	writeJSON(w, http.StatusOK, Ok(result))
}

// Runs 分发 /assay/api/v1/runs/{run_id}[/features[/export]]
func (h *AssayHandler) Runs(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/assay/api/v1/runs/")
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	runID := parts[0]

	switch {
	case len(parts) == 1:
		h.getRun(w, r, runID)
	case len(parts) == 2 && parts[1] == "features":
		h.getFeatures(w, r, runID)
	case len(parts) == 3 && parts[1] == "features" && parts[2] == "export":
		h.exportFeatures(w, r, runID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// getRun 查询运行元数据
// GET /assay/api/v1/runs/{run_id}
func (h *AssayHandler) getRun(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := h.assayService.GetRun(r.Context(), runID)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to get run: %v", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(run))
}

// getFeatures 查询一次运行的完整特征表
// GET /assay/api/v1/runs/{run_id}/features
func (h *AssayHandler) getFeatures(w http.ResponseWriter, r *http.Request, runID string) {
	result, err := h.assayService.GetFeatures(r.Context(), runID)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to get features: %v", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// exportFeatures 导出特征表为 Excel
// GET /assay/api/v1/runs/{run_id}/features/export
func (h *AssayHandler) exportFeatures(w http.ResponseWriter, r *http.Request, runID string) {
	result, err := h.assayService.GetFeatures(r.Context(), runID)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to get features: %v", err)))
		return
	}

	excelData, err := export.GenerateFeatureWorkbook(result.Table)
	if err != nil {
		h.logger.Error("GenerateFeatureWorkbook failed",
			zap.String("run_id", runID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to generate export: %v", err)))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=assay-%s.xlsx", runID))
	w.WriteHeader(http.StatusOK)
	w.Write(excelData)
}

// Devices 分发 /assay/api/v1/devices/{device_id}/latest|runs
func (h *AssayHandler) Devices(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/assay/api/v1/devices/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	deviceID := parts[0]

	switch parts[1] {
	case "latest":
		h.getLatest(w, r, deviceID)
	case "runs":
		h.listRuns(w, r, deviceID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// getLatest 查询设备最新测定结果
// GET /assay/api/v1/devices/{device_id}/latest
func (h *AssayHandler) getLatest(w http.ResponseWriter, r *http.Request, deviceID string) {
	result, err := h.assayService.GetLatestByDevice(r.Context(), deviceID)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to get latest result: %v", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// listRuns 按设备列出运行历史
// GET /assay/api/v1/devices/{device_id}/runs?limit=20
func (h *AssayHandler) listRuns(w http.ResponseWriter, r *http.Request, deviceID string) {
	limit := parseInt(r.URL.Query().Get("limit"), 20)

	runs, err := h.assayService.ListRuns(r.Context(), deviceID, limit)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list runs: %v", err)))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": runs,
		"total": len(runs),
	}))
}

// Health 健康检查
// GET /assay/api/v1/health
func (h *AssayHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"status": "ok",
		"uptime": time.Since(h.startTime).String(),
	}))
}
