package pipeline

import (
	"strings"

	"github.com/th1vairam/mHealthTools/internal/bandpass"
	"github.com/th1vairam/mHealthTools/internal/features"
	"github.com/th1vairam/mHealthTools/internal/models"
	"github.com/th1vairam/mHealthTools/internal/preprocess"
	"github.com/th1vairam/mHealthTools/internal/window"
)

// Config 单传感器流水线参数（调用方负责参数合法性校验）
type Config struct {
	Sensor          string     // 传感器名，写入每条记录
	MalformedReason string     // 结构校验失败时的固定错误文案
	WindowLength    int        // 窗口样本数
	Overlap         float64    // 相邻窗口重叠比例 [0,1)
	TimeRange       [2]float64 // 裁剪区间（秒，闭区间）
	FrequencyRange  [2]float64 // 关注频带（Hz），带通与频域特征共用
	Bandpass        bool       // 特征提取前做带通滤波

	// 派生序列：在变化率/位移序列上运行同一特征集，
	// 键分别加 jerk_ / displacement_ 前缀并入主记录，行数不变
	DeriveJerk         bool
	DeriveDisplacement bool

	Extractors []features.Extractor
}

// Run 单传感器特征流水线：校验 → 裁剪 → 去趋势 → 采样率 → 分窗 → 滤波 → 特征
//
// 任一阶段失败都退化为与正常表同模式的单行错误表，失败原因原样写入
// error 列；后续阶段不再执行（对错误值是恒等变换）。输入不足一个窗口
// 时返回零行的空表，这不是错误。同一输入重复调用产出逐位相同的结果。
func Run(stream models.Stream, cfg Config) models.FeatureTable {
	if !stream.Valid() {
		return models.NewErrorTable(cfg.Sensor, cfg.MalformedReason)
	}

	trimmed := stream.Trim(cfg.TimeRange[0], cfg.TimeRange[1])

	detrended, errState := preprocess.Detrend(trimmed)
	if errState.IsError() {
		return models.NewErrorTable(cfg.Sensor, string(errState))
	}

	rate, errState := bandpass.EstimateRate(detrended)
	if errState.IsError() {
		return models.NewErrorTable(cfg.Sensor, string(errState))
	}

	extractors := features.BindRate(cfg.Extractors, rate)

	// 派生序列与主序列等长且共享时间戳网格，窗口下标空间一一对应
	var jerk, displacement models.Stream
	if cfg.DeriveJerk || cfg.DeriveDisplacement {
		jerk, displacement = preprocess.Derive(detrended, rate)
	}

	windows := window.Segment(detrended, cfg.WindowLength, cfg.Overlap)
	var jerkWindows, dispWindows []models.Window
	if cfg.DeriveJerk {
		jerkWindows = window.Segment(jerk, cfg.WindowLength, cfg.Overlap)
	}
	if cfg.DeriveDisplacement {
		dispWindows = window.Segment(displacement, cfg.WindowLength, cfg.Overlap)
	}

	table := models.FeatureTable{Sensor: cfg.Sensor}
	for i, w := range windows {
		for _, axis := range models.AxisNames {
			feats, notes := cfg.extractAxis(extractors, w.Axis(axis), rate, "")
			if cfg.DeriveJerk {
				jf, jn := cfg.extractAxis(extractors, jerkWindows[i].Axis(axis), rate, "jerk_")
				mergeFeatures(feats, jf)
				notes = append(notes, jn...)
			}
			if cfg.DeriveDisplacement {
				df, dn := cfg.extractAxis(extractors, dispWindows[i].Axis(axis), rate, "displacement_")
				mergeFeatures(feats, df)
				notes = append(notes, dn...)
			}

			errColumn := models.ErrorNone
			if len(notes) > 0 {
				errColumn = strings.Join(notes, "; ")
			}
			table.Records = append(table.Records, models.FeatureRecord{
				Sensor:   cfg.Sensor,
				Axis:     axis,
				Window:   w.Index,
				Features: feats,
				Error:    errColumn,
			})
		}
	}
	return table
}

// extractAxis 对单个轴序列滤波并应用特征集，prefix 非空时给键与失败原因加前缀
func (cfg Config) extractAxis(extractors []features.Extractor, series []float64, rate float64, prefix string) (map[string]float64, []string) {
	if cfg.Bandpass {
		series = bandpass.Apply(series, rate, cfg.FrequencyRange[0], cfg.FrequencyRange[1])
	}
	out, note := features.ApplyAll(extractors, series)
	if prefix != "" {
		prefixed := make(map[string]float64, len(out))
		for k, v := range out {
			prefixed[prefix+k] = v
		}
		out = prefixed
		if note != "" {
			note = strings.TrimSuffix(prefix, "_") + ": " + note
		}
	}
	if note == "" {
		return out, nil
	}
	return out, []string{note}
}

func mergeFeatures(dst, src map[string]float64) {
	for k, v := range src {
		dst[k] = v
	}
}
