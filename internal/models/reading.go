package models

import "math"

// 传感器名称（输出表 sensor 列的取值）
const (
	SensorAccelerometer = "accelerometer"
	SensorGyroscope     = "gyroscope"
	SensorGravity       = "gravity"
)

// AxisNames 轴名称列表（遍历顺序固定，保证输出可重现）
var AxisNames = []string{"x", "y", "z"}

// Reading 单条三轴传感器采样
// t 为时间戳（秒，float），x/y/z 为三个空间分量
type Reading struct {
	T float64 `json:"t"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Axis 返回指定轴的分量值（轴名非法时返回 NaN）
func (r Reading) Axis(axis string) float64 {
	switch axis {
	case "x":
		return r.X
	case "y":
		return r.Y
	case "z":
		return r.Z
	}
	return math.NaN()
}

// Stream 按时间戳升序排列的采样序列
// 同一 Stream 中的采样共享采集上下文（设备、传感器类型），可能是不等间隔采样
type Stream []Reading

// Valid 检查数据结构是否完整：非空且不含 NaN/Inf
// 不满足时返回 false，由调用方决定对应的错误文案（如 "Malformed accelerometer data"）
func (s Stream) Valid() bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !isFinite(r.T) || !isFinite(r.X) || !isFinite(r.Y) || !isFinite(r.Z) {
			return false
		}
	}
	return true
}

// Trim 返回时间戳落在 [lo, hi]（含边界）内的子序列
func (s Stream) Trim(lo, hi float64) Stream {
	trimmed := make(Stream, 0, len(s))
	for _, r := range s {
		if r.T >= lo && r.T <= hi {
			trimmed = append(trimmed, r)
		}
	}
	return trimmed
}

// Axis 返回单轴分量序列（与 Stream 等长）
func (s Stream) Axis(axis string) []float64 {
	values := make([]float64, len(s))
	for i, r := range s {
		values[i] = r.Axis(axis)
	}
	return values
}

// Timestamps 返回时间戳序列
func (s Stream) Timestamps() []float64 {
	ts := make([]float64, len(s))
	for i, r := range s {
		ts[i] = r.T
	}
	return ts
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
