package outlier

import (
	"github.com/th1vairam/mHealthTools/internal/models"
	"github.com/th1vairam/mHealthTools/internal/window"
)

// DefaultRotationThreshold 重力分量极差的默认阈值
// 0.25 g 约对应 1 g 矢量 15° 的重新取向；超过即认为窗口内设备发生转动
const DefaultRotationThreshold = 0.25

// Tag 按窗口标注重力参考信号的有效性
//
// 重力流必须与传感器流同源同裁剪，两侧分窗参数一致时窗口下标一一对应。
// 任一轴在窗口内的极差（max-min）超过 threshold 即判定该窗口可疑，
// 标注 "Phone rotated within window"，否则 "None"。
//
// 重力流结构不完整或不足一个窗口时无法判定任何窗口的有效性，
// 返回 ErrorState("Malformed gravity data")，由调用方标注全部行。
func Tag(gravity models.Stream, windowLength int, overlap, threshold float64) ([]models.WindowTag, models.ErrorState) {
	if !gravity.Valid() {
		return nil, models.ErrorState(models.ErrorMalformedGravity)
	}

	windows := window.Segment(gravity, windowLength, overlap)
	if len(windows) == 0 {
		return nil, models.ErrorState(models.ErrorMalformedGravity)
	}

	tags := make([]models.WindowTag, 0, len(windows))
	for _, w := range windows {
		tag := models.WindowTag{Window: w.Index, Error: models.ErrorNone}
		for _, axis := range models.AxisNames {
			if axisRange(w.Axis(axis)) > threshold {
				tag.Error = models.ErrorPhoneRotated
				break
			}
		}
		tags = append(tags, tag)
	}
	return tags, ""
}

func axisRange(series []float64) float64 {
	min, max := series[0], series[0]
	for _, v := range series[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return max - min
}
