// Package window 提供定长重叠滑动窗口切分
package window

import (
	"math"

	"github.com/th1vairam/mHealthTools/internal/models"
)

// Step 计算窗口滑动步长：floor(windowLength * (1 - overlap))，下限为 1
func Step(windowLength int, overlap float64) int {
	step := int(math.Floor(float64(windowLength) * (1 - overlap)))
	if step < 1 {
		step = 1
	}
	return step
}

// Count 计算给定样本数下的窗口数量：floor((n - windowLength) / step) + 1，n < windowLength 时为 0
func Count(n, windowLength int, overlap float64) int {
	if n < windowLength {
		return 0
	}
	return (n-windowLength)/Step(windowLength, overlap) + 1
}

// Segment 将时间序列切分为定长重叠窗口
//
// 从下标 0 开始取 windowLength 个连续样本，每次前进 Step 个样本，
// 剩余样本不足一个完整窗口时丢弃尾部。窗口下标按遍历顺序从 0 递增。
// 纯函数：对合法参数总是成功；windowLength/overlap 的合法性由调用方在
// 读取数据前校验（配置错误不属于本层职责）。
func Segment(stream models.Stream, windowLength int, overlap float64) []models.Window {
	n := len(stream)
	if n < windowLength || windowLength < 1 {
		return nil
	}

	step := Step(windowLength, overlap)
	windows := make([]models.Window, 0, Count(n, windowLength, overlap))
	index := 0
	for start := 0; start+windowLength <= n; start += step {
		windows = append(windows, models.Window{
			Index:   index,
			Samples: stream[start : start+windowLength],
		})
		index++
	}
	return windows
}
