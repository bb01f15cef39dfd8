// Package preprocess 原始采样流的清洗与派生
//
// 负责线性去趋势，以及运动学传感器所需的派生序列（变化率、位移）。
// 结构完整性校验见 models.Stream.Valid，由流水线在进入本层前执行。
package preprocess

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/th1vairam/mHealthTools/internal/models"
)

// Detrend 对每个轴做最小二乘线性去趋势
//
// 以 (t, v) 拟合直线并减去拟合值。样本数 < 2 或时间戳全部相同时
// 拟合无定义，返回 ErrorState("Detrend Error")；错误在此边界被捕获，
// 不会以 panic/Go error 的形式离开流水线。
func Detrend(stream models.Stream) (models.Stream, models.ErrorState) {
	if len(stream) < 2 {
		return nil, models.ErrorDetrend
	}

	ts := stream.Timestamps()
	detrended := make(models.Stream, len(stream))
	for i, r := range stream {
		detrended[i] = models.Reading{T: r.T}
	}

	for _, axis := range models.AxisNames {
		values := stream.Axis(axis)
		alpha, beta := stat.LinearRegression(ts, values, nil, false)
		// 时间戳退化（方差为 0）时拟合系数为 NaN
		if math.IsNaN(alpha) || math.IsNaN(beta) || math.IsInf(alpha, 0) || math.IsInf(beta, 0) {
			return nil, models.ErrorDetrend
		}
		for i := range detrended {
			residual := values[i] - (alpha + beta*ts[i])
			setAxis(&detrended[i], axis, residual)
		}
	}

	return detrended, ""
}

// Derive 由采样率派生运动学序列：变化率（一阶差分×采样率）与位移（梯形积分）
//
// 两个派生序列与输入等长、时间戳一致，保证后续切窗的下标空间与主序列对齐；
// 变化率序列的首个样本复制第二个样本的值。
func Derive(stream models.Stream, rate float64) (rateOfChange, displacement models.Stream) {
	n := len(stream)
	rateOfChange = make(models.Stream, n)
	displacement = make(models.Stream, n)
	if n == 0 {
		return rateOfChange, displacement
	}

	for _, axis := range models.AxisNames {
		values := stream.Axis(axis)

		// 变化率：diff(v) * rate
		for i := 1; i < n; i++ {
			setAxis(&rateOfChange[i], axis, (values[i]-values[i-1])*rate)
		}
		if n > 1 {
			setAxis(&rateOfChange[0], axis, rateOfChange[1].Axis(axis))
		}

		// 位移：梯形法累积积分
		sum := 0.0
		setAxis(&displacement[0], axis, 0)
		for i := 1; i < n; i++ {
			sum += (values[i] + values[i-1]) / (2 * rate)
			setAxis(&displacement[i], axis, sum)
		}
	}

	for i := range stream {
		rateOfChange[i].T = stream[i].T
		displacement[i].T = stream[i].T
	}
	return rateOfChange, displacement
}

func setAxis(r *models.Reading, axis string, v float64) {
	switch axis {
	case "x":
		r.X = v
	case "y":
		r.Y = v
	case "z":
		r.Z = v
	}
}
