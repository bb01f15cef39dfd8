// Package bandpass 采样率估计与 FFT 频带滤波
package bandpass

import (
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/th1vairam/mHealthTools/internal/models"
)

// EstimateRate 由时间戳隐式估计采样率（Hz）
//
// 取首末时间戳跨度内的平均采样间隔：(n-1) / (t_last - t_first)。
// 样本数 < 2 或时间跨度非正时无法估计，返回
// ErrorState("Could not estimate sampling rate")，而不是除零或
// 对无意义数据继续滤波。
func EstimateRate(stream models.Stream) (float64, models.ErrorState) {
	if len(stream) < 2 {
		return 0, models.ErrorSamplingRate
	}
	span := stream[len(stream)-1].T - stream[0].T
	if span <= 0 {
		return 0, models.ErrorSamplingRate
	}
	return float64(len(stream)-1) / span, ""
}

// Apply 将轴序列限制到 [lo, hi]（Hz）频带
//
// 实部 FFT → 置零频带外系数 → 逆变换还原。gonum 的逆变换结果带 n 倍
// 系数，这里统一归一化。输入为空时原样返回。
func Apply(series []float64, rate, lo, hi float64) []float64 {
	n := len(series)
	if n == 0 || rate <= 0 {
		return series
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, series)
	for i := range coeffs {
		freq := fft.Freq(i) * rate
		if freq < lo || freq > hi {
			coeffs[i] = 0
		}
	}

	filtered := fft.Sequence(nil, coeffs)
	scale := 1 / float64(n)
	for i := range filtered {
		filtered[i] *= scale
	}
	return filtered
}
