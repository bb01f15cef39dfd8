package features

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/dsp/fourier"
)

// spectrum 计算轴序列在 [lo, hi]（Hz）内的功率谱（频点 + 对应功率）
func spectrum(series []float64, rate, lo, hi float64) (freqs, power []float64) {
	fft := fourier.NewFFT(len(series))
	coeffs := fft.Coefficients(nil, series)
	for i, c := range coeffs {
		f := fft.Freq(i) * rate
		if f < lo || f > hi {
			continue
		}
		freqs = append(freqs, f)
		power = append(power, real(c)*real(c)+imag(c)*imag(c))
	}
	return freqs, power
}

// FrequencySummary 频域统计摘要（需要采样率）
//
// 在关注频带内输出：mean_freq, sd_freq, median_freq, peak_freq,
// spectral_entropy（按频点数归一到 [0,1]）。
type FrequencySummary struct {
	Lo, Hi float64
	rate   float64
}

// NewFrequencySummary 创建频域摘要特征函数，采样率由流水线注入
func NewFrequencySummary(lo, hi float64) FrequencySummary {
	return FrequencySummary{Lo: lo, Hi: hi}
}

// Name 实现 Extractor
func (FrequencySummary) Name() string { return "frequency_summary" }

// WithSamplingRate 实现 RateAware
func (f FrequencySummary) WithSamplingRate(hz float64) Extractor {
	f.rate = hz
	return f
}

// Apply 实现 Extractor
func (f FrequencySummary) Apply(series []float64) (map[string]float64, error) {
	if len(series) < 2 {
		return nil, errors.New("series too short for spectral estimate")
	}
	if f.rate <= 0 {
		return nil, errors.New("sampling rate not set")
	}

	freqs, power := spectrum(series, f.rate, f.Lo, f.Hi)
	if len(freqs) < 2 {
		return nil, fmt.Errorf("fewer than 2 spectral bins in [%g, %g] Hz", f.Lo, f.Hi)
	}

	var total float64
	for _, p := range power {
		total += p
	}
	if total <= 0 {
		return nil, errors.New("zero spectral power in band")
	}

	var meanFreq float64
	peak := 0
	for i, p := range power {
		meanFreq += freqs[i] * p / total
		if p > power[peak] {
			peak = i
		}
	}

	var variance float64
	for i, p := range power {
		d := freqs[i] - meanFreq
		variance += d * d * p / total
	}

	// 中位频率：累积功率首次达到一半处的频点
	medianFreq := freqs[len(freqs)-1]
	cum := 0.0
	for i, p := range power {
		cum += p
		if cum >= total/2 {
			medianFreq = freqs[i]
			break
		}
	}

	// 谱熵：功率分布的香农熵，按频点数归一
	entropy := 0.0
	for _, p := range power {
		if p <= 0 {
			continue
		}
		q := p / total
		entropy -= q * math.Log2(q)
	}
	entropy /= math.Log2(float64(len(power)))

	return map[string]float64{
		"mean_freq":        meanFreq,
		"sd_freq":          math.Sqrt(variance),
		"median_freq":      medianFreq,
		"peak_freq":        freqs[peak],
		"spectral_entropy": entropy,
	}, nil
}

// BandEnergy 频带能量分布（需要采样率）
//
// 把 [Lo, Hi] 切成 Width Hz 宽的连续子带，输出每个子带的归一化谱能量，
// 键形如 energy_1_3。最后一个子带右边界收拢到 Hi。
type BandEnergy struct {
	Lo, Hi, Width float64
	rate          float64
}

// NewBandEnergy 创建频带能量特征函数，采样率由流水线注入
func NewBandEnergy(lo, hi, width float64) BandEnergy {
	return BandEnergy{Lo: lo, Hi: hi, Width: width}
}

// Name 实现 Extractor
func (BandEnergy) Name() string { return "band_energy" }

// WithSamplingRate 实现 RateAware
func (b BandEnergy) WithSamplingRate(hz float64) Extractor {
	b.rate = hz
	return b
}

// Apply 实现 Extractor
func (b BandEnergy) Apply(series []float64) (map[string]float64, error) {
	if len(series) < 2 {
		return nil, errors.New("series too short for spectral estimate")
	}
	if b.rate <= 0 {
		return nil, errors.New("sampling rate not set")
	}
	if b.Width <= 0 {
		return nil, errors.New("band width must be positive")
	}

	freqs, power := spectrum(series, b.rate, b.Lo, b.Hi)
	var total float64
	for _, p := range power {
		total += p
	}
	if total <= 0 {
		return nil, errors.New("zero spectral power in band")
	}

	out := make(map[string]float64)
	for lo := b.Lo; lo < b.Hi; lo += b.Width {
		hi := lo + b.Width
		if hi > b.Hi {
			hi = b.Hi
		}
		var sum float64
		for i, f := range freqs {
			// 子带左闭右开，最后一个子带含右边界
			if f >= lo && (f < hi || (hi == b.Hi && f <= hi)) {
				sum += power[i]
			}
		}
		out[bandKey(lo, hi)] = sum / total
	}
	return out, nil
}

func bandKey(lo, hi float64) string {
	return "energy_" + trimFloat(lo) + "_" + trimFloat(hi)
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
