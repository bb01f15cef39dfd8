package features

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TimeDomainSummary 时域统计摘要
//
// 输出：mean, median, sd, q25, q75, iqr, min, max, range, rms,
// energy（平方和）, skewness, kurtosis（超值峰度）, zcr（过零率）。
// 单样本序列的离散统计量无定义，偏度/峰度对常量序列无定义 —— 这类
// 输入按特征函数失败处理（由应用器的非有限值检查捕获）。
type TimeDomainSummary struct{}

// Name 实现 Extractor
func (TimeDomainSummary) Name() string { return "time_domain_summary" }

// Apply 实现 Extractor
func (TimeDomainSummary) Apply(series []float64) (map[string]float64, error) {
	n := len(series)
	if n == 0 {
		return nil, errors.New("empty series")
	}

	sorted := make([]float64, n)
	copy(sorted, series)
	sort.Float64s(sorted)

	min, max := sorted[0], sorted[n-1]
	mean := stat.Mean(series, nil)
	sd := stat.StdDev(series, nil)

	var energy float64
	for _, v := range series {
		energy += v * v
	}

	zeroCrossings := 0
	for i := 1; i < n; i++ {
		if series[i-1]*series[i] < 0 {
			zeroCrossings++
		}
	}
	zcr := 0.0
	if n > 1 {
		zcr = float64(zeroCrossings) / float64(n-1)
	}

	q25 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	q75 := stat.Quantile(0.75, stat.Empirical, sorted, nil)

	return map[string]float64{
		"mean":     mean,
		"median":   median,
		"sd":       sd,
		"q25":      q25,
		"q75":      q75,
		"iqr":      q75 - q25,
		"min":      min,
		"max":      max,
		"range":    max - min,
		"rms":      math.Sqrt(energy / float64(n)),
		"energy":   energy,
		"skewness": stat.Skew(series, nil),
		"kurtosis": stat.ExKurtosis(series, nil),
		"zcr":      zcr,
	}, nil
}
