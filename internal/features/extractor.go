// Package features 特征函数契约与内置统计特征集
//
// 特征函数是不透明的统计算子：数值序列 → 命名标量映射。本包同时提供
// 应用器（ApplyAll）和默认的震颤特征集（时域摘要、频域摘要、频带能量）。
package features

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/th1vairam/mHealthTools/internal/models"
)

// Extractor 特征函数：一个轴序列映射为若干命名特征值
type Extractor interface {
	// Name 特征函数名（用于失败归因与键名消歧）
	Name() string
	// Apply 计算特征映射；统计量对当前输入无定义时返回 error
	Apply(series []float64) (map[string]float64, error)
}

// RateAware 需要采样率的特征函数
// 流水线估计出采样率后通过 WithSamplingRate 注入，返回绑定采样率的副本
type RateAware interface {
	WithSamplingRate(hz float64) Extractor
}

// BindRate 给集合中所有 RateAware 特征函数注入采样率，其余原样保留
func BindRate(extractors []Extractor, hz float64) []Extractor {
	bound := make([]Extractor, len(extractors))
	for i, ex := range extractors {
		if ra, ok := ex.(RateAware); ok {
			bound[i] = ra.WithSamplingRate(hz)
		} else {
			bound[i] = ex
		}
	}
	return bound
}

// ApplyAll 对单个轴序列应用一组特征函数，返回所有函数输出的并集
//
// 失败只影响单个 (函数, 轴, 窗口) 单元：某个函数返回 error 或产出非有限值时，
// 该函数的贡献被记为失败原因，其余函数照常执行。errNote 汇总本单元内的全部
// 失败原因（分号分隔），无失败时为空串。键冲突时后出现的键以函数名加前缀消歧。
// 空序列没有可计算的输入，整个单元记为 "Empty axis series"。
func ApplyAll(extractors []Extractor, series []float64) (map[string]float64, string) {
	if len(series) == 0 {
		return nil, models.ErrorEmptySeries
	}

	merged := make(map[string]float64)
	var failures []string
	for _, ex := range extractors {
		out, err := ex.Apply(series)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", ex.Name(), err))
			continue
		}
		if reason, ok := firstNonFinite(out); ok {
			// 非有限值会破坏下游序列化，整个函数的贡献按失败处理
			failures = append(failures, fmt.Sprintf("%s: non-finite value for %s", ex.Name(), reason))
			continue
		}
		for key, value := range out {
			if _, exists := merged[key]; exists {
				key = ex.Name() + "_" + key
			}
			merged[key] = value
		}
	}

	return merged, strings.Join(failures, "; ")
}

// firstNonFinite 返回映射中第一个非有限值的键（按键序遍历，保证确定性）
func firstNonFinite(out map[string]float64) (string, bool) {
	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if math.IsNaN(out[k]) || math.IsInf(out[k], 0) {
			return k, true
		}
	}
	return "", false
}

// DefaultTremorSet 震颤测定的默认特征集：时域摘要 + 频域摘要 + 频带能量
// lo/hi 为频域特征的关注频带（Hz），与流水线的带通范围一致
func DefaultTremorSet(lo, hi float64) []Extractor {
	return []Extractor{
		TimeDomainSummary{},
		NewFrequencySummary(lo, hi),
		NewBandEnergy(lo, hi, 2),
	}
}
