package features_test

import (
	"errors"
	"math"
	"testing"

	"github.com/th1vairam/mHealthTools/internal/features"
	"github.com/th1vairam/mHealthTools/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubExtractor 返回固定输出或固定错误的特征函数
type stubExtractor struct {
	name string
	out  map[string]float64
	err  error
}

func (s stubExtractor) Name() string { return s.name }

func (s stubExtractor) Apply([]float64) (map[string]float64, error) {
	return s.out, s.err
}

func TestApplyAll_MergesAllExtractors(t *testing.T) {
	exs := []features.Extractor{
		stubExtractor{name: "a", out: map[string]float64{"mean": 1}},
		stubExtractor{name: "b", out: map[string]float64{"peak": 2}},
	}

	out, note := features.ApplyAll(exs, []float64{1, 2, 3})
	assert.Empty(t, note)
	assert.Equal(t, map[string]float64{"mean": 1, "peak": 2}, out)
}

func TestApplyAll_EmptySeries(t *testing.T) {
	out, note := features.ApplyAll(nil, nil)
	assert.Nil(t, out)
	assert.Equal(t, models.ErrorEmptySeries, note)
}

func TestApplyAll_FailureScopedToOneFunction(t *testing.T) {
	// 一个函数失败不影响同单元内的其他函数
	exs := []features.Extractor{
		stubExtractor{name: "broken", err: errors.New("boom")},
		stubExtractor{name: "ok", out: map[string]float64{"mean": 1}},
	}

	out, note := features.ApplyAll(exs, []float64{1, 2, 3})
	assert.Equal(t, map[string]float64{"mean": 1}, out)
	assert.Equal(t, "broken: boom", note)
}

func TestApplyAll_NonFiniteOutputIsFailure(t *testing.T) {
	exs := []features.Extractor{
		stubExtractor{name: "nan", out: map[string]float64{"bad": math.NaN(), "good": 1}},
		stubExtractor{name: "ok", out: map[string]float64{"mean": 2}},
	}

	out, note := features.ApplyAll(exs, []float64{1, 2, 3})
	// 非有限值导致整个函数的贡献被丢弃，包括同函数的有限值
	assert.Equal(t, map[string]float64{"mean": 2}, out)
	assert.Contains(t, note, "nan: non-finite value for bad")
}

func TestApplyAll_KeyCollision(t *testing.T) {
	exs := []features.Extractor{
		stubExtractor{name: "first", out: map[string]float64{"mean": 1}},
		stubExtractor{name: "second", out: map[string]float64{"mean": 2}},
	}

	out, note := features.ApplyAll(exs, []float64{1, 2, 3})
	assert.Empty(t, note)
	assert.Equal(t, map[string]float64{"mean": 1, "second_mean": 2}, out)
}

func TestBindRate_InjectsIntoRateAware(t *testing.T) {
	exs := features.DefaultTremorSet(1, 25)
	bound := features.BindRate(exs, 100)
	require.Len(t, bound, len(exs))

	// 注入后频域特征可以计算；原切片不受影响
	series := tone(5, 200, 100)
	out, note := features.ApplyAll(bound, series)
	assert.Empty(t, note)
	assert.Contains(t, out, "peak_freq")
	assert.Contains(t, out, "energy_5_7")
	assert.Contains(t, out, "mean")

	_, err := exs[1].Apply(series)
	assert.Error(t, err, "original extractor must stay unbound")
}

func TestDefaultTremorSet_Composition(t *testing.T) {
	exs := features.DefaultTremorSet(1, 25)
	require.Len(t, exs, 3)
	assert.Equal(t, "time_domain_summary", exs[0].Name())
	assert.Equal(t, "frequency_summary", exs[1].Name())
	assert.Equal(t, "band_energy", exs[2].Name())
}
