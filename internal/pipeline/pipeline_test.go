package pipeline_test

import (
	"math"
	"reflect"
	"testing"

	"github.com/th1vairam/mHealthTools/internal/features"
	"github.com/th1vairam/mHealthTools/internal/models"
	"github.com/th1vairam/mHealthTools/internal/pipeline"
	"github.com/th1vairam/mHealthTools/internal/window"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sensorStream 三轴不同频率的正弦混合，n 个样本 @ rate Hz
func sensorStream(n int, rate float64) models.Stream {
	s := make(models.Stream, n)
	for i := range s {
		ts := float64(i) / rate
		s[i] = models.Reading{
			T: ts,
			X: math.Sin(2*math.Pi*4*ts) + 0.3*ts,
			Y: 0.8 * math.Sin(2*math.Pi*7*ts),
			Z: 0.5*math.Sin(2*math.Pi*3*ts) + 1.0,
		}
	}
	return s
}

func testConfig() pipeline.Config {
	return pipeline.Config{
		Sensor:          models.SensorAccelerometer,
		MalformedReason: models.ErrorMalformedAccelerometer,
		WindowLength:    128,
		Overlap:         0.5,
		TimeRange:       [2]float64{0, 100},
		FrequencyRange:  [2]float64{1, 25},
		Bandpass:        true,
		Extractors:      features.DefaultTremorSet(1, 25),
	}
}

func TestRun_RowCountAndSchema(t *testing.T) {
	stream := sensorStream(400, 50)
	cfg := testConfig()

	table := pipeline.Run(stream, cfg)
	require.False(t, table.State.IsError())

	wantWindows := window.Count(400, cfg.WindowLength, cfg.Overlap)
	require.Equal(t, wantWindows*3, len(table.Records))

	// 遍历顺序：窗口外层，轴内层；每行 error 列为 "None"
	for i, rec := range table.Records {
		assert.Equal(t, models.SensorAccelerometer, rec.Sensor)
		assert.Equal(t, i/3, rec.Window)
		assert.Equal(t, models.AxisNames[i%3], rec.Axis)
		assert.Equal(t, models.ErrorNone, rec.Error)
		assert.Contains(t, rec.Features, "mean")
		assert.Contains(t, rec.Features, "peak_freq")
		for name, v := range rec.Features {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "row %d feature %s", i, name)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	stream := sensorStream(400, 50)
	cfg := testConfig()

	first := pipeline.Run(stream, cfg)
	second := pipeline.Run(stream, cfg)
	assert.True(t, reflect.DeepEqual(first, second), "identical input must give bit-identical output")
}

func TestRun_MalformedStream(t *testing.T) {
	bad := models.Stream{{T: 0, X: 1}, {T: 0.1, X: math.NaN()}}

	table := pipeline.Run(bad, testConfig())
	require.True(t, table.State.IsError())
	require.Len(t, table.Records, 1)
	assert.Equal(t, models.ErrorMalformedAccelerometer, table.Records[0].Error)
	assert.Equal(t, models.ErrorMalformedAccelerometer, string(table.State))
	assert.Equal(t, -1, table.Records[0].Window)

	table = pipeline.Run(nil, testConfig())
	require.Len(t, table.Records, 1)
	assert.Equal(t, models.ErrorMalformedAccelerometer, table.Records[0].Error)
}

func TestRun_DetrendErrorAfterTrim(t *testing.T) {
	// 样本全部落在裁剪区间之外，去趋势没有输入
	cfg := testConfig()
	cfg.TimeRange = [2]float64{1, 9}
	stream := models.Stream{{T: 0.2, X: 1, Y: 1, Z: 1}, {T: 0.5, X: 2, Y: 2, Z: 2}}

	table := pipeline.Run(stream, cfg)
	require.Len(t, table.Records, 1)
	assert.Equal(t, models.ErrorDetrend, table.Records[0].Error)
	assert.Equal(t, models.ErrorDetrend, string(table.State))
}

func TestRun_SamplingRateError(t *testing.T) {
	// 时间倒流：去趋势可拟合，但采样率无法估计
	stream := models.Stream{
		{T: 3.0, X: 1, Y: 2, Z: 3},
		{T: 2.0, X: 2, Y: 1, Z: 4},
		{T: 1.0, X: 3, Y: 3, Z: 5},
	}

	table := pipeline.Run(stream, testConfig())
	require.Len(t, table.Records, 1)
	assert.Equal(t, models.ErrorSamplingRate, table.Records[0].Error)
}

func TestRun_TooShortForOneWindow(t *testing.T) {
	// 不足一个窗口不是错误，输出零行空表
	stream := sensorStream(100, 50)

	table := pipeline.Run(stream, testConfig())
	assert.False(t, table.State.IsError())
	assert.Empty(t, table.Records)
}

func TestRun_DerivedSeriesSharePrefix(t *testing.T) {
	stream := sensorStream(400, 50)
	cfg := testConfig()
	cfg.DeriveJerk = true
	cfg.DeriveDisplacement = true

	plain := pipeline.Run(stream, testConfig())
	derived := pipeline.Run(stream, cfg)

	// 派生序列只扩展特征列，不改变行数
	require.Equal(t, len(plain.Records), len(derived.Records))
	for i, rec := range derived.Records {
		assert.Contains(t, rec.Features, "mean")
		assert.Contains(t, rec.Features, "jerk_mean")
		assert.Contains(t, rec.Features, "displacement_mean")
		assert.Contains(t, rec.Features, "jerk_peak_freq")
		assert.Equal(t, plain.Records[i].Features["mean"], rec.Features["mean"],
			"primary features must not change when derived series are enabled")
	}
}
