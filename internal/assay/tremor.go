package assay

import (
	"fmt"
	"sync"

	"github.com/th1vairam/mHealthTools/internal/features"
	"github.com/th1vairam/mHealthTools/internal/models"
	"github.com/th1vairam/mHealthTools/internal/outlier"
	"github.com/th1vairam/mHealthTools/internal/pipeline"
)

// 震颤测定的默认参数
const (
	DefaultWindowLength = 256
	DefaultOverlap      = 0.5
)

var (
	// DefaultTimeRange 默认裁剪区间（秒）：录制首尾各留缓冲
	DefaultTimeRange = [2]float64{1, 9}
	// DefaultFrequencyRange 震颤关注频带（Hz）
	DefaultFrequencyRange = [2]float64{1, 25}
)

// Input 震颤测定的输入：加速度计与陀螺仪必填，重力参考可选
type Input struct {
	Accelerometer models.Stream `json:"accelerometer"`
	Gyroscope     models.Stream `json:"gyroscope"`
	Gravity       models.Stream `json:"gravity,omitempty"`
}

// Config 震颤测定参数；零值字段在 Extract 内回填默认值
type Config struct {
	WindowLength       int        `json:"window_length"`
	Overlap            float64    `json:"overlap"`
	TimeRange          [2]float64 `json:"time_range"`
	FrequencyRange     [2]float64 `json:"frequency_range"`
	Bandpass           bool       `json:"bandpass"`
	DeriveJerk         bool       `json:"derive_jerk"`
	DeriveDisplacement bool       `json:"derive_displacement"`
	RotationThreshold  float64    `json:"rotation_threshold"`

	// Extractors 为空时使用 DefaultTremorSet
	Extractors []features.Extractor `json:"-"`
}

// DefaultConfig 返回全部默认参数（带通开启）
func DefaultConfig() Config {
	return Config{
		WindowLength:      DefaultWindowLength,
		Overlap:           DefaultOverlap,
		TimeRange:         DefaultTimeRange,
		FrequencyRange:    DefaultFrequencyRange,
		Bandpass:          true,
		RotationThreshold: outlier.DefaultRotationThreshold,
	}
}

// withDefaults 回填零值参数；Overlap 的零值是合法取值，不回填
func (c Config) withDefaults() Config {
	if c.WindowLength == 0 {
		c.WindowLength = DefaultWindowLength
	}
	if c.TimeRange == [2]float64{} {
		c.TimeRange = DefaultTimeRange
	}
	if c.FrequencyRange == [2]float64{} {
		c.FrequencyRange = DefaultFrequencyRange
	}
	if c.RotationThreshold == 0 {
		c.RotationThreshold = outlier.DefaultRotationThreshold
	}
	if len(c.Extractors) == 0 {
		c.Extractors = features.DefaultTremorSet(c.FrequencyRange[0], c.FrequencyRange[1])
	}
	return c
}

// validate 参数违约是唯一以 Go error 上抛的硬失败，数据问题一律走 error 列
func (c Config) validate() error {
	if c.WindowLength < 1 {
		return fmt.Errorf("window_length must be >= 1, got %d", c.WindowLength)
	}
	if c.Overlap < 0 || c.Overlap >= 1 {
		return fmt.Errorf("overlap must be in [0, 1), got %g", c.Overlap)
	}
	if c.TimeRange[0] > c.TimeRange[1] {
		return fmt.Errorf("time_range is inverted: [%g, %g]", c.TimeRange[0], c.TimeRange[1])
	}
	if c.FrequencyRange[0] < 0 || c.FrequencyRange[0] >= c.FrequencyRange[1] {
		return fmt.Errorf("frequency_range is invalid: [%g, %g]", c.FrequencyRange[0], c.FrequencyRange[1])
	}
	return nil
}

// Extract 震颤测定：双传感器流水线 + 重力窗口标注，输出合并特征表
//
// 加速度计与陀螺仪各跑一条独立流水线，互不影响，任一侧失败只占一行。
// 前置校验失败（缺流或含 NaN/Inf）直接返回单行错误表，两条流水线都不启动，
// 加速度计优先判定。两条流水线并发执行，合并顺序固定为加速度计在前。
//
// 提供重力参考时，按窗口下标把可疑标注左连接到两个传感器的记录上；
// 可疑标注覆盖 "None"，与已有的特征级失败原因并存（拼接，不丢弃）。
// 任一传感器分支整体失败时没有可对齐的窗口，跳过标注。
func Extract(input Input, cfg Config) (models.FeatureTable, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return models.FeatureTable{}, err
	}

	if !input.Accelerometer.Valid() {
		return models.NewErrorTable(models.SensorAccelerometer, models.ErrorMalformedAccelerometer), nil
	}
	if !input.Gyroscope.Valid() {
		return models.NewErrorTable(models.SensorGyroscope, models.ErrorMalformedGyroscope), nil
	}

	run := func(sensor, malformed string) pipeline.Config {
		return pipeline.Config{
			Sensor:             sensor,
			MalformedReason:    malformed,
			WindowLength:       cfg.WindowLength,
			Overlap:            cfg.Overlap,
			TimeRange:          cfg.TimeRange,
			FrequencyRange:     cfg.FrequencyRange,
			Bandpass:           cfg.Bandpass,
			DeriveJerk:         cfg.DeriveJerk,
			DeriveDisplacement: cfg.DeriveDisplacement,
			Extractors:         cfg.Extractors,
		}
	}

	var accelTable, gyroTable models.FeatureTable
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		accelTable = pipeline.Run(input.Accelerometer, run(models.SensorAccelerometer, models.ErrorMalformedAccelerometer))
	}()
	go func() {
		defer wg.Done()
		gyroTable = pipeline.Run(input.Gyroscope, run(models.SensorGyroscope, models.ErrorMalformedGyroscope))
	}()
	wg.Wait()

	merged := models.Concat(accelTable, gyroTable)

	// 分支整体失败时窗口下标空间不存在，无从对齐重力标注
	if accelTable.State.IsError() || gyroTable.State.IsError() {
		return merged, nil
	}
	if len(input.Gravity) == 0 {
		return merged, nil
	}

	gravity := input.Gravity.Trim(cfg.TimeRange[0], cfg.TimeRange[1])
	tags, errState := outlier.Tag(gravity, cfg.WindowLength, cfg.Overlap, cfg.RotationThreshold)
	if errState.IsError() {
		// 重力参考不可用，所有窗口的有效性未知：特征保留，逐行标注原因
		for i := range merged.Records {
			merged.Records[i].Error = joinNote(string(errState), merged.Records[i].Error)
		}
		return merged, nil
	}

	tagByWindow := make(map[int]string, len(tags))
	for _, tag := range tags {
		tagByWindow[tag.Window] = tag.Error
	}
	for i, rec := range merged.Records {
		note, ok := tagByWindow[rec.Window]
		if !ok || note == models.ErrorNone {
			continue
		}
		merged.Records[i].Error = joinNote(note, rec.Error)
	}
	return merged, nil
}

// joinNote 把窗口级标注并入行内 error 列：覆盖 "None"，保留已有失败原因
func joinNote(tag, existing string) string {
	if existing == models.ErrorNone || existing == "" {
		return tag
	}
	return tag + "; " + existing
}
