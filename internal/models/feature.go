package models

// 错误文案：error 列与 ErrorState 使用的固定字符串
// 一旦某一阶段产出错误，文案必须原样传递到最终调用方，后续阶段不得改写
const (
	// ErrorNone error 列的正常标记（字面量 "None"）
	ErrorNone = "None"

	// ErrorMalformedAccelerometer 加速度计数据结构不完整（空表或含 NaN/Inf）
	ErrorMalformedAccelerometer = "Malformed accelerometer data"
	// ErrorMalformedGyroscope 陀螺仪数据结构不完整
	ErrorMalformedGyroscope = "Malformed gyroscope data"
	// ErrorMalformedGravity 重力参考数据结构不完整（窗口有效性无法判定）
	ErrorMalformedGravity = "Malformed gravity data"

	// ErrorDetrend 去趋势失败（样本数不足或时间戳退化导致拟合无定义）
	ErrorDetrend = "Detrend Error"
	// ErrorSamplingRate 采样率无法估计（样本数 < 2 或时间跨度非递增）
	ErrorSamplingRate = "Could not estimate sampling rate"
	// ErrorPhoneRotated 重力参考信号显示窗口内设备发生转动
	ErrorPhoneRotated = "Phone rotated within window"
	// ErrorEmptySeries 轴序列为空，特征函数无输入
	ErrorEmptySeries = "Empty axis series"
)

// ErrorState 表级错误状态标签
// 空串表示正常；非空表示该中间值是失败描述，其余负载字段不可再参与计算，
// 但失败原因本身必须不变地传递到顶层
type ErrorState string

// IsError 判断是否处于错误状态
func (e ErrorState) IsError() bool {
	return e != ""
}

// FeatureRecord 单条特征记录：一个 (传感器, 轴, 窗口) 组合的命名特征值
// Error 为 "None" 时记录有效；否则 Features/Axis/Window 不具含义
type FeatureRecord struct {
	Sensor   string             `json:"sensor"`
	Axis     string             `json:"axis"`
	Window   int                `json:"window"`
	Features map[string]float64 `json:"features"`
	Error    string             `json:"error"`
}

// FeatureTable 特征表：按 (sensor, axis, window) 为键的有序记录集合
// State 是表级 ErrorState；State 为错误时 Records 固定为一条错误标记行
type FeatureTable struct {
	Sensor  string          `json:"sensor,omitempty"`
	Records []FeatureRecord `json:"records"`
	State   ErrorState      `json:"-"`
}

// NewErrorTable 构造单行错误表：模式与正常表一致，便于上层统一拼接
// 错误行的 Window 置为 -1，防止被误用于窗口对齐
func NewErrorTable(sensor, reason string) FeatureTable {
	return FeatureTable{
		Sensor: sensor,
		Records: []FeatureRecord{
			{Sensor: sensor, Axis: "", Window: -1, Error: reason},
		},
		State: ErrorState(reason),
	}
}

// Concat 拼接两张表的记录（行序保持参数顺序），State 不参与合并
func Concat(tables ...FeatureTable) FeatureTable {
	var merged FeatureTable
	for _, t := range tables {
		merged.Records = append(merged.Records, t.Records...)
	}
	return merged
}

// WindowTag 单个窗口的有效性标注（OutlierTagger 的输出单元）
// Error 为 "None" 表示窗口有效
type WindowTag struct {
	Window int    `json:"window"`
	Error  string `json:"error"`
}
