package models

// Window 滑动窗口：原始时间序列上一段定长、可重叠的连续切片
// Index 按遍历顺序从 0 开始；同一 (传感器, 窗口参数) 组合内唯一
type Window struct {
	Index   int
	Samples Stream
}

// Axis 返回窗口在指定轴上的投影（特征函数的输入单元）
func (w Window) Axis(axis string) []float64 {
	return w.Samples.Axis(axis)
}
