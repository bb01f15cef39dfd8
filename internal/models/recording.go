package models

import "fmt"

// Recording 一次完整录制的原始载荷
// 设备经 MQTT/HTTP 提交、或从研究平台拉取的处理单元，gravity 可缺省
type Recording struct {
	RecordingID   string `json:"recording_id"`
	DeviceID      string `json:"device_id"`
	Accelerometer Stream `json:"accelerometer"`
	Gyroscope     Stream `json:"gyroscope"`
	Gravity       Stream `json:"gravity,omitempty"`
}

// Validate 检查处理所需的标识字段
// 传感器数据的结构性校验（NaN/Inf/空表）由测定流程负责，不在此处提前拒绝
func (r *Recording) Validate() error {
	if r.RecordingID == "" {
		return fmt.Errorf("recording_id is required")
	}
	if r.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	return nil
}
