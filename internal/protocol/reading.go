package protocol

import "time"

// 报文类型常量
const (
	KindLocationUpdate   = "location_update"
	KindHeartbeatSimple  = "heartbeat_simple"
	KindHeartbeatCommand = "heartbeat_command"
	KindAlarm            = "alarm"
)

// 方言常量（仅用于诊断）
const (
	DialectStandard  = "standard"
	DialectHQ        = "hq"
	DialectSimulator = "simulator"
)

// 报警代码常量
const (
	AlarmSOS        = "sos"
	AlarmLowBattery = "low_battery"
	AlarmMovement   = "movement"
	AlarmOverspeed  = "overspeed"
	AlarmGeofence   = "geofence"
	AlarmAcc        = "acc_alarm"
)

// Reading 单条上报报文的归一化解码结果
type Reading struct {
	DeviceID     string
	Lat          float64
	Lng          float64
	HasLocation  bool
	Speed        float64 // km/h
	Course       float64 // 度
	Timestamp    time.Time
	Kind         string
	Dialect      string
	Alarm        string // 空串表示无报警
	AccStatus    bool
	DoorStatus   bool
	TripDistance float64 // 仅模拟器方言携带
	Raw          string
}
