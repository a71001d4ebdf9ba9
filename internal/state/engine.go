package state

import "time"

// 设备状态常量
const (
	StateMoving  = "moving"
	StateIdling  = "idling"
	StateParked  = "parked"
	StateOffline = "offline"
)

// 速度超过该阈值（严格大于，km/h）才判为行驶
const movingSpeedThreshold = 5

// Snapshot 设备某一时刻的状态及其起始时间
type Snapshot struct {
	State string
	Since time.Time
}

// Classify 根据 ACC 与速度得出分类。
// offline 不由这里产生，它由外部的存活超时路径单独设置。
func Classify(accOn bool, speed float64) string {
	switch {
	case !accOn:
		return StateParked
	case speed > movingSpeedThreshold:
		return StateMoving
	default:
		return StateIdling
	}
}

// Derive 由上一个状态快照和新读数推导新的状态快照。
// 仅当分类发生变化时 Since 才更新为 now，否则原样保留——
// 消费方依赖 Since 计算停留/行程时长。
func Derive(accOn bool, speed float64, prev Snapshot, now time.Time) (Snapshot, bool) {
	next := Classify(accOn, speed)
	if next == prev.State {
		return prev, false
	}
	return Snapshot{State: next, Since: now}, true
}
