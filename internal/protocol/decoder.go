package protocol

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// 标准报文触发词到报警代码的映射
var standardAlarms = map[string]string{
	"help me":     AlarmSOS,
	"low battery": AlarmLowBattery,
	"move":        AlarmMovement,
	"speed":       AlarmOverspeed,
	"stockade":    AlarmGeofence,
	"accalarm":    AlarmAcc,
}

var simpleHeartbeatRe = regexp.MustCompile(`^\d{15};?$`)

// Decode 解析一条原始报文，按固定优先级尝试各方言。
// 未识别或字段畸形返回 nil，绝不 panic；调用方据此丢弃该条报文。
func Decode(raw string, receivedAt time.Time) *Reading {
	message := strings.TrimSpace(raw)
	if message == "" {
		return nil
	}

	// 1. 模拟器方言：(ID,CMD,LAT,LNG,SPEED,ACC,DISTANCE)
	if strings.HasPrefix(message, "(") && strings.HasSuffix(message, ")") {
		if r := decodeSimulator(message, receivedAt); r != nil {
			return r
		}
	}

	// 2. 标准数据报文
	if strings.HasPrefix(message, "imei:") {
		return decodeStandard(message, receivedAt)
	}

	// 3. HQ 报文
	if strings.HasPrefix(message, "*HQ,") {
		return decodeHQ(message, receivedAt)
	}

	// 4. 简单心跳：15 位数字，可带一个尾随分号
	if simpleHeartbeatRe.MatchString(message) {
		return &Reading{
			DeviceID:  strings.TrimSuffix(message, ";"),
			Timestamp: receivedAt,
			Kind:      KindHeartbeatSimple,
			Dialect:   DialectStandard,
			Raw:       message,
		}
	}

	// 5. 指令心跳：##,imei:<id>,<flag>
	if strings.HasPrefix(message, "##,imei:") {
		parts := strings.Split(message, ",")
		if len(parts) > 1 && strings.HasPrefix(parts[1], "imei:") {
			return &Reading{
				DeviceID:  strings.TrimPrefix(parts[1], "imei:"),
				Timestamp: receivedAt,
				Kind:      KindHeartbeatCommand,
				Dialect:   DialectStandard,
				Raw:       message,
			}
		}
	}

	return nil
}

// decodeSimulator 解析测试模拟器方言，坐标已是十进制度，不做度分转换。
// 字段不足 4 个视为结构不匹配，交回上层继续尝试其他方言。
func decodeSimulator(message string, receivedAt time.Time) *Reading {
	content := message[1 : len(message)-1]
	parts := strings.Split(content, ",")
	if len(parts) < 4 {
		return nil
	}

	lat, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return nil
	}

	speed := 0.0
	if len(parts) > 4 && parts[4] != "" {
		if v, err := strconv.ParseFloat(parts[4], 64); err == nil {
			speed = v
		}
	}

	// ACC 位缺省时按 speed > 0 推断
	acc := speed > 0
	if len(parts) > 5 && parts[5] != "" {
		acc = parts[5] == "1"
	}

	trip := 0.0
	if len(parts) > 6 && parts[6] != "" {
		if v, err := strconv.ParseFloat(parts[6], 64); err == nil {
			trip = v
		}
	}

	return &Reading{
		DeviceID:     parts[0],
		Lat:          lat,
		Lng:          lng,
		HasLocation:  true,
		Speed:        speed,
		AccStatus:    acc,
		TripDistance: trip,
		Timestamp:    receivedAt,
		Kind:         KindLocationUpdate,
		Dialect:      DialectSimulator,
		Raw:          message,
	}
}

// decodeStandard 解析 imei: 前缀的标准数据报文。
// 字段布局：0=imei:<id> 1=触发词 2=YYMMDDHHMM[SS] 7/8=纬度+半球 9/10=经度+半球 11=速度。
func decodeStandard(message string, receivedAt time.Time) *Reading {
	parts := strings.Split(strings.ReplaceAll(message, ";", ""), ",")

	deviceID := strings.TrimPrefix(parts[0], "imei:")
	if deviceID == "" || deviceID == parts[0] {
		return nil
	}

	// 字段不足说明不是定位报文
	if len(parts) < 12 {
		return nil
	}

	timestamp := parseStandardTimestamp(parts[2], receivedAt)
	lat := ToDecimalDegrees(parts[7], parts[8])
	lng := ToDecimalDegrees(parts[9], parts[10])

	speed := 0.0
	if parts[11] != "" {
		if v, err := strconv.ParseFloat(parts[11], 64); err == nil {
			speed = v
		}
	}

	kind := KindLocationUpdate
	alarm := ""
	if code, ok := standardAlarms[strings.ToLower(parts[1])]; ok {
		alarm = code
		kind = KindAlarm
	}

	// 部分设备把 ACC/车门状态以自由文本附在报文尾部，只能做子串探测
	acc := strings.Contains(message, "State:ACC=1") || strings.Contains(message, "acc on")
	door := strings.Contains(message, "Door=1")

	return &Reading{
		DeviceID:    deviceID,
		Lat:         lat,
		Lng:         lng,
		HasLocation: true,
		Speed:       speed,
		Timestamp:   timestamp,
		Kind:        kind,
		Dialect:     DialectStandard,
		Alarm:       alarm,
		AccStatus:   acc,
		DoorStatus:  door,
		Raw:         message,
	}
}

// decodeHQ 解析 *HQ 报文。
// 字段布局：1=设备号 3=HHMMSS 5/6=纬度+半球 7/8=经度+半球 9=速度 10=航向 11=DDMMYY 12=8 位十六进制状态字。
func decodeHQ(message string, receivedAt time.Time) *Reading {
	content := strings.TrimSuffix(message, "#")
	parts := strings.Split(content, ",")
	if len(parts) < 10 {
		return nil
	}

	deviceID := parts[1]
	lat := ToDecimalDegrees(parts[5], parts[6])
	lng := ToDecimalDegrees(parts[7], parts[8])

	speed := 0.0
	if parts[9] != "" {
		if v, err := strconv.ParseFloat(parts[9], 64); err == nil {
			speed = v
		}
	}

	course := 0.0
	if len(parts) > 10 && parts[10] != "" {
		if v, err := strconv.ParseFloat(parts[10], 64); err == nil {
			course = v
		}
	}

	timestamp := receivedAt
	if len(parts) > 11 {
		timestamp = parseHQTimestamp(parts[3], parts[11], receivedAt)
	}

	// 状态字：bit0=ACC bit1=车门。更高位含义厂商未公开，不做解读。
	acc := false
	door := false
	if len(parts) > 12 && len(parts[12]) >= 2 {
		if v, err := strconv.ParseUint(parts[12], 16, 32); err == nil {
			acc = v&1 == 1
			door = v&2 == 2
		}
	}

	return &Reading{
		DeviceID:    deviceID,
		Lat:         lat,
		Lng:         lng,
		HasLocation: true,
		Speed:       speed,
		Course:      course,
		Timestamp:   timestamp,
		Kind:        KindLocationUpdate,
		Dialect:     DialectHQ,
		AccStatus:   acc,
		DoorStatus:  door,
		Raw:         message,
	}
}
