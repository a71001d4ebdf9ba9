package models

import "time"

// Tenant 租户（公司）
type Tenant struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// User 平台用户
type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"` // user, admin, superadmin
	Phone        string    `json:"phone,omitempty" db:"phone"`
	TenantID     int64     `json:"tenant_id" db:"tenant_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Device 设备（终端）信息
type Device struct {
	ID             int64      `json:"id" db:"id"`
	DeviceID       string     `json:"device_id" db:"device_id"`
	Name           string     `json:"name" db:"name"`
	Status         string     `json:"status" db:"status"` // online, offline
	CurrentState   string     `json:"current_state" db:"current_state"`
	StateStartTime time.Time  `json:"state_start_time" db:"state_start_time"`
	LastAlarm      *string    `json:"last_alarm,omitempty" db:"last_alarm"`
	LastSeen       *time.Time `json:"last_seen,omitempty" db:"last_seen"`
	SimPhone       *string    `json:"sim_phone,omitempty" db:"sim_phone"`
	TenantID       *int64     `json:"tenant_id,omitempty" db:"tenant_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// DeviceWithPosition 设备及其最新位置（列表查询用）
type DeviceWithPosition struct {
	Device
	Lat        *float64   `json:"lat,omitempty" db:"lat"`
	Lng        *float64   `json:"lng,omitempty" db:"lng"`
	Speed      *float64   `json:"speed,omitempty" db:"speed"`
	Course     *float64   `json:"course,omitempty" db:"course"`
	LastUpdate *time.Time `json:"last_update,omitempty" db:"last_update"`
}

// Position 位置记录
type Position struct {
	ID         int64     `json:"id" db:"id"`
	DeviceID   string    `json:"device_id" db:"device_id"`
	Lat        float64   `json:"lat" db:"lat"`
	Lng        float64   `json:"lng" db:"lng"`
	Speed      float64   `json:"speed" db:"speed"`   // km/h
	Course     float64   `json:"course" db:"course"` // 度
	Alarm      *string   `json:"alarm,omitempty" db:"alarm"`
	AccStatus  bool      `json:"acc_status" db:"acc_status"`
	DoorStatus bool      `json:"door_status" db:"door_status"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
}

// RawLog 原始报文审计记录
type RawLog struct {
	ID         int64     `json:"id" db:"id"`
	Payload    string    `json:"payload" db:"payload"`
	ReceivedAt time.Time `json:"received_at" db:"received_at"`
}
