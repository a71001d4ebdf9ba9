package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Gpstrackergsm/gps-saas-platform/internal/models"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/observability"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/protocol"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/state"
	"github.com/Gpstrackergsm/gps-saas-platform/pkg/ws"
)

// PositionStore 位置写入协作方
type PositionStore interface {
	Insert(ctx context.Context, pos *models.Position) error
}

// DeviceStore 设备状态协作方
type DeviceStore interface {
	GetState(ctx context.Context, deviceID string) (state.Snapshot, error)
	ApplyReading(ctx context.Context, deviceID, newState string, ts time.Time, alarm string) error
	Heartbeat(ctx context.Context, deviceID string, ts time.Time) error
}

// RawLogStore 原始报文审计协作方
type RawLogStore interface {
	Insert(ctx context.Context, payload string, receivedAt time.Time) error
}

// Publisher 实时推送协作方，发布即忘
type Publisher interface {
	Publish(event string, data interface{})
}

// LifecycleNotifier 设备生命周期通知（由存活监控实现，可为 nil）
type LifecycleNotifier interface {
	MarkSeen(deviceID string)
}

// LocationUpdate 一次已结构化的定位更新，TCP 解码路径与模拟入口共用
type LocationUpdate struct {
	DeviceID     string    `json:"deviceId" binding:"required"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	Speed        float64   `json:"speed"`
	Course       float64   `json:"course"`
	Alarm        string    `json:"alarm"`
	AccStatus    bool      `json:"accStatus"`
	DoorStatus   bool      `json:"doorStatus"`
	TripDistance float64   `json:"tripDistance"`
	Timestamp    time.Time `json:"-"`
}

// PositionEvent 推送给订阅方的定位事件
type PositionEvent struct {
	DeviceID       string    `json:"deviceId"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	Speed          float64   `json:"speed"`
	Course         float64   `json:"course"`
	Alarm          string    `json:"alarm,omitempty"`
	AccStatus      bool      `json:"accStatus"`
	State          string    `json:"state"`
	StateStartTime string    `json:"stateStartTime"`
	TripDistance   float64   `json:"tripDistance"`
	LastUpdate     time.Time `json:"lastUpdate"`
}

// Tracker 摄取管线：审计、解码、状态推导、落库、推送。
// 所有协作方显式注入，自身不持有可变状态，可被任意多个连接并发调用。
type Tracker struct {
	logger    *zap.Logger
	positions PositionStore
	devices   DeviceStore
	rawLogs   RawLogStore
	publisher Publisher
	lifecycle LifecycleNotifier
}

// NewTracker 创建摄取管线
func NewTracker(
	logger *zap.Logger,
	positions PositionStore,
	devices DeviceStore,
	rawLogs RawLogStore,
	publisher Publisher,
	lifecycle LifecycleNotifier,
) *Tracker {
	return &Tracker{
		logger:    logger,
		positions: positions,
		devices:   devices,
		rawLogs:   rawLogs,
		publisher: publisher,
		lifecycle: lifecycle,
	}
}

// HandleRaw 处理一条来自 TCP 会话的原始报文。
// 任何一步失败都被就地隔离，不得中断所在连接的后续报文。
func (t *Tracker) HandleRaw(ctx context.Context, payload string, receivedAt time.Time) {
	// 无条件审计，失败只记日志
	if err := t.rawLogs.Insert(ctx, payload, receivedAt); err != nil {
		observability.StoreErrors.Inc()
		t.logger.Error("Failed to write raw log", zap.Error(err))
	}

	reading := protocol.Decode(payload, receivedAt)
	if reading == nil {
		observability.DecodeFailures.Inc()
		t.logger.Debug("Unrecognized message dropped", zap.String("payload", payload))
		return
	}
	observability.MessagesDecoded.WithLabelValues(reading.Dialect).Inc()

	switch {
	case reading.Kind == protocol.KindLocationUpdate:
		upd := LocationUpdate{
			DeviceID:     reading.DeviceID,
			Lat:          reading.Lat,
			Lng:          reading.Lng,
			Speed:        reading.Speed,
			Course:       reading.Course,
			Alarm:        reading.Alarm,
			AccStatus:    reading.AccStatus,
			DoorStatus:   reading.DoorStatus,
			TripDistance: reading.TripDistance,
			Timestamp:    reading.Timestamp,
		}
		if err := t.ProcessLocationUpdate(ctx, upd); err != nil {
			t.logger.Error("Failed to process location update",
				zap.String("device_id", reading.DeviceID),
				zap.String("kind", reading.Kind),
				zap.Error(err))
		}

	case strings.HasPrefix(reading.Kind, "heartbeat"):
		if err := t.devices.Heartbeat(ctx, reading.DeviceID, reading.Timestamp); err != nil {
			observability.StoreErrors.Inc()
			t.logger.Error("Failed to save heartbeat",
				zap.String("device_id", reading.DeviceID),
				zap.String("kind", reading.Kind),
				zap.Error(err))
			return
		}
		t.markSeen(reading.DeviceID)

	default:
		// alarm 类报文携带的坐标不落位置表，仅保留审计记录
		t.logger.Info("Alarm message logged",
			zap.String("device_id", reading.DeviceID),
			zap.String("alarm", reading.Alarm))
	}
}

// ProcessLocationUpdate 执行定位更新的完整持久化与推送序列。
// 位置写入失败时必须抑制推送——绝不广播未落库的状态。
func (t *Tracker) ProcessLocationUpdate(ctx context.Context, upd LocationUpdate) error {
	pos := &models.Position{
		DeviceID:   upd.DeviceID,
		Lat:        upd.Lat,
		Lng:        upd.Lng,
		Speed:      upd.Speed,
		Course:     upd.Course,
		AccStatus:  upd.AccStatus,
		DoorStatus: upd.DoorStatus,
		Timestamp:  upd.Timestamp,
	}
	if upd.Alarm != "" {
		pos.Alarm = &upd.Alarm
	}

	if err := t.positions.Insert(ctx, pos); err != nil {
		observability.StoreErrors.Inc()
		return fmt.Errorf("insert position: %w", err)
	}
	observability.PositionsSaved.Inc()

	prev, err := t.devices.GetState(ctx, upd.DeviceID)
	if err != nil {
		return fmt.Errorf("get device state: %w", err)
	}

	snap, changed := state.Derive(upd.AccStatus, upd.Speed, prev, upd.Timestamp)

	if err := t.devices.ApplyReading(ctx, upd.DeviceID, snap.State, upd.Timestamp, upd.Alarm); err != nil {
		observability.StoreErrors.Inc()
		return fmt.Errorf("update device: %w", err)
	}
	t.markSeen(upd.DeviceID)

	// 回读落库后的起始时间再推送，避免并发写入方之间广播过期的本地副本
	startTime := snap.Since
	if authoritative, err := t.devices.GetState(ctx, upd.DeviceID); err == nil {
		startTime = authoritative.Since
	} else {
		t.logger.Warn("Failed to re-read state start time",
			zap.String("device_id", upd.DeviceID),
			zap.Error(err))
	}

	event := PositionEvent{
		DeviceID:       upd.DeviceID,
		Lat:            upd.Lat,
		Lng:            upd.Lng,
		Speed:          upd.Speed,
		Course:         upd.Course,
		Alarm:          upd.Alarm,
		AccStatus:      upd.AccStatus,
		State:          snap.State,
		StateStartTime: startTime.UTC().Format(time.RFC3339),
		TripDistance:   upd.TripDistance,
		LastUpdate:     upd.Timestamp,
	}
	t.publisher.Publish(ws.EventPosition, event)
	observability.EventsPublished.WithLabelValues(ws.EventPosition).Inc()

	t.logger.Info("Position processed",
		zap.String("device_id", upd.DeviceID),
		zap.String("state", snap.State),
		zap.Bool("state_changed", changed))
	return nil
}

func (t *Tracker) markSeen(deviceID string) {
	if t.lifecycle != nil {
		t.lifecycle.MarkSeen(deviceID)
	}
}
