package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Gpstrackergsm/gps-saas-platform/internal/observability"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/state"
	"github.com/Gpstrackergsm/gps-saas-platform/pkg/ws"
)

// StaleDeviceStore 存活监控需要的存储协作方
type StaleDeviceStore interface {
	ListStale(ctx context.Context, cutoff time.Time) ([]string, error)
	MarkOffline(ctx context.Context, deviceID string, ts time.Time) error
}

// DeviceStatusEvent 设备上线/离线事件
type DeviceStatusEvent struct {
	DeviceID string `json:"deviceId"`
	Status   string `json:"status"`
	Since    string `json:"since"`
}

// Liveness 存活监控：周期性把超时无报文的设备标记离线。
// 离线阈值是策略参数，摄取管线本身不产生 offline 分类。
type Liveness struct {
	logger    *zap.Logger
	devices   StaleDeviceStore
	publisher Publisher
	lifecycle *state.Manager
	timeout   time.Duration
	interval  time.Duration
}

// NewLiveness 创建存活监控
func NewLiveness(logger *zap.Logger, devices StaleDeviceStore, publisher Publisher, timeout, interval time.Duration) *Liveness {
	l := &Liveness{
		logger:    logger,
		devices:   devices,
		publisher: publisher,
		timeout:   timeout,
		interval:  interval,
	}
	l.lifecycle = state.NewManager(l.onStatusChange)
	return l
}

// MarkSeen 摄取路径成功处理一条报文后调用，驱动 offline→online 转换
func (l *Liveness) MarkSeen(deviceID string) {
	m := l.lifecycle.GetOrCreate(deviceID, state.StatusOffline)
	if m.Can(state.EventSeen) {
		if err := m.Trigger(state.EventSeen); err != nil {
			l.logger.Warn("Lifecycle seen transition failed",
				zap.String("device_id", deviceID), zap.Error(err))
		}
	}
}

// Run 周期性扫描，直到 ctx 取消
func (l *Liveness) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("Liveness monitor started",
		zap.Duration("timeout", l.timeout),
		zap.Duration("interval", l.interval))

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Liveness monitor stopped")
			return
		case <-ticker.C:
			l.sweep(ctx)
		}
	}
}

func (l *Liveness) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-l.timeout)
	ids, err := l.devices.ListStale(ctx, cutoff)
	if err != nil {
		l.logger.Error("Failed to list stale devices", zap.Error(err))
		return
	}

	now := time.Now()
	for _, id := range ids {
		if err := l.devices.MarkOffline(ctx, id, now); err != nil {
			observability.StoreErrors.Inc()
			l.logger.Error("Failed to mark device offline",
				zap.String("device_id", id), zap.Error(err))
			continue
		}

		m := l.lifecycle.GetOrCreate(id, state.StatusOnline)
		if m.Can(state.EventTimeout) {
			if err := m.Trigger(state.EventTimeout); err != nil {
				l.logger.Warn("Lifecycle timeout transition failed",
					zap.String("device_id", id), zap.Error(err))
			}
		}
	}
}

// onStatusChange 生命周期转换回调：广播设备上线/离线
func (l *Liveness) onStatusChange(deviceID, from, to string) {
	l.publisher.Publish(ws.EventDeviceStatus, DeviceStatusEvent{
		DeviceID: deviceID,
		Status:   to,
		Since:    time.Now().UTC().Format(time.RFC3339),
	})
	observability.EventsPublished.WithLabelValues(ws.EventDeviceStatus).Inc()

	l.logger.Info("Device status changed",
		zap.String("device_id", deviceID),
		zap.String("from", from),
		zap.String("to", to))
}
