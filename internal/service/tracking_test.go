package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Gpstrackergsm/gps-saas-platform/internal/models"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/state"
	"github.com/Gpstrackergsm/gps-saas-platform/pkg/ws"
)

type fakePositionStore struct {
	inserted  []*models.Position
	insertErr error
}

func (f *fakePositionStore) Insert(ctx context.Context, pos *models.Position) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, pos)
	return nil
}

type appliedReading struct {
	deviceID string
	newState string
	ts       time.Time
	alarm    string
}

type fakeDeviceStore struct {
	states     []state.Snapshot // GetState 按调用次序依次返回
	stateCalls int
	applied    []appliedReading
	heartbeats []string
	applyErr   error
}

func (f *fakeDeviceStore) GetState(ctx context.Context, deviceID string) (state.Snapshot, error) {
	if f.stateCalls >= len(f.states) {
		return state.Snapshot{}, errors.New("no state configured")
	}
	snap := f.states[f.stateCalls]
	f.stateCalls++
	return snap, nil
}

func (f *fakeDeviceStore) ApplyReading(ctx context.Context, deviceID, newState string, ts time.Time, alarm string) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, appliedReading{deviceID, newState, ts, alarm})
	return nil
}

func (f *fakeDeviceStore) Heartbeat(ctx context.Context, deviceID string, ts time.Time) error {
	f.heartbeats = append(f.heartbeats, deviceID)
	return nil
}

type fakeRawLogStore struct {
	payloads []string
}

func (f *fakeRawLogStore) Insert(ctx context.Context, payload string, receivedAt time.Time) error {
	f.payloads = append(f.payloads, payload)
	return nil
}

type publishedEvent struct {
	event string
	data  interface{}
}

type fakePublisher struct {
	events []publishedEvent
}

func (f *fakePublisher) Publish(event string, data interface{}) {
	f.events = append(f.events, publishedEvent{event, data})
}

type fakeLifecycle struct {
	seen []string
}

func (f *fakeLifecycle) MarkSeen(deviceID string) {
	f.seen = append(f.seen, deviceID)
}

func newTestTracker(positions *fakePositionStore, devices *fakeDeviceStore) (*Tracker, *fakeRawLogStore, *fakePublisher, *fakeLifecycle) {
	rawLogs := &fakeRawLogStore{}
	pub := &fakePublisher{}
	lc := &fakeLifecycle{}
	return NewTracker(zap.NewNop(), positions, devices, rawLogs, pub, lc), rawLogs, pub, lc
}

func TestHandleRawLocationUpdate(t *testing.T) {
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	persisted := t0.Add(-time.Minute) // 落库后的权威起始时间

	positions := &fakePositionStore{}
	devices := &fakeDeviceStore{states: []state.Snapshot{
		{State: state.StateParked, Since: t0.Add(-time.Hour)},
		{State: state.StateMoving, Since: persisted},
	}}
	tracker, rawLogs, pub, lc := newTestTracker(positions, devices)

	raw := "(359586018966098,LOC,33.573100,-7.589800,45.50,1,12.34)"
	tracker.HandleRaw(context.Background(), raw, t0)

	if len(rawLogs.payloads) != 1 || rawLogs.payloads[0] != raw {
		t.Fatalf("raw log payloads = %v", rawLogs.payloads)
	}
	if len(positions.inserted) != 1 {
		t.Fatalf("positions inserted = %d", len(positions.inserted))
	}
	if len(devices.applied) != 1 {
		t.Fatalf("device updates = %d", len(devices.applied))
	}
	if devices.applied[0].newState != state.StateMoving {
		t.Errorf("applied state = %q", devices.applied[0].newState)
	}
	if len(lc.seen) != 1 || lc.seen[0] != "359586018966098" {
		t.Errorf("lifecycle seen = %v", lc.seen)
	}

	if len(pub.events) != 1 {
		t.Fatalf("published events = %d", len(pub.events))
	}
	if pub.events[0].event != ws.EventPosition {
		t.Errorf("event = %q", pub.events[0].event)
	}
	ev, ok := pub.events[0].data.(PositionEvent)
	if !ok {
		t.Fatalf("event payload type %T", pub.events[0].data)
	}
	if ev.State != state.StateMoving || !ev.AccStatus {
		t.Errorf("event state=%q acc=%v", ev.State, ev.AccStatus)
	}
	// 推送携带回读的权威起始时间，而非本地推导副本
	if ev.StateStartTime != persisted.Format(time.RFC3339) {
		t.Errorf("stateStartTime = %q, want %q", ev.StateStartTime, persisted.Format(time.RFC3339))
	}
	if !almostEqual(ev.TripDistance, 12.34) {
		t.Errorf("tripDistance = %v", ev.TripDistance)
	}
}

func TestHandleRawUnrecognized(t *testing.T) {
	positions := &fakePositionStore{}
	devices := &fakeDeviceStore{}
	tracker, rawLogs, pub, lc := newTestTracker(positions, devices)

	tracker.HandleRaw(context.Background(), "garbage,not,a,packet", time.Now())

	// 无法识别的报文只保留审计记录
	if len(rawLogs.payloads) != 1 {
		t.Errorf("raw log payloads = %d", len(rawLogs.payloads))
	}
	if len(positions.inserted) != 0 || len(devices.applied) != 0 || len(pub.events) != 0 || len(lc.seen) != 0 {
		t.Error("unrecognized message must not touch stores, publisher or lifecycle")
	}
}

func TestHandleRawHeartbeat(t *testing.T) {
	positions := &fakePositionStore{}
	devices := &fakeDeviceStore{}
	tracker, _, pub, lc := newTestTracker(positions, devices)

	tracker.HandleRaw(context.Background(), "359586018966098;", time.Now())

	if len(devices.heartbeats) != 1 || devices.heartbeats[0] != "359586018966098" {
		t.Errorf("heartbeats = %v", devices.heartbeats)
	}
	if len(lc.seen) != 1 {
		t.Errorf("lifecycle seen = %v", lc.seen)
	}
	// 心跳不写位置也不推送
	if len(positions.inserted) != 0 || len(pub.events) != 0 {
		t.Error("heartbeat must not insert positions or publish events")
	}
}

func TestHandleRawAlarmKind(t *testing.T) {
	positions := &fakePositionStore{}
	devices := &fakeDeviceStore{}
	tracker, rawLogs, pub, _ := newTestTracker(positions, devices)

	raw := "imei:359586018966098,help me,240615120000,,F,120000,A,3124.5678,N,00433.9876,E,42.0"
	tracker.HandleRaw(context.Background(), raw, time.Now())

	if len(rawLogs.payloads) != 1 {
		t.Errorf("raw log payloads = %d", len(rawLogs.payloads))
	}
	if len(positions.inserted) != 0 || len(devices.applied) != 0 || len(pub.events) != 0 {
		t.Error("alarm message must stay audit-only")
	}
}

func TestProcessLocationUpdateInsertFailure(t *testing.T) {
	positions := &fakePositionStore{insertErr: errors.New("db down")}
	devices := &fakeDeviceStore{}
	tracker, _, pub, lc := newTestTracker(positions, devices)

	err := tracker.ProcessLocationUpdate(context.Background(), LocationUpdate{
		DeviceID:  "359586018966098",
		Lat:       33.5731,
		Lng:       -7.5898,
		Timestamp: time.Now(),
	})
	if err == nil {
		t.Fatal("expected error when position insert fails")
	}
	// 未落库的状态绝不广播
	if len(pub.events) != 0 {
		t.Error("broadcast must be suppressed on insert failure")
	}
	if len(devices.applied) != 0 || len(lc.seen) != 0 {
		t.Error("device update must not run after insert failure")
	}
}

func TestProcessLocationUpdateSameClassification(t *testing.T) {
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	since := t0.Add(-10 * time.Minute)

	positions := &fakePositionStore{}
	devices := &fakeDeviceStore{states: []state.Snapshot{
		{State: state.StateMoving, Since: since},
		{State: state.StateMoving, Since: since},
	}}
	tracker, _, pub, _ := newTestTracker(positions, devices)

	err := tracker.ProcessLocationUpdate(context.Background(), LocationUpdate{
		DeviceID:  "359586018966098",
		AccStatus: true,
		Speed:     60,
		Timestamp: t0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev := pub.events[0].data.(PositionEvent)
	// 分类未变：起始时间保持原值
	if ev.StateStartTime != since.Format(time.RFC3339) {
		t.Errorf("stateStartTime = %q, want %q", ev.StateStartTime, since.Format(time.RFC3339))
	}
	if ev.State != state.StateMoving {
		t.Errorf("state = %q", ev.State)
	}
}

func almostEqual(a, b float64) bool {
	diff := a - b
	return diff < 1e-6 && diff > -1e-6
}
