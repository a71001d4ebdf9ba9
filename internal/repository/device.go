package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Gpstrackergsm/gps-saas-platform/internal/models"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/state"
)

// ErrDeviceNotFound 设备不存在
var ErrDeviceNotFound = errors.New("device not found")

// DeviceRepository 设备数据仓库
type DeviceRepository struct {
	db *DB
}

// NewDeviceRepository 创建设备仓库
func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Create 创建设备
func (r *DeviceRepository) Create(ctx context.Context, device *models.Device) error {
	query := `
		INSERT INTO devices (device_id, name, status, current_state, sim_phone, tenant_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, state_start_time, created_at
	`
	if device.Status == "" {
		device.Status = state.StatusOffline
	}
	if device.CurrentState == "" {
		device.CurrentState = state.StateParked
	}
	err := r.db.Pool.QueryRow(ctx, query,
		device.DeviceID,
		device.Name,
		device.Status,
		device.CurrentState,
		device.SimPhone,
		device.TenantID,
	).Scan(&device.ID, &device.StateStartTime, &device.CreatedAt)

	if err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

// GetState 获取设备当前分类及其起始时间
func (r *DeviceRepository) GetState(ctx context.Context, deviceID string) (state.Snapshot, error) {
	query := `SELECT current_state, state_start_time FROM devices WHERE device_id = $1`

	var snap state.Snapshot
	err := r.db.Pool.QueryRow(ctx, query, deviceID).Scan(&snap.State, &snap.Since)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return state.Snapshot{}, ErrDeviceNotFound
		}
		return state.Snapshot{}, fmt.Errorf("get device state: %w", err)
	}
	return snap, nil
}

// ApplyReading 按一条已接受的定位读数更新设备行。
// state_start_time 只在分类实际变化时改写（由 CASE 条件保证，
// 并发写同一设备时由该语句的行级原子性兜底）。
func (r *DeviceRepository) ApplyReading(ctx context.Context, deviceID, newState string, ts time.Time, alarm string) error {
	query := `
		UPDATE devices SET
			last_seen = $1,
			status = 'online',
			state_start_time = CASE WHEN current_state <> $2 THEN $3 ELSE state_start_time END,
			current_state = $2,
			last_alarm = COALESCE(NULLIF($4, ''), last_alarm)
		WHERE device_id = $5
	`
	tag, err := r.db.Pool.Exec(ctx, query, ts, newState, ts, alarm, deviceID)
	if err != nil {
		return fmt.Errorf("apply reading: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Heartbeat 心跳只刷新 last_seen 与在线状态
func (r *DeviceRepository) Heartbeat(ctx context.Context, deviceID string, ts time.Time) error {
	query := `UPDATE devices SET last_seen = $1, status = 'online' WHERE device_id = $2`
	tag, err := r.db.Pool.Exec(ctx, query, ts, deviceID)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// ListStale 返回超过存活阈值仍标记在线的设备号
func (r *DeviceRepository) ListStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `
		SELECT device_id FROM devices
		WHERE status = 'online' AND (last_seen IS NULL OR last_seen < $1)
	`
	rows, err := r.db.Pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale devices: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan device id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkOffline 存活超时路径：离线同样走条件更新，保持起始时间不被重复刷新
func (r *DeviceRepository) MarkOffline(ctx context.Context, deviceID string, ts time.Time) error {
	query := `
		UPDATE devices SET
			status = 'offline',
			state_start_time = CASE WHEN current_state <> 'offline' THEN $1 ELSE state_start_time END,
			current_state = 'offline'
		WHERE device_id = $2
	`
	if _, err := r.db.Pool.Exec(ctx, query, ts, deviceID); err != nil {
		return fmt.Errorf("mark offline: %w", err)
	}
	return nil
}

// ListByTenant 返回租户的全部设备及各自最新位置
func (r *DeviceRepository) ListByTenant(ctx context.Context, tenantID int64) ([]*models.DeviceWithPosition, error) {
	query := `
		SELECT
			d.id, d.device_id, d.name, d.status, d.current_state, d.state_start_time,
			d.last_alarm, d.last_seen, d.sim_phone, d.tenant_id, d.created_at,
			p.lat, p.lng, p.speed, p.course, p.timestamp AS last_update
		FROM devices d
		LEFT JOIN positions p ON p.id = (
			SELECT id FROM positions
			WHERE device_id = d.device_id
			ORDER BY timestamp DESC
			LIMIT 1
		)
		WHERE d.tenant_id = $1
		ORDER BY d.last_seen DESC NULLS LAST
	`
	rows, err := r.db.Pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.DeviceWithPosition
	for rows.Next() {
		d := &models.DeviceWithPosition{}
		err := rows.Scan(
			&d.ID,
			&d.DeviceID,
			&d.Name,
			&d.Status,
			&d.CurrentState,
			&d.StateStartTime,
			&d.LastAlarm,
			&d.LastSeen,
			&d.SimPhone,
			&d.TenantID,
			&d.CreatedAt,
			&d.Lat,
			&d.Lng,
			&d.Speed,
			&d.Course,
			&d.LastUpdate,
		)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, d)
	}

	return devices, rows.Err()
}
