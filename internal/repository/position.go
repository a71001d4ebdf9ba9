package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Gpstrackergsm/gps-saas-platform/internal/models"
)

// 单次历史查询的最大行数，足够覆盖一整天 3 秒间隔的上报
const historyLimit = 50000

// PositionRepository 位置数据仓库
type PositionRepository struct {
	db *DB
}

// NewPositionRepository 创建位置仓库
func NewPositionRepository(db *DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Insert 写入一条位置记录
func (r *PositionRepository) Insert(ctx context.Context, pos *models.Position) error {
	query := `
		INSERT INTO positions (device_id, lat, lng, speed, course, alarm, acc_status, door_status, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		pos.DeviceID,
		pos.Lat,
		pos.Lng,
		pos.Speed,
		pos.Course,
		pos.Alarm,
		pos.AccStatus,
		pos.DoorStatus,
		pos.Timestamp,
	).Scan(&pos.ID)

	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// History 查询设备历史轨迹。
// (0,0) 坐标表示定位不可用，直接过滤掉，避免轨迹回跳到赤道原点。
func (r *PositionRepository) History(ctx context.Context, deviceID string, start, end *time.Time) ([]*models.Position, error) {
	query := `
		SELECT id, device_id, lat, lng, speed, course, alarm, acc_status, door_status, timestamp
		FROM positions
		WHERE device_id = $1
		  AND ($2::timestamptz IS NULL OR timestamp BETWEEN $2 AND $3)
		  AND (lat <> 0 AND lng <> 0)
		ORDER BY timestamp ASC
		LIMIT $4
	`
	rows, err := r.db.Pool.Query(ctx, query, deviceID, start, end, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		pos := &models.Position{}
		err := rows.Scan(
			&pos.ID,
			&pos.DeviceID,
			&pos.Lat,
			&pos.Lng,
			&pos.Speed,
			&pos.Course,
			&pos.Alarm,
			&pos.AccStatus,
			&pos.DoorStatus,
			&pos.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, pos)
	}

	return positions, rows.Err()
}

// DeleteByDevice 清空设备历史轨迹
func (r *PositionRepository) DeleteByDevice(ctx context.Context, deviceID string) error {
	query := `DELETE FROM positions WHERE device_id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, deviceID); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}
