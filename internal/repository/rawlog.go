package repository

import (
	"context"
	"fmt"
	"time"
)

// RawLogRepository 原始报文审计仓库
type RawLogRepository struct {
	db *DB
}

// NewRawLogRepository 创建审计仓库
func NewRawLogRepository(db *DB) *RawLogRepository {
	return &RawLogRepository{db: db}
}

// Insert 原样写入一条报文
func (r *RawLogRepository) Insert(ctx context.Context, payload string, receivedAt time.Time) error {
	query := `INSERT INTO raw_logs (payload, received_at) VALUES ($1, $2)`
	if _, err := r.db.Pool.Exec(ctx, query, payload, receivedAt); err != nil {
		return fmt.Errorf("insert raw log: %w", err)
	}
	return nil
}
