package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Gpstrackergsm/gps-saas-platform/internal/models"
)

// ErrUserNotFound 用户不存在
var ErrUserNotFound = errors.New("user not found")

// UserRepository 用户与租户数据仓库
type UserRepository struct {
	db *DB
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByEmail 按邮箱查找用户
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, role, COALESCE(phone, ''), COALESCE(tenant_id, 0), created_at
		FROM users WHERE email = $1
	`
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Phone,
		&user.TenantID,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// CreateWithTenant 在一个事务里创建租户及其首个用户
func (r *UserRepository) CreateWithTenant(ctx context.Context, tenantName string, user *models.User) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var tenantID int64
	err = tx.QueryRow(ctx, `INSERT INTO tenants (name) VALUES ($1) RETURNING id`, tenantName).Scan(&tenantID)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, role, tenant_id) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		user.Email, user.PasswordHash, user.Role, tenantID,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	user.TenantID = tenantID
	return tx.Commit(ctx)
}

// UpdateProfile 按需更新密码、手机号与公司名
func (r *UserRepository) UpdateProfile(ctx context.Context, userID, tenantID int64, passwordHash, phone, companyName *string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if passwordHash != nil {
		if _, err := tx.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, *passwordHash, userID); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
	}
	if phone != nil {
		if _, err := tx.Exec(ctx, `UPDATE users SET phone = $1 WHERE id = $2`, *phone, userID); err != nil {
			return fmt.Errorf("update phone: %w", err)
		}
	}
	if companyName != nil {
		if _, err := tx.Exec(ctx, `UPDATE tenants SET name = $1 WHERE id = $2`, *companyName, tenantID); err != nil {
			return fmt.Errorf("update tenant name: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListTenants 返回全部租户
func (r *UserRepository) ListTenants(ctx context.Context) ([]*models.Tenant, error) {
	query := `SELECT id, name, created_at FROM tenants ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		t := &models.Tenant{}
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// CreateTenant 创建租户并附带一个管理员账号
func (r *UserRepository) CreateTenant(ctx context.Context, name, adminEmail, adminPasswordHash string) (*models.Tenant, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	t := &models.Tenant{Name: name}
	err = tx.QueryRow(ctx, `INSERT INTO tenants (name) VALUES ($1) RETURNING id, created_at`, name).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert tenant: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO users (email, password_hash, role, tenant_id) VALUES ($1, $2, 'admin', $3)`,
		adminEmail, adminPasswordHash, t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert tenant admin: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return t, nil
}
