package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/menudigital/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

const tenantColumns = `id, display_name, email, secret_hash, slug, logo, theme_color,
	subscription_tier, subscription_status, subscription_expires_at, last_transaction_ref,
	version, created_at, updated_at`

// PostgresTenantRepo はPostgreSQLを使用したテナントリポジトリ。
type PostgresTenantRepo struct {
	db *sql.DB
}

// NewPostgresTenantRepo はPostgresTenantRepoを生成する。
func NewPostgresTenantRepo(db *sql.DB) *PostgresTenantRepo {
	return &PostgresTenantRepo{db: db}
}

// FindByID は指定IDのテナントを取得する。見つからない場合はnilを返す。
func (r *PostgresTenantRepo) FindByID(ctx context.Context, id string) (*model.Tenant, error) {
	return r.findOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
}

// FindByEmail はメールアドレスでテナントを検索する。見つからない場合はnilを返す。
func (r *PostgresTenantRepo) FindByEmail(ctx context.Context, email string) (*model.Tenant, error) {
	return r.findOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE email = $1`, email)
}

// FindBySlug はスラッグでテナントを検索する。見つからない場合はnilを返す。
func (r *PostgresTenantRepo) FindBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	return r.findOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
}

// Create はテナントを作成する。
func (r *PostgresTenantRepo) Create(ctx context.Context, t *model.Tenant) error {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = t.CreatedAt
	t.Version = 1

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (`+tenantColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		t.ID, t.DisplayName, t.Email, t.SecretHash, t.Slug, t.Logo, t.ThemeColor,
		string(t.SubscriptionTier), string(t.SubscriptionStatus),
		nullTime(t.SubscriptionExpiresAt), nullString(t.LastTransactionRef),
		t.Version, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			if strings.Contains(pqErr.Constraint, "slug") {
				return ErrDuplicateSlug
			}
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert tenant: %w", err)
	}
	return nil
}

// Save はテナントをバージョン比較付きで更新する。
func (r *PostgresTenantRepo) Save(ctx context.Context, t *model.Tenant) error {
	updatedAt := time.Now()

	result, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET
			display_name = $1, logo = $2, theme_color = $3,
			subscription_tier = $4, subscription_status = $5,
			subscription_expires_at = $6, last_transaction_ref = $7,
			version = version + 1, updated_at = $8
		 WHERE id = $9 AND version = $10`,
		t.DisplayName, t.Logo, t.ThemeColor,
		string(t.SubscriptionTier), string(t.SubscriptionStatus),
		nullTime(t.SubscriptionExpiresAt), nullString(t.LastTransactionRef),
		updatedAt, t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrConcurrentUpdate
	}

	t.Version++
	t.UpdatedAt = updatedAt
	return nil
}

// ListExpirable はactiveのまま有効期限を過ぎたテナントを取得する。
func (r *PostgresTenantRepo) ListExpirable(ctx context.Context, now time.Time, limit int) ([]*model.Tenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants
		 WHERE subscription_status = 'active'
		   AND subscription_expires_at IS NOT NULL
		   AND subscription_expires_at < $1
		 ORDER BY subscription_expires_at
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expirable tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenants: %w", err)
	}
	return tenants, nil
}

func (r *PostgresTenantRepo) findOne(ctx context.Context, query string, arg string) (*model.Tenant, error) {
	t, err := scanTenant(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tenant: %w", err)
	}
	return t, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(s rowScanner) (*model.Tenant, error) {
	var (
		t         model.Tenant
		tier      string
		status    string
		expiresAt sql.NullTime
		txRef     sql.NullString
	)
	err := s.Scan(
		&t.ID, &t.DisplayName, &t.Email, &t.SecretHash, &t.Slug, &t.Logo, &t.ThemeColor,
		&tier, &status, &expiresAt, &txRef,
		&t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.SubscriptionTier = model.SubscriptionTier(tier)
	t.SubscriptionStatus = model.SubscriptionStatus(status)
	if expiresAt.Valid {
		v := expiresAt.Time
		t.SubscriptionExpiresAt = &v
	}
	if txRef.Valid {
		v := txRef.String
		t.LastTransactionRef = &v
	}
	return &t, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// compile-time interface check
var _ TenantRepository = (*PostgresTenantRepo)(nil)
