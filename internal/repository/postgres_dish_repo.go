package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/menudigital/internal/model"
)

// PostgresDishRepo はPostgreSQLを使用した料理リポジトリ。
type PostgresDishRepo struct {
	db *sql.DB
}

// NewPostgresDishRepo はPostgresDishRepoを生成する。
func NewPostgresDishRepo(db *sql.DB) *PostgresDishRepo {
	return &PostgresDishRepo{db: db}
}

// FindByID は指定IDの料理を取得する。見つからない場合はnilを返す。
func (r *PostgresDishRepo) FindByID(ctx context.Context, id string) (*model.Dish, error) {
	d := &model.Dish{}
	var category string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, description, price, category, is_available, image, created_at, updated_at
		 FROM dishes WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.TenantID, &d.Name, &d.Description, &d.Price, &category, &d.IsAvailable, &d.Image, &d.CreatedAt, &d.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find dish by ID: %w", err)
	}
	d.Category = model.DishCategory(category)
	return d, nil
}

// ListByTenant はテナントの料理一覧を作成日時順で返す。
func (r *PostgresDishRepo) ListByTenant(ctx context.Context, tenantID string) ([]*model.Dish, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, description, price, category, is_available, image, created_at, updated_at
		 FROM dishes WHERE tenant_id = $1
		 ORDER BY created_at, id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list dishes: %w", err)
	}
	defer rows.Close()

	dishes := []*model.Dish{}
	for rows.Next() {
		d := &model.Dish{}
		var category string
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Name, &d.Description, &d.Price, &category, &d.IsAvailable, &d.Image, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dish: %w", err)
		}
		d.Category = model.DishCategory(category)
		dishes = append(dishes, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dishes: %w", err)
	}
	return dishes, nil
}

// Create は料理を作成する。
func (r *PostgresDishRepo) Create(ctx context.Context, d *model.Dish) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dishes (id, tenant_id, name, description, price, category, is_available, image, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.TenantID, d.Name, d.Description, d.Price, string(d.Category), d.IsAvailable, d.Image, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dish: %w", err)
	}
	return nil
}

// Update は料理を上書き更新する。
func (r *PostgresDishRepo) Update(ctx context.Context, d *model.Dish) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dishes SET name = $1, description = $2, price = $3, category = $4,
			is_available = $5, image = $6, updated_at = $7
		 WHERE id = $8`,
		d.Name, d.Description, d.Price, string(d.Category), d.IsAvailable, d.Image, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update dish: %w", err)
	}
	return nil
}

// Delete は指定IDの料理を削除する。
func (r *PostgresDishRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM dishes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dish: %w", err)
	}
	return nil
}

// compile-time interface check
var _ DishRepository = (*PostgresDishRepo)(nil)
