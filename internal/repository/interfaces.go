// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/menudigital/internal/model"
)

// ErrConcurrentUpdate は読み込み後に別のリクエストがテナントを更新していた場合に返される。
// 呼び出し元は再読み込みしてから遷移をやり直す。
var ErrConcurrentUpdate = errors.New("tenant was modified concurrently")

// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
var ErrDuplicateEmail = errors.New("email address already exists")

// ErrDuplicateSlug はスラッグの一意制約違反を表す。
var ErrDuplicateSlug = errors.New("slug already exists")

// TenantRepository はテナント（認証情報と購読状態）の永続化インターフェース。
// 見つからない場合はいずれもnilを返す。
type TenantRepository interface {
	// FindByID は指定IDのテナントを取得する。
	FindByID(ctx context.Context, id string) (*model.Tenant, error)

	// FindByEmail は正規化済みメールアドレスでテナントを検索する。
	FindByEmail(ctx context.Context, email string) (*model.Tenant, error)

	// FindBySlug はスラッグでテナントを検索する。
	FindBySlug(ctx context.Context, slug string) (*model.Tenant, error)

	// Create はテナントを作成する。
	// 一意制約違反の場合はErrDuplicateEmailまたはErrDuplicateSlugを返す。
	Create(ctx context.Context, tenant *model.Tenant) error

	// Save はテナントを上書き保存する。
	// tenant.Versionが保存済みの値と一致しない場合はErrConcurrentUpdateを返す。
	// 成功時はtenant.VersionとUpdatedAtを更新する。
	Save(ctx context.Context, tenant *model.Tenant) error

	// ListExpirable はactiveのまま有効期限がnowを過ぎたテナントを最大limit件返す。
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]*model.Tenant, error)
}

// DishRepository は料理データの永続化インターフェース。
type DishRepository interface {
	// FindByID は指定IDの料理を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Dish, error)

	// ListByTenant はテナントの料理一覧を作成日時順で返す。
	ListByTenant(ctx context.Context, tenantID string) ([]*model.Dish, error)

	// Create は料理を作成する。
	Create(ctx context.Context, dish *model.Dish) error

	// Update は料理を上書き更新する。
	Update(ctx context.Context, dish *model.Dish) error

	// Delete は指定IDの料理を削除する。
	Delete(ctx context.Context, id string) error
}
