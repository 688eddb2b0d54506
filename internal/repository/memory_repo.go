package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/menudigital/internal/model"
)

// MemoryTenantRepo はメモリ上で動作するTenantRepositoryの実装。
// PostgresTenantRepoと同じ一意制約とバージョン比較を行う。ローカル開発とテストで使用する。
type MemoryTenantRepo struct {
	mu      sync.RWMutex
	tenants map[string]*model.Tenant
	now     func() time.Time
}

// NewMemoryTenantRepo はMemoryTenantRepoを生成する。
func NewMemoryTenantRepo() *MemoryTenantRepo {
	return &MemoryTenantRepo{
		tenants: make(map[string]*model.Tenant),
		now:     time.Now,
	}
}

// FindByID は指定IDのテナントのコピーを返す。
func (r *MemoryTenantRepo) FindByID(ctx context.Context, id string) (*model.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.tenants[id]; ok {
		return t.Clone(), nil
	}
	return nil, nil
}

// FindByEmail はメールアドレスでテナントを検索する。
func (r *MemoryTenantRepo) FindByEmail(ctx context.Context, email string) (*model.Tenant, error) {
	return r.findBy(func(t *model.Tenant) bool { return t.Email == email }), nil
}

// FindBySlug はスラッグでテナントを検索する。
func (r *MemoryTenantRepo) FindBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	return r.findBy(func(t *model.Tenant) bool { return t.Slug == slug }), nil
}

func (r *MemoryTenantRepo) findBy(match func(*model.Tenant) bool) *model.Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tenants {
		if match(t) {
			return t.Clone()
		}
	}
	return nil
}

// Create はテナントを作成する。
func (r *MemoryTenantRepo) Create(ctx context.Context, t *model.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.tenants {
		if existing.Email == t.Email {
			return ErrDuplicateEmail
		}
		if existing.Slug == t.Slug {
			return ErrDuplicateSlug
		}
	}

	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now()
	}
	t.UpdatedAt = t.CreatedAt
	t.Version = 1
	r.tenants[t.ID] = t.Clone()
	return nil
}

// Save はバージョンが一致する場合のみテナントを上書きする。
func (r *MemoryTenantRepo) Save(ctx context.Context, t *model.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tenants[t.ID]
	if !ok || stored.Version != t.Version {
		return ErrConcurrentUpdate
	}

	t.Version++
	t.UpdatedAt = r.now()
	next := t.Clone()
	// メールアドレス、スラッグ、作成日時は不変
	next.Email = stored.Email
	next.Slug = stored.Slug
	next.SecretHash = stored.SecretHash
	next.CreatedAt = stored.CreatedAt
	r.tenants[t.ID] = next
	return nil
}

// ListExpirable はactiveのまま有効期限を過ぎたテナントを期限の古い順に返す。
func (r *MemoryTenantRepo) ListExpirable(ctx context.Context, now time.Time, limit int) ([]*model.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Tenant
	for _, t := range r.tenants {
		if t.SubscriptionStatus == model.StatusActive &&
			t.SubscriptionExpiresAt != nil &&
			t.SubscriptionExpiresAt.Before(now) {
			result = append(result, t.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SubscriptionExpiresAt.Before(*result[j].SubscriptionExpiresAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MemoryDishRepo はメモリ上で動作するDishRepositoryの実装。
type MemoryDishRepo struct {
	mu     sync.RWMutex
	dishes map[string]*model.Dish
	order  []string
}

// NewMemoryDishRepo はMemoryDishRepoを生成する。
func NewMemoryDishRepo() *MemoryDishRepo {
	return &MemoryDishRepo{dishes: make(map[string]*model.Dish)}
}

// FindByID は指定IDの料理のコピーを返す。
func (r *MemoryDishRepo) FindByID(ctx context.Context, id string) (*model.Dish, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.dishes[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

// ListByTenant はテナントの料理を登録順で返す。
func (r *MemoryDishRepo) ListByTenant(ctx context.Context, tenantID string) ([]*model.Dish, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dishes := []*model.Dish{}
	for _, id := range r.order {
		d, ok := r.dishes[id]
		if !ok || d.TenantID != tenantID {
			continue
		}
		cp := *d
		dishes = append(dishes, &cp)
	}
	return dishes, nil
}

// Create は料理を作成する。
func (r *MemoryDishRepo) Create(ctx context.Context, d *model.Dish) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.dishes[d.ID] = &cp
	r.order = append(r.order, d.ID)
	return nil
}

// Update は料理を上書き更新する。
func (r *MemoryDishRepo) Update(ctx context.Context, d *model.Dish) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.dishes[d.ID]; ok {
		cp := *d
		r.dishes[d.ID] = &cp
	}
	return nil
}

// Delete は指定IDの料理を削除する。
func (r *MemoryDishRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.dishes, id)
	return nil
}

var (
	_ TenantRepository = (*MemoryTenantRepo)(nil)
	_ DishRepository   = (*MemoryDishRepo)(nil)
)
