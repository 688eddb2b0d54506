// Package menu は料理の管理と公開メニューの取得を提供する。
package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hitoshi/menudigital/internal/model"
	"github.com/hitoshi/menudigital/internal/repository"
	"github.com/hitoshi/menudigital/internal/security"
)

// TenantFinder はスラッグでテナントを検索する。
type TenantFinder interface {
	FindBySlug(ctx context.Context, slug string) (*model.Tenant, error)
}

// DishInput は料理の作成・更新の入力。
// 更新時はnilのフィールドを変更しない。
type DishInput struct {
	Name        *string `json:"name" validate:"omitempty,max=120"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0"`
	Category    *string `json:"category" validate:"omitempty,oneof=starter main dessert drink"`
	Image       *string `json:"image" validate:"omitempty,max=2048"`
	IsAvailable *bool   `json:"isAvailable"`
}

// Restaurant は公開メニューに表示する店舗情報。
type Restaurant struct {
	DisplayName string `json:"displayName"`
	Slug        string `json:"slug"`
	Logo        string `json:"logo"`
	ThemeColor  string `json:"themeColor"`
}

// PublicMenu は公開メニューの応答。
type PublicMenu struct {
	Restaurant Restaurant    `json:"restaurant"`
	Dishes     []*model.Dish `json:"dishes"`
}

// Service は料理管理のサービス層。
// 料理は所有テナントからのみ参照・変更でき、他テナントの料理は存在しないものとして扱う。
type Service struct {
	dishes    repository.DishRepository
	tenants   TenantFinder
	sanitizer security.TextSanitizer
	validate  *validator.Validate
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(dishes repository.DishRepository, tenants TenantFinder, sanitizer security.TextSanitizer, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		dishes:    dishes,
		tenants:   tenants,
		sanitizer: sanitizer,
		validate:  validator.New(),
		now:       now,
	}
}

// List はテナントの料理一覧を返す。
func (s *Service) List(ctx context.Context, tenantID string) ([]*model.Dish, error) {
	dishes, err := s.dishes.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("料理一覧の取得に失敗しました: %w", err)
	}
	return dishes, nil
}

// Create は料理を作成する。name, price, categoryは必須。
func (s *Service) Create(ctx context.Context, tenantID string, in DishInput) (*model.Dish, error) {
	if err := s.validate.Struct(&in); err != nil {
		return nil, model.NewInvalidRequestError(describeValidation(err))
	}
	switch {
	case in.Name == nil || s.sanitizer.SanitizeText(*in.Name) == "":
		return nil, model.NewInvalidRequestError("name is required")
	case in.Price == nil:
		return nil, model.NewInvalidRequestError("price is required")
	case in.Category == nil:
		return nil, model.NewInvalidRequestError("category is required")
	}

	now := s.now()
	d := &model.Dish{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		IsAvailable: true,
		CreatedAt:   now,
	}
	if err := s.apply(d, in); err != nil {
		return nil, err
	}
	d.UpdatedAt = now

	if err := s.dishes.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("料理の作成に失敗しました: %w", err)
	}
	return d, nil
}

// Update は料理を部分更新する。
func (s *Service) Update(ctx context.Context, tenantID, dishID string, in DishInput) (*model.Dish, error) {
	if err := s.validate.Struct(&in); err != nil {
		return nil, model.NewInvalidRequestError(describeValidation(err))
	}

	d, err := s.owned(ctx, tenantID, dishID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(d, in); err != nil {
		return nil, err
	}
	d.UpdatedAt = s.now()

	if err := s.dishes.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("料理の更新に失敗しました: %w", err)
	}
	return d, nil
}

// Delete は料理を削除する。
func (s *Service) Delete(ctx context.Context, tenantID, dishID string) error {
	if _, err := s.owned(ctx, tenantID, dishID); err != nil {
		return err
	}
	if err := s.dishes.Delete(ctx, dishID); err != nil {
		return fmt.Errorf("料理の削除に失敗しました: %w", err)
	}
	return nil
}

// Toggle は料理の提供可否を反転する。
func (s *Service) Toggle(ctx context.Context, tenantID, dishID string) (*model.Dish, error) {
	d, err := s.owned(ctx, tenantID, dishID)
	if err != nil {
		return nil, err
	}
	d.IsAvailable = !d.IsAvailable
	d.UpdatedAt = s.now()

	if err := s.dishes.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("提供状態の更新に失敗しました: %w", err)
	}
	return d, nil
}

// PublicMenu はスラッグに対応する店舗の公開メニューを返す。
// 提供停止中の料理もisAvailable=falseとして含める。
func (s *Service) PublicMenu(ctx context.Context, slug string) (*PublicMenu, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	t, err := s.tenants.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	if t == nil {
		return nil, model.NewRestaurantNotFoundError(slug)
	}

	dishes, err := s.List(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return &PublicMenu{
		Restaurant: Restaurant{
			DisplayName: t.DisplayName,
			Slug:        t.Slug,
			Logo:        t.Logo,
			ThemeColor:  t.ThemeColor,
		},
		Dishes: dishes,
	}, nil
}

// owned はテナントが所有する料理を返す。存在しない場合と他テナントの料理はNotFoundになる。
func (s *Service) owned(ctx context.Context, tenantID, dishID string) (*model.Dish, error) {
	// UUID形式でないIDは存在し得ない
	if uuid.Validate(dishID) != nil {
		return nil, model.NewDishNotFoundError(dishID)
	}
	d, err := s.dishes.FindByID(ctx, dishID)
	if err != nil {
		return nil, fmt.Errorf("料理の取得に失敗しました: %w", err)
	}
	if d == nil || d.TenantID != tenantID {
		return nil, model.NewDishNotFoundError(dishID)
	}
	return d, nil
}

func (s *Service) apply(d *model.Dish, in DishInput) error {
	if in.Name != nil {
		if name := s.sanitizer.SanitizeText(*in.Name); name != "" {
			d.Name = name
		}
	}
	if in.Description != nil {
		d.Description = s.sanitizer.SanitizeText(*in.Description)
	}
	if in.Price != nil {
		d.Price = *in.Price
	}
	if in.Category != nil {
		d.Category = model.DishCategory(*in.Category)
	}
	if in.Image != nil {
		image := s.sanitizer.SanitizeURL(*in.Image)
		if image == "" && strings.TrimSpace(*in.Image) != "" {
			return model.NewInvalidRequestError("image must be an http or https URL")
		}
		d.Image = image
	}
	if in.IsAvailable != nil {
		d.IsAvailable = *in.IsAvailable
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid input"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.StructField()[:1]) + fe.StructField()[1:]
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gte":
		return field + " must not be negative"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
