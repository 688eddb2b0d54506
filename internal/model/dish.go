package model

import "time"

// Dish はテナントのメニューに掲載される料理を表す。
type Dish struct {
	ID          string       `json:"identifier"`
	TenantID    string       `json:"tenantId"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Price       int64        `json:"price"` // 最小通貨単位
	Category    DishCategory `json:"category"`
	IsAvailable bool         `json:"isAvailable"`
	Image       string       `json:"image"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// DishCategory は料理のカテゴリを表す。
type DishCategory string

const (
	// CategoryStarter は前菜。
	CategoryStarter DishCategory = "starter"
	// CategoryMain はメインディッシュ。
	CategoryMain DishCategory = "main"
	// CategoryDessert はデザート。
	CategoryDessert DishCategory = "dessert"
	// CategoryDrink は飲み物。
	CategoryDrink DishCategory = "drink"
)

// Valid はカテゴリが定義済みの値かどうかを返す。
func (c DishCategory) Valid() bool {
	switch c {
	case CategoryStarter, CategoryMain, CategoryDessert, CategoryDrink:
		return true
	default:
		return false
	}
}
