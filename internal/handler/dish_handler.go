package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/menudigital/internal/menu"
	"github.com/hitoshi/menudigital/internal/model"
)

// DishServiceInterface は料理ハンドラーが必要とするサービスインターフェース。
type DishServiceInterface interface {
	List(ctx context.Context, tenantID string) ([]*model.Dish, error)
	Create(ctx context.Context, tenantID string, in menu.DishInput) (*model.Dish, error)
	Update(ctx context.Context, tenantID, dishID string, in menu.DishInput) (*model.Dish, error)
	Delete(ctx context.Context, tenantID, dishID string) error
	// Toggle は料理の提供可否を反転する。
	Toggle(ctx context.Context, tenantID, dishID string) (*model.Dish, error)
}

// DishHandler は料理管理のHTTPハンドラー。
type DishHandler struct {
	service DishServiceInterface
}

// NewDishHandler はDishHandlerを生成する。
func NewDishHandler(service DishServiceInterface) *DishHandler {
	return &DishHandler{service: service}
}

// ListDishes は認証済みテナントの料理一覧を返す。
// GET /api/dishes
func (h *DishHandler) ListDishes(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r)
	if !ok {
		return
	}

	dishes, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dishes)
}

// CreateDish は料理を作成する。
// POST /api/dishes
func (h *DishHandler) CreateDish(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r)
	if !ok {
		return
	}

	var in menu.DishInput
	if !decodeJSON(w, r, &in) {
		return
	}

	dish, err := h.service.Create(r.Context(), tenantID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dish)
}

// UpdateDish は料理を部分更新する。
// PUT /api/dishes/{id}
func (h *DishHandler) UpdateDish(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r)
	if !ok {
		return
	}

	var in menu.DishInput
	if !decodeJSON(w, r, &in) {
		return
	}

	dish, err := h.service.Update(r.Context(), tenantID, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dish)
}

// DeleteDish は料理を削除する。
// DELETE /api/dishes/{id}
func (h *DishHandler) DeleteDish(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), tenantID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ToggleDish は料理の提供可否を切り替える。
// PATCH /api/dishes/{id}/toggle
func (h *DishHandler) ToggleDish(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r)
	if !ok {
		return
	}

	dish, err := h.service.Toggle(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dish)
}
