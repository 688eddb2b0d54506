package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/menudigital/internal/menu"
)

// PublicMenuServiceInterface は公開メニューハンドラーが必要とするサービスインターフェース。
type PublicMenuServiceInterface interface {
	PublicMenu(ctx context.Context, slug string) (*menu.PublicMenu, error)
}

// MenuHandler は認証不要の公開メニューHTTPハンドラー。
type MenuHandler struct {
	service PublicMenuServiceInterface
}

// NewMenuHandler はMenuHandlerを生成する。
func NewMenuHandler(service PublicMenuServiceInterface) *MenuHandler {
	return &MenuHandler{service: service}
}

// GetMenu はスラッグで指定された店舗の公開メニューを返す。
// GET /api/menus/{slug}
func (h *MenuHandler) GetMenu(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.PublicMenu(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}
