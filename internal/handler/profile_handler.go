package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/menudigital/internal/model"
	"github.com/hitoshi/menudigital/internal/tenant"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	GetProfile(ctx context.Context, tenantID string) (*model.Tenant, error)
	// UpdateProfile はプロフィールを更新し、新しいトークンを発行する。
	UpdateProfile(ctx context.Context, tenantID string, in tenant.ProfileUpdate) (*tenant.AuthResult, error)
}

// ProfileHandler はテナントプロフィールのHTTPハンドラー。
// 購読が失効していてもアクセスできるルートに配置される。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// GetProfile は認証済みテナントのプロフィールを返す。
// GET /api/users/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r)
	if !ok {
		return
	}

	t, err := h.service.GetProfile(r.Context(), tenantID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// UpdateProfile は認証済みテナントのプロフィールを更新する。
// PUT /api/users/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r)
	if !ok {
		return
	}

	var in tenant.ProfileUpdate
	if !decodeJSON(w, r, &in) {
		return
	}

	result, err := h.service.UpdateProfile(r.Context(), tenantID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
