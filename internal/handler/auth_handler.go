package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/menudigital/internal/tenant"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Register はテナントを登録し、無料トライアルを付与してトークンを発行する。
	Register(ctx context.Context, in tenant.RegisterInput) (*tenant.AuthResult, error)
	// Login は資格情報を検証してトークンを発行する。
	Login(ctx context.Context, in tenant.LoginInput) (*tenant.AuthResult, error)
}

// AuthHandler は登録とログインのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// Register はテナントを新規登録する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in tenant.RegisterInput
	if !decodeJSON(w, r, &in) {
		return
	}

	result, err := h.service.Register(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// Login はメールアドレスとパスワードでログインする。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in tenant.LoginInput
	if !decodeJSON(w, r, &in) {
		return
	}

	result, err := h.service.Login(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
