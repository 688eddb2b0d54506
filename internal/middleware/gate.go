// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/menudigital/internal/access"
	"github.com/hitoshi/menudigital/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// tenantContextKey はリクエストコンテキストに認証済みテナントを格納するためのキー。
var tenantContextKey = contextKey("tenant")

// Authorizer はアクセス制御ゲートの判定インターフェース。
// access.Gateが実装する。
type Authorizer interface {
	Authorize(ctx context.Context, authorization string, route access.Capability) (*model.Tenant, *model.APIError)
}

// NewGateMiddleware はAuthorizationヘッダーのベアラートークンをゲートで判定するミドルウェアを返す。
// routeはルート登録時に付与する例外ポリシーのタグ。
// 入場を許可されたテナントをリクエストコンテキストに注入する。
func NewGateMiddleware(gate Authorizer, route access.Capability) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant, apiErr := gate.Authorize(r.Context(), r.Header.Get("Authorization"), route)
			if apiErr != nil {
				if apiErr.Code == model.ErrCodeUnauthenticated {
					w.Header().Set("WWW-Authenticate", `Bearer realm="menudigital"`)
				}
				WriteAPIError(w, apiErr)
				return
			}
			annotateTenant(r.Context(), tenant.ID)
			next.ServeHTTP(w, r.WithContext(ContextWithTenant(r.Context(), tenant)))
		})
	}
}

// TenantFromContext はリクエストコンテキストから認証済みテナントを取得する。
// ゲートミドルウェアを通過したリクエストでのみ有効。
func TenantFromContext(ctx context.Context) (*model.Tenant, error) {
	t, ok := ctx.Value(tenantContextKey).(*model.Tenant)
	if !ok || t == nil {
		return nil, fmt.Errorf("tenant not found in context")
	}
	return t, nil
}

// TenantIDFromContext はリクエストコンテキストから認証済みテナントのIDを取得する。
func TenantIDFromContext(ctx context.Context) (string, error) {
	t, err := TenantFromContext(ctx)
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// ContextWithTenant はコンテキストにテナントを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithTenant(ctx context.Context, t *model.Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey, t)
}
