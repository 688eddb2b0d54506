package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/menudigital/internal/access"
	"github.com/hitoshi/menudigital/internal/metrics"
	"github.com/hitoshi/menudigital/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	Gate              middleware.Authorizer
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証・プロフィール
	AuthService    AuthServiceInterface
	ProfileService ProfileServiceInterface

	// メニュー
	DishService DishServiceInterface
	MenuService PublicMenuServiceInterface

	// 決済
	PaymentReconciler PaymentReconcilerInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Metrics → Recovery → SecurityHeaders → CORS
//
// 保護ルートはさらに Gate(ルート種別) → RateLimit を通過する。
// ゲートに渡すルート種別は登録時に固定され、リクエストの内容からは導出しない。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	profileHandler := NewProfileHandler(deps.ProfileService)
	dishHandler := NewDishHandler(deps.DishService)
	menuHandler := NewMenuHandler(deps.MenuService)
	paymentHandler := NewPaymentHandler(deps.PaymentReconciler)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 登録・ログイン（IP単位のレート制限）
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// 公開メニュー
	r.Get("/api/menus/{slug}", menuHandler.GetMenu)

	// --- 認証が必要なルート ---

	// プロフィール（購読失効中も許可）
	r.Route("/api/users/profile", func(r chi.Router) {
		r.With(
			middleware.NewGateMiddleware(deps.Gate, access.RouteProfileRead),
			deps.RateLimiter.GeneralMiddleware(),
		).Get("/", profileHandler.GetProfile)
		r.With(
			middleware.NewGateMiddleware(deps.Gate, access.RouteProfileUpdate),
			deps.RateLimiter.GeneralMiddleware(),
		).Put("/", profileHandler.UpdateProfile)
	})

	// 決済検証（購読失効中も許可、専用レート制限を追加）
	r.With(
		middleware.NewGateMiddleware(deps.Gate, access.RoutePaymentVerification),
		deps.RateLimiter.GeneralMiddleware(),
		deps.RateLimiter.PaymentMiddleware(),
	).Post("/api/payments/verify", paymentHandler.Verify)

	// 料理管理（有効な購読が必要）
	r.Route("/api/dishes", func(r chi.Router) {
		r.Use(middleware.NewGateMiddleware(deps.Gate, access.RouteStandard))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/", dishHandler.ListDishes)
		r.Post("/", dishHandler.CreateDish)

		r.Route("/{id}", func(r chi.Router) {
			r.Put("/", dishHandler.UpdateDish)
			r.Delete("/", dishHandler.DeleteDish)
			r.Patch("/toggle", dishHandler.ToggleDish)
		})
	})

	return r
}
