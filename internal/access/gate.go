package access

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/menudigital/internal/metrics"
	"github.com/hitoshi/menudigital/internal/model"
	"github.com/hitoshi/menudigital/internal/subscription"
)

// TokenVerifier はベアラートークンを検証してテナントIDを返す。
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// TenantFinder はIDでテナントを読み込む。見つからない場合はnilを返す。
type TenantFinder interface {
	FindByID(ctx context.Context, id string) (*model.Tenant, error)
}

// StatusEvaluator は時間経過による購読状態の遷移を評価する。
type StatusEvaluator interface {
	Evaluate(ctx context.Context, t *model.Tenant, now time.Time) (*model.Tenant, error)
}

// GateConfig はGateの設定。
type GateConfig struct {
	Now     func() time.Time
	Metrics metrics.MetricsCollector
	Logger  *slog.Logger
}

// Gate は保護されたルートの前段で実行されるアクセス制御判定。
type Gate struct {
	tokens    TokenVerifier
	tenants   TenantFinder
	evaluator StatusEvaluator
	now       func() time.Time
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewGate はGateを生成する。
func NewGate(tokens TokenVerifier, tenants TenantFinder, evaluator StatusEvaluator, cfg GateConfig) *Gate {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NopCollector{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gate{
		tokens:    tokens,
		tenants:   tenants,
		evaluator: evaluator,
		now:       cfg.Now,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Authorize はAuthorizationヘッダーと対象ルートから入場可否を判定する。
// 戻り値はテナントとエラーのどちらか一方だけが必ず非nilになる。
//
// 判定順序:
//  1. ベアラートークンの取り出し
//  2. トークン検証
//  3. テナントの読み込み
//  4. 購読状態の評価（遷移があれば永続化）
//  5. ルート例外ポリシーの適用
func (g *Gate) Authorize(ctx context.Context, authorization string, route Capability) (*model.Tenant, *model.APIError) {
	token, ok := ExtractBearer(authorization)
	if !ok {
		return g.reject(metrics.GateUnauthenticated, model.NewMissingCredentialError())
	}

	tenantID, err := g.tokens.Verify(token)
	if err != nil {
		return g.reject(metrics.GateUnauthenticated, model.NewInvalidCredentialError())
	}

	tenant, err := g.tenants.FindByID(ctx, tenantID)
	if err != nil {
		g.logger.Error("gate failed to load tenant",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		return g.reject(metrics.GateUnavailable, model.NewServiceUnavailableError())
	}
	if tenant == nil {
		return g.reject(metrics.GateUnauthenticated, model.NewStaleCredentialError())
	}

	tenant, err = g.evaluator.Evaluate(ctx, tenant, g.now())
	if err != nil {
		if errors.Is(err, subscription.ErrTenantVanished) {
			return g.reject(metrics.GateUnauthenticated, model.NewStaleCredentialError())
		}
		g.logger.Error("gate failed to evaluate subscription",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		return g.reject(metrics.GateUnavailable, model.NewServiceUnavailableError())
	}

	if !tenant.IsActive() && !route.AllowsLapsedSubscription() {
		return g.reject(metrics.GateSubscriptionRequired, model.NewSubscriptionRequiredError(tenant.SubscriptionStatus))
	}

	g.metrics.RecordGateDecision(metrics.GateAdmitted)
	return tenant, nil
}

func (g *Gate) reject(outcome string, apiErr *model.APIError) (*model.Tenant, *model.APIError) {
	g.metrics.RecordGateDecision(outcome)
	return nil, apiErr
}

// ExtractBearer はAuthorizationヘッダーからベアラートークンを取り出す。
// スキームは大文字小文字を区別しない。トークンが空または空白を含む場合はfalseを返す。
func ExtractBearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
