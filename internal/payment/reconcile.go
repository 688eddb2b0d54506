package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/menudigital/internal/metrics"
	"github.com/hitoshi/menudigital/internal/model"
	"github.com/hitoshi/menudigital/internal/subscription"
)

// defaultReconcileTimeout は照合処理全体の既定のタイムアウト。
const defaultReconcileTimeout = 30 * time.Second

// TenantFinder はIDでテナントを読み込む。見つからない場合はnilを返す。
type TenantFinder interface {
	FindByID(ctx context.Context, id string) (*model.Tenant, error)
}

// Activator は購読の有効化を永続化する。
type Activator interface {
	Activate(ctx context.Context, t *model.Tenant, plan subscription.Plan, transactionRef string, now time.Time) (*model.Tenant, error)
}

// ActivationResult は照合成功後の購読状態。
type ActivationResult struct {
	SubscriptionTier      model.SubscriptionTier   `json:"subscriptionTier"`
	SubscriptionStatus    model.SubscriptionStatus `json:"subscriptionStatus"`
	SubscriptionExpiresAt *time.Time               `json:"subscriptionExpiresAt"`
	Tenant                *model.Tenant            `json:"-"`
}

// ReconcilerConfig はReconcilerの設定。
type ReconcilerConfig struct {
	Timeout time.Duration
	Now     func() time.Time
	Metrics metrics.MetricsCollector
	Logger  *slog.Logger
}

// Reconciler はゲートウェイの取引記録と突き合わせて購読を有効化する。
type Reconciler struct {
	tenants   TenantFinder
	gateway   Gateway
	activator Activator
	timeout   time.Duration
	now       func() time.Time
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewReconciler はReconcilerを生成する。
func NewReconciler(tenants TenantFinder, gateway Gateway, activator Activator, cfg ReconcilerConfig) *Reconciler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultReconcileTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NopCollector{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reconciler{
		tenants:   tenants,
		gateway:   gateway,
		activator: activator,
		timeout:   cfg.Timeout,
		now:       cfg.Now,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Reconcile は取引参照IDをゲートウェイで検証し、請求プランで購読を有効化する。
// 呼び出し元が切断しても検証済みの決済を記録できるよう、キャンセルは伝播させない。
// 失敗時のエラーは常に*model.APIErrorである。
func (r *Reconciler) Reconcile(ctx context.Context, tenantID, transactionRef, claimedTier string) (*ActivationResult, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	transactionRef = strings.TrimSpace(transactionRef)
	if transactionRef == "" {
		return nil, model.NewInvalidRequestError("transactionId is required")
	}

	tenant, err := r.tenants.FindByID(ctx, tenantID)
	if err != nil {
		r.logger.Error("reconcile failed to load tenant",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		r.metrics.RecordReconciliation(metrics.ReconcileStoreError)
		return nil, model.NewServiceUnavailableError()
	}
	if tenant == nil {
		return nil, model.NewTenantNotFoundError()
	}

	plan, ok := subscription.LookupPlan(claimedTier)
	if !ok {
		return nil, model.NewUnknownTierError(claimedTier)
	}

	start := time.Now()
	tx, err := r.gateway.LookupTransaction(ctx, transactionRef)
	r.metrics.RecordGatewayLatency(time.Since(start))
	if err != nil {
		r.logger.Warn("transaction lookup failed",
			slog.String("tenant_id", tenantID),
			slog.String("transaction_ref", transactionRef),
			slog.String("error", err.Error()),
		)
		r.metrics.RecordReconciliation(metrics.ReconcileGatewayError)
		return nil, model.NewGatewayError()
	}

	if reason := verify(tx, tenant, plan); reason != "" {
		r.logger.Warn("transaction rejected",
			slog.String("tenant_id", tenantID),
			slog.String("transaction_ref", transactionRef),
			slog.String("tier", string(plan.Tier)),
			slog.String("reason", reason),
		)
		r.metrics.RecordReconciliation(metrics.ReconcileVerificationFailed)
		return nil, model.NewVerificationFailedError(reason)
	}

	if tenant.LastTransactionRef != nil && *tenant.LastTransactionRef == transactionRef {
		r.logger.Warn("transaction reference reused",
			slog.String("tenant_id", tenantID),
			slog.String("transaction_ref", transactionRef),
		)
	}

	activated, err := r.activator.Activate(ctx, tenant, plan, transactionRef, r.now())
	if err != nil {
		r.logger.Error("failed to record verified payment",
			slog.String("tenant_id", tenantID),
			slog.String("transaction_ref", transactionRef),
			slog.String("error", err.Error()),
		)
		r.metrics.RecordReconciliation(metrics.ReconcileStoreError)
		if errors.Is(err, subscription.ErrTenantVanished) {
			return nil, model.NewTenantNotFoundError()
		}
		return nil, model.NewServiceUnavailableError()
	}

	r.metrics.RecordReconciliation(metrics.ReconcileActivated)
	return &ActivationResult{
		SubscriptionTier:      activated.SubscriptionTier,
		SubscriptionStatus:    activated.SubscriptionStatus,
		SubscriptionExpiresAt: activated.SubscriptionExpiresAt,
		Tenant:                activated,
	}, nil
}

// verify は取引が有効化条件をすべて満たすかを判定し、満たさない場合は理由を返す。
func verify(tx *Transaction, tenant *model.Tenant, plan subscription.Plan) string {
	switch {
	case tx.Status != StatusSuccess:
		return fmt.Sprintf("transaction status is %q", tx.Status)
	case tx.Amount < float64(plan.Price):
		return fmt.Sprintf("amount %.0f is below the %s price", tx.Amount, plan.Tier)
	case !strings.EqualFold(strings.TrimSpace(tx.Customer.Email), tenant.Email):
		return "payer email does not match the account"
	default:
		return ""
	}
}
