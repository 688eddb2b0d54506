package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/menudigital/internal/metrics"
	"github.com/hitoshi/menudigital/internal/model"
	"github.com/hitoshi/menudigital/internal/repository"
)

// maxActivateAttempts は有効化時の楽観ロック競合に対する最大試行回数。
const maxActivateAttempts = 3

// ErrTenantVanished は遷移中にテナントが削除された場合に返される。
var ErrTenantVanished = errors.New("tenant no longer exists")

// MachineConfig はMachineの設定。
type MachineConfig struct {
	TrialPeriod time.Duration
	Metrics     metrics.MetricsCollector
	Logger      *slog.Logger
}

// Machine は購読状態の唯一の遷移ルールを実装する。
// ゲート、決済照合、期限切れスイープはいずれもこの型を経由して状態を変更する。
type Machine struct {
	repo    repository.TenantRepository
	trial   time.Duration
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewMachine はMachineを生成する。
func NewMachine(repo repository.TenantRepository, cfg MachineConfig) *Machine {
	if cfg.TrialPeriod <= 0 {
		cfg.TrialPeriod = DefaultTrialPeriod
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NopCollector{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Machine{
		repo:    repo,
		trial:   cfg.TrialPeriod,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// InitialGrant は新規テナントに無料トライアルを付与する。永続化は行わない。
func (m *Machine) InitialGrant(t *model.Tenant, now time.Time) {
	expiresAt := now.Add(m.trial)
	t.SubscriptionTier = model.TierFree
	t.SubscriptionStatus = model.StatusActive
	t.SubscriptionExpiresAt = &expiresAt
}

// IsLapsed はactiveの購読が有効期限を過ぎているかを返す。
func IsLapsed(t *model.Tenant, now time.Time) bool {
	return t.SubscriptionStatus == model.StatusActive &&
		t.SubscriptionExpiresAt != nil &&
		now.After(*t.SubscriptionExpiresAt)
}

// Evaluate は時間経過による遷移を評価する。
// activeかつ期限切れの場合のみexpiredへ遷移して永続化し、それ以外は書き込みを行わない。
// 競合した場合は再読み込みして1回だけ評価し直す。
func (m *Machine) Evaluate(ctx context.Context, t *model.Tenant, now time.Time) (*model.Tenant, error) {
	current := t
	for attempt := 0; attempt < 2; attempt++ {
		if !IsLapsed(current, now) {
			return current, nil
		}

		next := current.Clone()
		next.SubscriptionStatus = model.StatusExpired

		err := m.repo.Save(ctx, next)
		if err == nil {
			m.metrics.RecordSubscriptionExpiration()
			m.logger.Info("subscription expired",
				slog.String("tenant_id", next.ID),
				slog.String("tier", string(next.SubscriptionTier)),
				slog.Time("expires_at", *next.SubscriptionExpiresAt),
			)
			return next, nil
		}
		if !errors.Is(err, repository.ErrConcurrentUpdate) {
			return nil, fmt.Errorf("failed to persist expiry: %w", err)
		}

		current, err = m.reload(ctx, current.ID)
		if err != nil {
			return nil, err
		}
	}

	if IsLapsed(current, now) {
		return nil, fmt.Errorf("failed to persist expiry: %w", repository.ErrConcurrentUpdate)
	}
	return current, nil
}

// Activate はプランを有効化し、期限をnow+期間に設定して永続化する。
// 現在の状態（expired/inactiveを含む）に関わらず適用される。
// 競合した場合は最新の状態を読み直して再適用する。
func (m *Machine) Activate(ctx context.Context, t *model.Tenant, plan Plan, transactionRef string, now time.Time) (*model.Tenant, error) {
	current := t
	for attempt := 1; ; attempt++ {
		next := current.Clone()
		expiresAt := now.Add(plan.Duration)
		next.SubscriptionTier = plan.Tier
		next.SubscriptionStatus = model.StatusActive
		next.SubscriptionExpiresAt = &expiresAt
		if transactionRef != "" {
			ref := transactionRef
			next.LastTransactionRef = &ref
		}

		err := m.repo.Save(ctx, next)
		if err == nil {
			m.logger.Info("subscription activated",
				slog.String("tenant_id", next.ID),
				slog.String("tier", string(plan.Tier)),
				slog.Time("expires_at", expiresAt),
			)
			return next, nil
		}
		if !errors.Is(err, repository.ErrConcurrentUpdate) || attempt >= maxActivateAttempts {
			return nil, fmt.Errorf("failed to persist activation: %w", err)
		}

		m.logger.Warn("activation conflicted, retrying",
			slog.String("tenant_id", current.ID),
			slog.Int("attempt", attempt),
		)
		current, err = m.reload(ctx, current.ID)
		if err != nil {
			return nil, err
		}
	}
}

func (m *Machine) reload(ctx context.Context, id string) (*model.Tenant, error) {
	t, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload tenant: %w", err)
	}
	if t == nil {
		return nil, ErrTenantVanished
	}
	return t, nil
}
