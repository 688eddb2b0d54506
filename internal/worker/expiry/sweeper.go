// Package expiry は有効期限切れ購読のバックグラウンドスイープを提供する。
// ゲートはリクエスト時に期限切れを遷移させるが、アクセスのないテナントの状態も
// 定期的にexpiredへ揃えることで、ストア上の状態と集計を一致させる。
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/menudigital/internal/model"
)

const (
	defaultBatchSize      = 500
	defaultMaxConcurrency = 4
)

// TenantLister は期限切れ候補のテナントを取得するインターフェース。
type TenantLister interface {
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]*model.Tenant, error)
}

// StatusEvaluator は時間経過による購読状態の遷移を評価する。
type StatusEvaluator interface {
	Evaluate(ctx context.Context, t *model.Tenant, now time.Time) (*model.Tenant, error)
}

// Config はSweeperの設定。
type Config struct {
	BatchSize      int
	MaxConcurrency int
	Now            func() time.Time
	Logger         *slog.Logger
}

// Sweeper は期限切れテナントをexpiredへ遷移させるジョブ。
// 状態遷移は必ずStatusEvaluatorを経由するため、ゲートと同じ規則で判定される。
type Sweeper struct {
	tenants        TenantLister
	evaluator      StatusEvaluator
	batchSize      int
	maxConcurrency int
	now            func() time.Time
	logger         *slog.Logger
}

// NewSweeper はSweeperを生成する。
func NewSweeper(tenants TenantLister, evaluator StatusEvaluator, cfg Config) *Sweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Sweeper{
		tenants:        tenants,
		evaluator:      evaluator,
		batchSize:      cfg.BatchSize,
		maxConcurrency: cfg.MaxConcurrency,
		now:            cfg.Now,
		logger:         cfg.Logger,
	}
}

// Start はinterval間隔でスイープを実行する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("expiry sweeper started",
		slog.Duration("interval", interval),
		slog.Int("batch_size", s.batchSize),
	)

	s.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Sweeper) runAndLog(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("expiry sweep failed", slog.String("error", err.Error()))
	}
}

// RunOnce は期限切れ候補をバッチ単位で取得し、並列で評価する。
// 遷移させた件数を返す。個々のテナントの失敗はログに記録して継続する。
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	now := s.now()

	var expired, failed atomic.Int64
	for {
		candidates, err := s.tenants.ListExpirable(ctx, now, s.batchSize)
		if err != nil {
			return int(expired.Load()), fmt.Errorf("failed to list expirable tenants: %w", err)
		}
		if len(candidates) == 0 {
			break
		}

		before := expired.Load()
		s.evaluateBatch(ctx, candidates, now, &expired, &failed)

		// 1件も遷移できなかった場合は同じ候補を取り続けるため打ち切る
		if len(candidates) < s.batchSize || expired.Load() == before {
			break
		}
		if err := ctx.Err(); err != nil {
			return int(expired.Load()), err
		}
	}

	s.logger.Info("expiry sweep completed",
		slog.Int64("expired_count", expired.Load()),
		slog.Int64("failed_count", failed.Load()),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return int(expired.Load()), nil
}

func (s *Sweeper) evaluateBatch(ctx context.Context, tenants []*model.Tenant, now time.Time, expired, failed *atomic.Int64) {
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, t := range tenants {
		wg.Add(1)
		sem <- struct{}{}

		go func(t *model.Tenant) {
			defer wg.Done()
			defer func() { <-sem }()

			updated, err := s.evaluator.Evaluate(ctx, t, now)
			if err != nil {
				failed.Add(1)
				s.logger.Error("failed to expire subscription",
					slog.String("tenant_id", t.ID),
					slog.String("error", err.Error()),
				)
				return
			}
			if updated.SubscriptionStatus == model.StatusExpired {
				expired.Add(1)
			}
		}(t)
	}

	wg.Wait()
}
