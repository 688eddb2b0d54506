// Package subscription は購読状態の状態機械と価格表を提供する。
package subscription

import (
	"strings"
	"time"

	"github.com/hitoshi/menudigital/internal/model"
)

// Plan は購入可能なプランの価格と期間を表す。
type Plan struct {
	Tier     model.SubscriptionTier
	Price    int64 // 最小通貨単位（XOF）
	Duration time.Duration
}

// 価格表。freeは購入できないため含まない。
var plans = map[model.SubscriptionTier]Plan{
	model.TierMonthly: {Tier: model.TierMonthly, Price: 3000, Duration: 30 * 24 * time.Hour},
	model.TierAnnual:  {Tier: model.TierAnnual, Price: 30000, Duration: 365 * 24 * time.Hour},
}

// LookupPlan は購入可能なプランを名前で検索する。大文字小文字は区別しない。
// 価格表にない場合（freeを含む）はfalseを返す。
func LookupPlan(name string) (Plan, bool) {
	p, ok := plans[model.SubscriptionTier(strings.ToLower(strings.TrimSpace(name)))]
	return p, ok
}

// DefaultTrialPeriod は登録直後に付与される無料期間。
const DefaultTrialPeriod = 7 * 24 * time.Hour
