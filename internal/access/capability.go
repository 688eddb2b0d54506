// Package access はリクエスト単位のアクセス制御判定を提供する。
package access

// Capability はルート登録時に付与する、購読状態に対する例外ポリシーのタグ。
type Capability int

const (
	// RouteStandard は有効な購読を必要とする通常のルート。
	RouteStandard Capability = iota
	// RouteProfileRead はプロフィール参照。購読が切れていても許可する。
	RouteProfileRead
	// RouteProfileUpdate はプロフィール更新。購読が切れていても許可する。
	RouteProfileUpdate
	// RoutePaymentVerification は決済検証。購読を回復する唯一の手段のため許可する。
	RoutePaymentVerification
)

// String はログ出力用のルート種別名を返す。
func (c Capability) String() string {
	switch c {
	case RouteStandard:
		return "standard"
	case RouteProfileRead:
		return "profile_read"
	case RouteProfileUpdate:
		return "profile_update"
	case RoutePaymentVerification:
		return "payment_verification"
	default:
		return "unknown"
	}
}

// AllowsLapsedSubscription は有効でない購読のテナントにもこのルートを許可するかを返す。
// 未知の値は許可しない。
func (c Capability) AllowsLapsedSubscription() bool {
	switch c {
	case RouteProfileRead, RouteProfileUpdate, RoutePaymentVerification:
		return true
	default:
		return false
	}
}
