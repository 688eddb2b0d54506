// Package model はドメインモデルを定義する。
package model

import "time"

// SubscriptionTier は購読プランの種別を表す。
type SubscriptionTier string

const (
	// TierFree は登録直後の無料トライアルプラン。
	TierFree SubscriptionTier = "free"
	// TierMonthly は月額プラン。
	TierMonthly SubscriptionTier = "monthly"
	// TierAnnual は年額プラン。
	TierAnnual SubscriptionTier = "annual"
)

// SubscriptionStatus は購読状態を表す。アクセス制御ゲートの判定に使用される。
type SubscriptionStatus string

const (
	// StatusActive は利用可能な状態。
	StatusActive SubscriptionStatus = "active"
	// StatusInactive は管理操作によってのみ到達する停止状態。
	StatusInactive SubscriptionStatus = "inactive"
	// StatusExpired は有効期限切れの状態。
	StatusExpired SubscriptionStatus = "expired"
)

// DefaultThemeColor はテーマカラー未指定時の既定値。
const DefaultThemeColor = "#4f46e5"

// Tenant はメニューと購読を所有するレストランアカウントを表す。
// SecretHashはJSONに出力されない。
type Tenant struct {
	ID                    string             `json:"identifier"`
	DisplayName           string             `json:"displayName"`
	Email                 string             `json:"emailAddress"`
	SecretHash            string             `json:"-"`
	Slug                  string             `json:"slug"`
	Logo                  string             `json:"logo"`
	ThemeColor            string             `json:"themeColor"`
	SubscriptionTier      SubscriptionTier   `json:"subscriptionTier"`
	SubscriptionStatus    SubscriptionStatus `json:"subscriptionStatus"`
	SubscriptionExpiresAt *time.Time         `json:"subscriptionExpiresAt"`
	LastTransactionRef    *string            `json:"lastTransactionRef"`
	CreatedAt             time.Time          `json:"createdAt"`
	UpdatedAt             time.Time          `json:"updatedAt"`

	// Version は楽観的排他制御用のカウンタ。保存のたびにストアが加算する。
	Version int `json:"-"`
}

// IsActive は購読状態がactiveかどうかを返す。
func (t *Tenant) IsActive() bool {
	return t.SubscriptionStatus == StatusActive
}

// Clone はTenantのディープコピーを返す。
// ポインタフィールドを共有しないため、状態遷移前の値を安全に保持できる。
func (t *Tenant) Clone() *Tenant {
	c := *t
	if t.SubscriptionExpiresAt != nil {
		v := *t.SubscriptionExpiresAt
		c.SubscriptionExpiresAt = &v
	}
	if t.LastTransactionRef != nil {
		v := *t.LastTransactionRef
		c.LastTransactionRef = &v
	}
	return &c
}
