package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, subscription, validation, payment, menu, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated      = "UNAUTHENTICATED"
	ErrCodeSubscriptionRequired = "SUBSCRIPTION_REQUIRED"
	ErrCodeConflict             = "CONFLICT"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeGatewayError         = "GATEWAY_ERROR"
	ErrCodeVerificationFailed   = "VERIFICATION_FAILED"
	ErrCodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// IsAPIErrorCode はerrがcodeを持つAPIErrorかどうかを返す。
func IsAPIErrorCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// NewMissingCredentialError は認証情報が付与されていない場合のエラーを生成する。
func NewMissingCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証トークンがありません。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialError はトークンが無効または期限切れの場合のエラーを生成する。
func NewInvalidCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証トークンが無効です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewStaleCredentialError はトークンが参照するテナントが存在しない場合のエラーを生成する。
func NewStaleCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "トークンに対応するアカウントが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewBadLoginError はメールアドレスまたはパスワードが一致しない場合のエラーを生成する。
func NewBadLoginError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewSubscriptionRequiredError は購読が有効でない場合のエラーを生成する。
func NewSubscriptionRequiredError(status SubscriptionStatus) *APIError {
	msg := "購読が有効ではありません。"
	if status == StatusExpired {
		msg = "購読の有効期限が切れています。"
	}
	return &APIError{
		Code:     ErrCodeSubscriptionRequired,
		Message:  msg,
		Category: "subscription",
		Action:   "プランを購入して購読を有効にしてください。",
	}
}

// NewEmailTakenError はメールアドレスが既に登録済みの場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  "このメールアドレスは既に使用されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewSlugTakenError は店舗名から生成したスラッグが既に使用されている場合のエラーを生成する。
func NewSlugTakenError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  fmt.Sprintf("この店舗名のURLは既に使用されています: %s", slug),
		Category: "validation",
		Action:   "店舗名を変更して再度登録してください。",
	}
}

// NewInvalidRequestError は入力値が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUnknownTierError は価格表に存在しないプランが指定された場合のエラーを生成する。
func NewUnknownTierError(tier string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("無効なプランです: %s", tier),
		Category: "validation",
		Action:   "プランには monthly または annual を指定してください。",
	}
}

// NewTenantNotFoundError はテナントが見つからない場合のエラーを生成する。
func NewTenantNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "アカウントが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewRestaurantNotFoundError は公開メニューのスラッグに対応する店舗がない場合のエラーを生成する。
func NewRestaurantNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("店舗が見つかりません: %s", slug),
		Category: "menu",
		Action:   "URLを確認してください。",
	}
}

// NewDishNotFoundError は料理が見つからないか、他テナントの料理である場合のエラーを生成する。
func NewDishNotFoundError(dishID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定された料理が見つかりません: %s", dishID),
		Category: "menu",
		Action:   "料理IDを確認してください。",
	}
}

// NewGatewayError は決済ゲートウェイに到達できない、またはエラー応答を返した場合のエラーを生成する。
func NewGatewayError() *APIError {
	return &APIError{
		Code:     ErrCodeGatewayError,
		Message:  "決済サービスとの通信に失敗しました。",
		Category: "payment",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewVerificationFailedError は取引が有効化条件を満たさない場合のエラーを生成する。
func NewVerificationFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeVerificationFailed,
		Message:  fmt.Sprintf("決済の検証に失敗しました: %s", reason),
		Category: "payment",
		Action:   "取引IDとプランを確認してください。",
	}
}

// NewServiceUnavailableError はストアに到達できない場合のエラーを生成する。
func NewServiceUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeServiceUnavailable,
		Message:  "サービスが一時的に利用できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限を超えた場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は分類できない内部エラーを表す。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
