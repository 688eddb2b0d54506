// Package payment は決済ゲートウェイとの照合による購読の有効化を提供する。
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// StatusSuccess はゲートウェイが決済完了を示すステータス値。
const StatusSuccess = "SUCCESS"

// defaultGatewayTimeout はゲートウェイ呼び出しの既定のタイムアウト。
const defaultGatewayTimeout = 10 * time.Second

// ErrGateway はゲートウェイに到達できない、またはエラー応答が返された場合に返される。
var ErrGateway = errors.New("payment gateway error")

// Customer は取引の支払者情報。
type Customer struct {
	Email string `json:"email"`
}

// Transaction はゲートウェイが返す取引レコード。
type Transaction struct {
	Status   string   `json:"status"`
	Amount   float64  `json:"amount"`
	Customer Customer `json:"customer"`
}

// Gateway は外部決済ゲートウェイの取引参照を抽象化する。
type Gateway interface {
	LookupTransaction(ctx context.Context, ref string) (*Transaction, error)
}

// KkiapayConfig はKkiapayClientの設定。
type KkiapayConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// KkiapayClient はKkiapayの取引参照APIのクライアント。
// 自動リトライは行わない。再試行は呼び出し元がリクエスト単位で判断する。
type KkiapayClient struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewKkiapayClient はKkiapayClientを生成する。
func NewKkiapayClient(cfg KkiapayConfig, logger *slog.Logger) *KkiapayClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGatewayTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("x-api-key", cfg.APIKey)

	return &KkiapayClient{http: client, logger: logger}
}

// LookupTransaction は取引参照IDで取引レコードを取得する。
// 通信失敗と2xx以外の応答はErrGatewayでラップして返す。
func (c *KkiapayClient) LookupTransaction(ctx context.Context, ref string) (*Transaction, error) {
	var tx Transaction
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&tx).
		Get("/api/v1/transactions/" + url.PathEscape(ref))
	if err != nil {
		c.logger.Error("payment gateway call failed",
			slog.String("transaction_ref", ref),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	if resp.IsError() {
		c.logger.Error("payment gateway returned error status",
			slog.String("transaction_ref", ref),
			slog.Int("http_status", resp.StatusCode()),
		)
		return nil, fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode())
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrGateway, resp.StatusCode())
	}

	return &tx, nil
}

// compile-time interface check
var _ Gateway = (*KkiapayClient)(nil)
