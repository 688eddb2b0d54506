// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ゲート判定の結果ラベル
const (
	GateAdmitted             = "admitted"
	GateUnauthenticated      = "unauthenticated"
	GateSubscriptionRequired = "subscription_required"
	GateUnavailable          = "unavailable"
)

// 決済照合の結果ラベル
const (
	ReconcileActivated          = "activated"
	ReconcileVerificationFailed = "verification_failed"
	ReconcileGatewayError       = "gateway_error"
	ReconcileStoreError         = "store_error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// アクセス制御ゲート、決済照合、期限切れスイープ、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordGateDecision(outcome string)
	RecordReconciliation(outcome string)
	RecordGatewayLatency(duration time.Duration)
	RecordSubscriptionExpiration()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	gateDecisions   *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	gatewayLatency  prometheus.Histogram
	expirations     prometheus.Counter
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "menudigital_gate_decisions_total",
			Help: "アクセス制御ゲートの判定結果別の合計数",
		}, []string{"outcome"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "menudigital_reconciliations_total",
			Help: "決済照合の結果別の合計数",
		}, []string{"outcome"}),
		gatewayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "menudigital_gateway_latency_seconds",
			Help:    "決済ゲートウェイ問い合わせのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "menudigital_subscription_expirations_total",
			Help: "active から expired に遷移した購読の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "menudigital_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.gateDecisions,
		c.reconciliations,
		c.gatewayLatency,
		c.expirations,
		c.httpStatus,
	)

	return c
}

// RecordGateDecision はゲートの判定結果を記録する。
func (c *Collector) RecordGateDecision(outcome string) {
	c.gateDecisions.WithLabelValues(outcome).Inc()
}

// RecordReconciliation は決済照合の結果を記録する。
func (c *Collector) RecordReconciliation(outcome string) {
	c.reconciliations.WithLabelValues(outcome).Inc()
}

// RecordGatewayLatency はゲートウェイ問い合わせのレイテンシを記録する。
func (c *Collector) RecordGatewayLatency(duration time.Duration) {
	c.gatewayLatency.Observe(duration.Seconds())
}

// RecordSubscriptionExpiration は購読の期限切れ遷移を記録する。
func (c *Collector) RecordSubscriptionExpiration() {
	c.expirations.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクスを必要としない構成やテストで使用する。
type NopCollector struct{}

func (NopCollector) RecordGateDecision(string) {}
func (NopCollector) RecordReconciliation(string) {}
func (NopCollector) RecordGatewayLatency(time.Duration) {}
func (NopCollector) RecordSubscriptionExpiration() {}
func (NopCollector) RecordHTTPStatus(int) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
