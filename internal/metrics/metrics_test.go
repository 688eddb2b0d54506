package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily は収集済みメトリクスから名前で検索する。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// counterWithLabel はラベル値が一致するカウンタの値を返す。
func counterWithLabel(mf *dto.MetricFamily, label, value string) float64 {
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return -1
}

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordGateDecision_LabelsByOutcome は判定結果ごとにカウンタが分かれることを検証する。
func TestRecordGateDecision_LabelsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGateDecision(GateAdmitted)
	c.RecordGateDecision(GateAdmitted)
	c.RecordGateDecision(GateSubscriptionRequired)

	mf := findMetricFamily(t, reg, "menudigital_gate_decisions_total")
	if got := counterWithLabel(mf, "outcome", GateAdmitted); got != 2 {
		t.Errorf("admitted = %v, want 2", got)
	}
	if got := counterWithLabel(mf, "outcome", GateSubscriptionRequired); got != 1 {
		t.Errorf("subscription_required = %v, want 1", got)
	}
}

func TestRecordReconciliation_LabelsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordReconciliation(ReconcileActivated)
	c.RecordReconciliation(ReconcileVerificationFailed)

	mf := findMetricFamily(t, reg, "menudigital_reconciliations_total")
	if got := counterWithLabel(mf, "outcome", ReconcileActivated); got != 1 {
		t.Errorf("activated = %v, want 1", got)
	}
	if got := counterWithLabel(mf, "outcome", ReconcileVerificationFailed); got != 1 {
		t.Errorf("verification_failed = %v, want 1", got)
	}
}

func TestRecordGatewayLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGatewayLatency(150 * time.Millisecond)

	mf := findMetricFamily(t, reg, "menudigital_gateway_latency_seconds")
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", h.GetSampleCount())
	}
	if h.GetSampleSum() < 0.149 || h.GetSampleSum() > 0.151 {
		t.Errorf("sample sum = %v, want ~0.15", h.GetSampleSum())
	}
}

func TestRecordSubscriptionExpiration_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSubscriptionExpiration()
	c.RecordSubscriptionExpiration()
	c.RecordSubscriptionExpiration()

	mf := findMetricFamily(t, reg, "menudigital_subscription_expirations_total")
	if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 3 {
		t.Errorf("expirations = %v, want 3", got)
	}
}

func TestRecordHTTPStatus_LabelsByStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(403)
	c.RecordHTTPStatus(403)

	mf := findMetricFamily(t, reg, "menudigital_http_status_total")
	if got := counterWithLabel(mf, "status_code", "403"); got != 2 {
		t.Errorf("403 = %v, want 2", got)
	}
}

// TestHandler_ServesMetrics はスクレイプ用ハンドラーがメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordGateDecision(GateAdmitted)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "menudigital_gate_decisions_total") {
		t.Error("response should contain menudigital_gate_decisions_total metric")
	}
}
