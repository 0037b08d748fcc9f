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
	"github.com/shopspring/decimal"
)

func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
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

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordLoanCreated_IncrementsCounter は貸出作成カウンタが増加することを検証する。
func TestRecordLoanCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoanCreated()
	c.RecordLoanCreated()

	mf := findFamily(t, reg, "libman_loans_created_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 2 {
		t.Errorf("loans_created_total = %v, want 2", val)
	}
}

// TestRecordLoanReturned_LabelsByOverdue は返却カウンタが延滞有無のラベル付きで増加することを検証する。
func TestRecordLoanReturned_LabelsByOverdue(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoanReturned(true)
	c.RecordLoanReturned(false)
	c.RecordLoanReturned(false)

	mf := findFamily(t, reg, "libman_loans_returned_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		label := m.GetLabel()[0].GetValue()
		val := m.GetCounter().GetValue()
		switch label {
		case "true":
			if val != 1 {
				t.Errorf("overdue=true = %v, want 1", val)
			}
		case "false":
			if val != 2 {
				t.Errorf("overdue=false = %v, want 2", val)
			}
		default:
			t.Errorf("unexpected label value: %s", label)
		}
	}
}

// TestRecordLoanRejected_LabelsByReason は拒否理由ごとにカウントされることを検証する。
func TestRecordLoanRejected_LabelsByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoanRejected("BOOK_UNAVAILABLE")
	c.RecordLoanRejected("AGE_TOO_LOW")
	c.RecordLoanRejected("BOOK_UNAVAILABLE")

	mf := findFamily(t, reg, "libman_loan_rejections_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	if got["BOOK_UNAVAILABLE"] != 2 || got["AGE_TOO_LOW"] != 1 {
		t.Errorf("unexpected rejections: %v", got)
	}
}

// TestRecordFineAssessed_AddsAmount は延滞金の合計額が加算され、0は無視されることを検証する。
func TestRecordFineAssessed_AddsAmount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFineAssessed(decimal.RequireFromString("12.50"))
	c.RecordFineAssessed(decimal.Zero)
	c.RecordFineAssessed(decimal.RequireFromString("2.50"))

	mf := findFamily(t, reg, "libman_fines_assessed_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 15 {
		t.Errorf("fines_assessed_total = %v, want 15", val)
	}
}

// TestSetOverdueLoans_SetsGauges は延滞ゲージが上書きされることを検証する。
func TestSetOverdueLoans_SetsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetOverdueLoans(10, decimal.RequireFromString("100"))
	c.SetOverdueLoans(3, decimal.RequireFromString("7.5"))

	if val := findFamily(t, reg, "libman_overdue_loans").GetMetric()[0].GetGauge().GetValue(); val != 3 {
		t.Errorf("overdue_loans = %v, want 3", val)
	}
	if val := findFamily(t, reg, "libman_accrued_fines").GetMetric()[0].GetGauge().GetValue(); val != 7.5 {
		t.Errorf("accrued_fines = %v, want 7.5", val)
	}
}

// TestRecordOperationLatency_ObservesHistogram は所要時間のヒストグラムに値が記録されることを検証する。
func TestRecordOperationLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOperationLatency("create", 100*time.Millisecond)
	c.RecordOperationLatency("create", 2*time.Second)

	h := findFamily(t, reg, "libman_loan_operation_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	// 合計は0.1 + 2.0 = 2.1秒
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	mf := findFamily(t, reg, "libman_http_status_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoanCreated()
	c.RecordLoanReturned(false)
	c.RecordLoanRejected("AGE_TOO_LOW")
	c.RecordHTTPStatus(200)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	for _, metric := range []string{
		"libman_loans_created_total",
		"libman_loans_returned_total",
		"libman_loan_rejections_total",
		"libman_http_status_total",
		"libman_overdue_loans",
	} {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordLoanCreated()
	c2.RecordLoanCreated()
	c2.RecordLoanCreated()

	val1 := findFamily(t, reg1, "libman_loans_created_total").GetMetric()[0].GetCounter().GetValue()
	val2 := findFamily(t, reg2, "libman_loans_created_total").GetMetric()[0].GetCounter().GetValue()

	if val1 != 1 {
		t.Errorf("reg1 loans_created = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 loans_created = %v, want 2", val2)
	}
}
