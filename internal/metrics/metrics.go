// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 貸出サービス、ワーカー、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordLoanCreated()
	RecordLoanReturned(overdue bool)
	RecordLoanRejected(reason string)
	RecordFineAssessed(amount decimal.Decimal)
	RecordOperationLatency(operation string, duration time.Duration)
	SetOverdueLoans(count int, accrued decimal.Decimal)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loansCreated  prometheus.Counter
	loansReturned *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	finesAssessed prometheus.Counter
	opLatency     *prometheus.HistogramVec
	overdueLoans  prometheus.Gauge
	accruedFines  prometheus.Gauge
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loansCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libman_loans_created_total",
			Help: "貸出作成の合計数",
		}),
		loansReturned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libman_loans_returned_total",
			Help: "返却の合計数（延滞の有無別）",
		}, []string{"overdue"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libman_loan_rejections_total",
			Help: "業務ルールにより拒否された貸出・返却の数",
		}, []string{"reason"}),
		finesAssessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libman_fines_assessed_total",
			Help: "返却時に確定した延滞金の合計額",
		}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "libman_loan_operation_seconds",
			Help:    "貸出・返却トランザクションの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		overdueLoans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "libman_overdue_loans",
			Help: "直近の走査時点の延滞中の貸出数",
		}),
		accruedFines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "libman_accrued_fines",
			Help: "直近の走査時点の延滞中の貸出に発生している延滞金の合計額",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.loansCreated,
		c.loansReturned,
		c.rejections,
		c.finesAssessed,
		c.opLatency,
		c.overdueLoans,
		c.accruedFines,
		c.httpStatus,
	)

	return c
}

// RecordLoanCreated は貸出作成を記録する。
func (c *Collector) RecordLoanCreated() {
	c.loansCreated.Inc()
}

// RecordLoanReturned は返却を記録する。
func (c *Collector) RecordLoanReturned(overdue bool) {
	c.loansReturned.WithLabelValues(strconv.FormatBool(overdue)).Inc()
}

// RecordLoanRejected は業務ルール違反による拒否を記録する。
// reasonにはエラーコードを渡す。
func (c *Collector) RecordLoanRejected(reason string) {
	c.rejections.WithLabelValues(reason).Inc()
}

// RecordFineAssessed は確定した延滞金を加算する。
func (c *Collector) RecordFineAssessed(amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	c.finesAssessed.Add(amount.InexactFloat64())
}

// RecordOperationLatency はトランザクションの所要時間を記録する。
func (c *Collector) RecordOperationLatency(operation string, duration time.Duration) {
	c.opLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetOverdueLoans は延滞中の貸出数と発生中の延滞金を設定する。
func (c *Collector) SetOverdueLoans(count int, accrued decimal.Decimal) {
	c.overdueLoans.Set(float64(count))
	c.accruedFines.Set(accrued.InexactFloat64())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// worker単体起動時にメトリクスを公開するために使用する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

var _ MetricsCollector = (*Collector)(nil)
