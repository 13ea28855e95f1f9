// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 在室エンジン、メッセージルーター、スイーパー、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordJoin()
	RecordJoinConflict()
	RecordExpiration()
	RecordMessageSent(messageType string)
	RecordSweep(duration time.Duration, expired, failed int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	joins         prometheus.Counter
	joinConflicts prometheus.Counter
	expirations   prometheus.Counter
	messagesSent  *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	sweepFailures prometheus.Counter
	httpStatus    *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batepapo_joins_total",
			Help: "入室成功の合計数",
		}),
		joinConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batepapo_join_conflicts_total",
			Help: "名前の競合により拒否された入室の合計数",
		}),
		expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batepapo_expirations_total",
			Help: "無応答により退室させた参加者の合計数",
		}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batepapo_messages_sent_total",
			Help: "種別ごとの送信メッセージ数",
		}, []string{"type"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "batepapo_sweep_duration_seconds",
			Help:    "スイープ1回あたりの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batepapo_sweep_failures_total",
			Help: "スイープ中に退室処理が失敗した件数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batepapo_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.joins,
		c.joinConflicts,
		c.expirations,
		c.messagesSent,
		c.sweepDuration,
		c.sweepFailures,
		c.httpStatus,
	)

	return c
}

// RecordJoin は入室成功を記録する。
func (c *Collector) RecordJoin() {
	c.joins.Inc()
}

// RecordJoinConflict は名前競合による入室拒否を記録する。
func (c *Collector) RecordJoinConflict() {
	c.joinConflicts.Inc()
}

// RecordExpiration は退室処理を記録する。
func (c *Collector) RecordExpiration() {
	c.expirations.Inc()
}

// RecordMessageSent は送信メッセージを種別ごとに記録する。
func (c *Collector) RecordMessageSent(messageType string) {
	c.messagesSent.WithLabelValues(messageType).Inc()
}

// RecordSweep はスイープ1回分の結果を記録する。
// 退室件数はRecordExpirationで記録されるため、ここでは失敗件数のみ加算する。
func (c *Collector) RecordSweep(duration time.Duration, expired, failed int) {
	c.sweepDuration.Observe(duration.Seconds())
	c.sweepFailures.Add(float64(failed))
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
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
