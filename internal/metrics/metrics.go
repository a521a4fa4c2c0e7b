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
// APIクライアント、カートコントローラー、チャット同期ループから利用する。
type MetricsCollector interface {
	RecordAPIRequest(method string, statusCode int, duration time.Duration)
	RecordPollTick(loop string)
	RecordPollFailure(loop string)
	RecordCartMutation(op string, ok bool)
	RecordChatSend(ok bool)
	RecordReportGenerated(productCount int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiRequests    *prometheus.CounterVec
	apiLatency     prometheus.Histogram
	pollTicks      *prometheus.CounterVec
	pollFailures   *prometheus.CounterVec
	cartMutations  *prometheus.CounterVec
	chatSends      *prometheus.CounterVec
	reports        prometheus.Counter
	reportProducts prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guestdesk_api_requests_total",
			Help: "バックエンドAPIリクエスト数（メソッド・ステータス別）",
		}, []string{"method", "status_code"}),
		apiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "guestdesk_api_latency_seconds",
			Help:    "バックエンドAPIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guestdesk_poll_ticks_total",
			Help: "ポーリングループの実行回数",
		}, []string{"loop"}),
		pollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guestdesk_poll_failures_total",
			Help: "ポーリングの失敗回数",
		}, []string{"loop"}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guestdesk_cart_mutations_total",
			Help: "カート操作の回数（操作・結果別）",
		}, []string{"op", "result"}),
		chatSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guestdesk_chat_sends_total",
			Help: "チャットメッセージ送信の回数（結果別）",
		}, []string{"result"}),
		reports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guestdesk_reports_generated_total",
			Help: "生成したレポートの合計数",
		}),
		reportProducts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "guestdesk_report_products",
			Help: "直近のレポートに含まれる商品数",
		}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.pollTicks,
		c.pollFailures,
		c.cartMutations,
		c.chatSends,
		c.reports,
		c.reportProducts,
	)

	return c
}

// RecordAPIRequest はAPIリクエストの結果を記録する。
// レスポンスを受信できなかった場合のstatusCodeは0。
func (c *Collector) RecordAPIRequest(method string, statusCode int, duration time.Duration) {
	c.apiRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.apiLatency.Observe(duration.Seconds())
}

// RecordPollTick はポーリングの実行を記録する。
func (c *Collector) RecordPollTick(loop string) {
	c.pollTicks.WithLabelValues(loop).Inc()
}

// RecordPollFailure はポーリングの失敗を記録する。
func (c *Collector) RecordPollFailure(loop string) {
	c.pollFailures.WithLabelValues(loop).Inc()
}

// RecordCartMutation はカート操作の結果を記録する。
func (c *Collector) RecordCartMutation(op string, ok bool) {
	c.cartMutations.WithLabelValues(op, result(ok)).Inc()
}

// RecordChatSend はメッセージ送信の結果を記録する。
func (c *Collector) RecordChatSend(ok bool) {
	c.chatSends.WithLabelValues(result(ok)).Inc()
}

// RecordReportGenerated はレポート生成を記録する。
func (c *Collector) RecordReportGenerated(productCount int) {
	c.reports.Inc()
	c.reportProducts.Set(float64(productCount))
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordAPIRequest(string, int, time.Duration) {}
func (Nop) RecordPollTick(string)                       {}
func (Nop) RecordPollFailure(string)                    {}
func (Nop) RecordCartMutation(string, bool)             {}
func (Nop) RecordChatSend(bool)                         {}
func (Nop) RecordReportGenerated(int)                   {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
