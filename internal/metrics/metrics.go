// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// スクレイパーや分析パイプラインから利用する。
type MetricsCollector interface {
	RecordScrapeSuccess(source string)
	RecordScrapeFailure(source string)
	RecordDiscussionsSaved(count int)
	RecordCooldownSkip(source string)
	RecordFilterResult(passed bool)
	RecordExtractionSuccess()
	RecordExtractionFailure()
	RecordLLMLatency(stage string, duration time.Duration)
	RecordProblemsCreated(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	scrapeSuccess     *prometheus.CounterVec
	scrapeFail        *prometheus.CounterVec
	discussionsSaved  prometheus.Counter
	cooldownSkips     *prometheus.CounterVec
	filterResults     *prometheus.CounterVec
	extractionSuccess prometheus.Counter
	extractionFail    prometheus.Counter
	llmLatency        *prometheus.HistogramVec
	problemsCreated   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scrapeSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ideascout_scrape_success_total",
			Help: "ソース別スクレイプ成功の合計数",
		}, []string{"source"}),
		scrapeFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ideascout_scrape_fail_total",
			Help: "ソース別スクレイプ失敗の合計数",
		}, []string{"source"}),
		discussionsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ideascout_discussions_saved_total",
			Help: "保存された議論の合計数",
		}),
		cooldownSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ideascout_cooldown_skips_total",
			Help: "クールダウンによりスキップされたスレッドの合計数",
		}, []string{"source"}),
		filterResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ideascout_filter_results_total",
			Help: "一次フィルタの通過/却下の合計数",
		}, []string{"result"}),
		extractionSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ideascout_extraction_success_total",
			Help: "問題抽出成功の合計数",
		}),
		extractionFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ideascout_extraction_fail_total",
			Help: "問題抽出失敗の合計数",
		}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ideascout_llm_latency_seconds",
			Help:    "LLM呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		problemsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ideascout_problems_created_total",
			Help: "作成された問題カードの合計数",
		}),
	}

	reg.MustRegister(
		c.scrapeSuccess,
		c.scrapeFail,
		c.discussionsSaved,
		c.cooldownSkips,
		c.filterResults,
		c.extractionSuccess,
		c.extractionFail,
		c.llmLatency,
		c.problemsCreated,
	)

	return c
}

// RecordScrapeSuccess はスクレイプ成功を記録する。
func (c *Collector) RecordScrapeSuccess(source string) {
	c.scrapeSuccess.WithLabelValues(source).Inc()
}

// RecordScrapeFailure はスクレイプ失敗を記録する。
func (c *Collector) RecordScrapeFailure(source string) {
	c.scrapeFail.WithLabelValues(source).Inc()
}

// RecordDiscussionsSaved は保存された議論数を記録する。
func (c *Collector) RecordDiscussionsSaved(count int) {
	c.discussionsSaved.Add(float64(count))
}

// RecordCooldownSkip はクールダウンによるスキップを記録する。
func (c *Collector) RecordCooldownSkip(source string) {
	c.cooldownSkips.WithLabelValues(source).Inc()
}

// RecordFilterResult は一次フィルタの結果を記録する。
func (c *Collector) RecordFilterResult(passed bool) {
	result := "rejected"
	if passed {
		result = "passed"
	}
	c.filterResults.WithLabelValues(result).Inc()
}

// RecordExtractionSuccess は問題抽出成功を記録する。
func (c *Collector) RecordExtractionSuccess() {
	c.extractionSuccess.Inc()
}

// RecordExtractionFailure は問題抽出失敗を記録する。
func (c *Collector) RecordExtractionFailure() {
	c.extractionFail.Inc()
}

// RecordLLMLatency はLLM呼び出しのレイテンシをステージ別に記録する。
func (c *Collector) RecordLLMLatency(stage string, duration time.Duration) {
	c.llmLatency.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordProblemsCreated は作成された問題カード数を記録する。
func (c *Collector) RecordProblemsCreated(count int) {
	c.problemsCreated.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
