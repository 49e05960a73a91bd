package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal HTTP 请求总量
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration HTTP 请求耗时
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launchpad_http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1.0, 2.0},
		},
		[]string{"method", "path"},
	)

	// Transitions 项目状态转换次数
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_project_transitions_total",
			Help: "Project status transitions by target status.",
		},
		[]string{"status"},
	)

	// SchedulerFailures 自动转换失败次数
	SchedulerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_scheduler_failures_total",
			Help: "Automatic project transitions that failed and were dropped.",
		},
		[]string{"update_type"},
	)

	// CurrentBlock 当前区块高度
	CurrentBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "launchpad_current_block",
		Help: "Current block of the local clock.",
	})

	// Participations 参与记录创建次数
	Participations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_participations_total",
			Help: "Evaluations, bids and contributions recorded.",
		},
		[]string{"type"},
	)

	// Evictions 因超过上限被移除的参与记录
	Evictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_participation_evictions_total",
			Help: "Participations evicted because a per-user cap was reached.",
		},
		[]string{"type"},
	)

	// AuctionClearingPrice 最近一次拍卖的成交价
	AuctionClearingPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "launchpad_auction_clearing_price_usd",
			Help: "Weighted average price of the last cleared auction per project.",
		},
		[]string{"project"},
	)

	// XcmMessages 发往目标链的消息
	XcmMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_xcm_messages_total",
			Help: "Outbound cross-chain messages by kind and result.",
		},
		[]string{"kind", "result"},
	)

	// XcmResponses 处理的目标链响应
	XcmResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_xcm_responses_total",
			Help: "Inbound cross-chain responses by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// TaskDuration 定时任务耗时
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launchpad_task_duration_seconds",
			Help:    "Duration of scheduled jobs.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"},
	)
)

// PrometheusMiddleware 记录 HTTP 请求指标
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath() // 使用路由模板

		c.Next()

		if path == "" {
			return
		}
		status := strconv.Itoa(c.Writer.Status())
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// ObserveTask 记录任务耗时，用法 defer metrics.ObserveTask("name")()
func ObserveTask(task string) func() {
	start := time.Now()
	return func() {
		TaskDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())
	}
}
