// Package metrics 提供 Prometheus 指标定义、注册与暴露
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/swaptrading/pkg/logger"
)

const namespace = "trading"

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 交易生命周期操作计数
	TradeOperationsTotal *prometheus.CounterVec
	// 校验失败次数
	ValidationFailuresTotal prometheus.Counter
	// 生成的现金流条数
	CashflowsGeneratedTotal prometheus.Counter
	// Outbox 事件发布计数
	EventsPublishedTotal *prometheus.CounterVec
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		TradeOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "trade_operations_total",
			Help:      "Trade lifecycle operations by outcome",
		}, []string{"operation", "outcome"}),
		ValidationFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "trade_validation_failures_total",
			Help:      "Trades rejected by validation",
		}),
		CashflowsGeneratedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "trade_cashflows_generated_total",
			Help:      "Cashflows generated for trade legs",
		}),
		EventsPublishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "trade_events_published_total",
			Help:      "Outbox events relayed to the broker",
		}, []string{"event_type", "outcome"}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TradeOperationsTotal,
		m.ValidationFailuresTotal,
		m.CashflowsGeneratedTotal,
		m.EventsPublishedTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}
	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordOperation 记录交易操作结果
func (m *Metrics) RecordOperation(operation, outcome string) {
	m.TradeOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordValidationFailure 记录校验失败
func (m *Metrics) RecordValidationFailure() {
	m.ValidationFailuresTotal.Inc()
}

// RecordCashflows 记录生成的现金流数量
func (m *Metrics) RecordCashflows(n int) {
	m.CashflowsGeneratedTotal.Add(float64(n))
}

// RecordEventPublished 记录事件发布结果
func (m *Metrics) RecordEventPublished(eventType string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.EventsPublishedTotal.WithLabelValues(eventType, outcome).Inc()
}

// NewServer 创建 Prometheus 指标 HTTP 服务
func NewServer(port int, path string, gatherer prometheus.Gatherer) *http.Server {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// StartHTTPServer 在后台启动指标服务
func StartHTTPServer(srv *http.Server) {
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "Prometheus HTTP server stopped", "error", err)
		}
	}()
}
