package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики docconv. Регистрируются в prometheus.DefaultRegisterer.
var (
	// HTTPRequestsTotal — входящие HTTP-запросы по маршруту и коду ответа.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docconv_http_requests_total",
		Help: "Total HTTP requests handled by docconv_api",
	}, []string{"method", "status"})

	// ConversionsTotal — завершённые запросы на конвертацию по итогу.
	ConversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docconv_conversions_total",
		Help: "Conversion requests by outcome (succeeded, failed, timeout, rejected)",
	}, []string{"outcome"})

	// ConversionDuration — полное время обработки запроса.
	ConversionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docconv_conversion_duration_seconds",
		Help:    "End-to-end conversion duration",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"outcome"})

	// VendorStepsTotal — вызовы шагов вендора по результату.
	VendorStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docconv_vendor_steps_total",
		Help: "Vendor workflow steps by step name and result",
	}, []string{"step", "result"})

	// PollAttempts — количество запросов статуса на одну конвертацию.
	PollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docconv_poll_attempts",
		Help:    "Status checks performed per conversion",
		Buckets: prometheus.LinearBuckets(1, 2, 15),
	})

	// JanitorRemovedTotal — файлы, удалённые уборщиком временной директории.
	JanitorRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docconv_janitor_removed_files_total",
		Help: "Stale staged files removed by the janitor",
	})
)

// ObserveConversion записывает итог конвертации.
func ObserveConversion(outcome string, duration time.Duration, pollAttempts int) {
	ConversionsTotal.WithLabelValues(outcome).Inc()
	ConversionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if pollAttempts > 0 {
		PollAttempts.Observe(float64(pollAttempts))
	}
}

// ObserveVendorStep записывает результат одного шага вендора.
func ObserveVendorStep(step string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	VendorStepsTotal.WithLabelValues(step, result).Inc()
}
