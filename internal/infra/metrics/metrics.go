package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	PostsGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posts_generated_total",
		Help: "Сгенерированные и поставленные в очередь тексты",
	})
	PostsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posts_published_total",
		Help: "Опубликованные посты и треды",
	}, []string{"kind"})
	PublishRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publish_rejected_total",
		Help: "Отказы платформы по причинам",
	}, []string{"reason"})
	PipelineErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_errors_total",
		Help: "Ошибки конвейера по этапам",
	}, []string{"stage"})
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "queue_pending_items",
		Help: "Количество элементов в очереди публикаций",
	})
	PostsToday = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "posts_today",
		Help: "Публикаций за текущие сутки",
	})
	JobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_job_duration_seconds",
		Help:    "Длительность фоновых задач",
		Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800},
	}, []string{"job", "status"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		PostsGenerated,
		PostsPublished,
		PublishRejected,
		PipelineErrors,
		QueueDepth,
		PostsToday,
		JobDuration,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}

// ObserveJob записывает длительность фоновой задачи.
func ObserveJob(job string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	JobDuration.WithLabelValues(job, status).Observe(time.Since(start).Seconds())
}

// IncPostsGenerated увеличивает счётчик сгенерированных текстов.
func IncPostsGenerated() {
	PostsGenerated.Inc()
}

// IncPostsPublished увеличивает счётчик публикаций по виду (single, thread).
func IncPostsPublished(kind string) {
	PostsPublished.WithLabelValues(kind).Inc()
}

// IncPublishRejected учитывает отказ платформы.
func IncPublishRejected(reason string) {
	PublishRejected.WithLabelValues(reason).Inc()
}

// IncPipelineError учитывает ошибку этапа конвейера.
func IncPipelineError(stage string) {
	PipelineErrors.WithLabelValues(stage).Inc()
}

// SetQueueDepth обновляет размер очереди.
func SetQueueDepth(n int) {
	QueueDepth.Set(float64(n))
}

// SetPostsToday обновляет счётчик публикаций за сутки.
func SetPostsToday(n int) {
	PostsToday.Set(float64(n))
}
