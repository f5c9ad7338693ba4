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
	RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "story_refresh_total",
		Help: "Full state refreshes from the sheet by outcome",
	}, []string{"status"})

	StoriesLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "story_stories_loaded",
		Help: "Stories currently held in memory",
	})
	ResponsesLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "story_responses_loaded",
		Help: "Student responses currently held in memory",
	})

	WritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "story_writes_total",
		Help: "Write commands by action, policy and outcome",
	}, []string{"action", "policy", "outcome"})

	RollbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "story_rollbacks_total",
		Help: "Optimistic changes restored after a failed write",
	}, []string{"action"})

	ChatExchangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_exchanges_total",
		Help: "Assistant exchanges by outcome",
	}, []string{"outcome"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Outbound request duration",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Outbound request count",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "LLM reply generation time",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Tokens used by the LLM",
	}, []string{"model", "type"})
)

// MustRegister registers every collector of the package.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		RefreshTotal,
		StoriesLoaded,
		ResponsesLoaded,
		WritesTotal,
		RollbacksTotal,
		ChatExchangesTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// StartServer serves /metrics on addr until ctx is done.
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

// ObserveNetworkRequest records duration and status of an outbound call.
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

// ObserveLLMGeneration records generation time and token usage.
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

// ObserveRefresh records a refresh outcome and the resulting collection sizes.
func ObserveRefresh(err error, stories, responses int) {
	if err != nil {
		RefreshTotal.WithLabelValues("error").Inc()
		return
	}
	RefreshTotal.WithLabelValues("success").Inc()
	StoriesLoaded.Set(float64(stories))
	ResponsesLoaded.Set(float64(responses))
}

func ObserveWrite(action, policy string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	WritesTotal.WithLabelValues(action, policy, outcome).Inc()
}

func IncRollback(action string) {
	RollbacksTotal.WithLabelValues(action).Inc()
}

// IncChatExchange counts an assistant exchange by outcome (ok, empty, error, discarded).
func IncChatExchange(outcome string) {
	ChatExchangesTotal.WithLabelValues(outcome).Inc()
}
