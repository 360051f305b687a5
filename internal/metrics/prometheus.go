package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ExtractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hms_extraction_duration_seconds",
			Help:    "Extraction duration per stage in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"stage"},
	)

	ManuscriptsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hms_manuscripts_processed_total",
			Help: "Total number of manuscripts processed",
		},
		[]string{"status"},
	)

	EntitiesExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hms_entities_extracted_total",
			Help: "Total entities extracted per type",
		},
		[]string{"type"},
	)

	Classifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hms_classifications_total",
			Help: "Classification outcomes per source and entity type",
		},
		[]string{"source", "type"},
	)

	AICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hms_ai_calls_total",
			Help: "AI classification chunk calls per status",
		},
		[]string{"status"},
	)

	AICallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hms_ai_call_duration_seconds",
			Help:    "AI chat completion duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 35},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hms_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hms_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hms_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	GazetteerLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hms_gazetteer_lookups_total",
			Help: "Gazetteer lookups per outcome",
		},
		[]string{"outcome"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hms_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	GraphNodesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hms_graph_nodes_written_total",
			Help: "Nodes merged into the graph per label",
		},
		[]string{"label"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ExtractionDuration)
		prometheus.MustRegister(ManuscriptsProcessed)
		prometheus.MustRegister(EntitiesExtracted)
		prometheus.MustRegister(Classifications)
		prometheus.MustRegister(AICalls)
		prometheus.MustRegister(AICallDuration)
		prometheus.MustRegister(LLMTokensUsed)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(GazetteerLookups)
		prometheus.MustRegister(BreakerState)
		prometheus.MustRegister(GraphNodesWritten)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
