package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tj_rag_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"mode"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tj_rag_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	AgentIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tj_rag_agent_iterations",
			Help:    "Tool-dispatch rounds per agent request",
			Buckets: []float64{0, 1, 2, 3, 4},
		},
	)

	AgentFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tj_rag_agent_fallbacks_total",
			Help: "Total agent-loop failures recovered by direct completion",
		},
	)

	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tj_rag_tool_calls_total",
			Help: "Total tool invocations requested by the model",
		},
		[]string{"tool"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tj_rag_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"type"},
	)

	VectorResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tj_rag_vector_results_count",
			Help:    "Number of vector results per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tj_rag_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tj_rag_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ArticlesIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tj_rag_articles_ingested_total",
			Help: "Total articles ingested into the knowledge base",
		},
	)

	EvalRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tj_rag_eval_runs_total",
			Help: "Total evaluation runs by terminal status",
		},
		[]string{"status"},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(AgentIterations)
	prometheus.MustRegister(AgentFallbacks)
	prometheus.MustRegister(ToolCallsTotal)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(VectorResultsCount)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(ArticlesIngested)
	prometheus.MustRegister(EvalRunsTotal)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
