package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracker",
			Name:      "chat_turns_total",
			Help:      "Total chat turns processed",
		},
		[]string{"intent"},
	)

	turnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tracker",
			Name:      "chat_turn_duration_seconds",
			Help:      "Duration of a full chat turn in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
	)

	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracker",
			Name:      "llm_calls_total",
			Help:      "Total LLM API calls",
		},
		[]string{"purpose", "status"}, // purpose: intent, rewrite, sqlgen, answer
	)

	sqlGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracker",
			Name:      "sql_generations_total",
			Help:      "SQL drafting outcomes by tagged kind",
		},
		[]string{"kind"}, // sql, needs_limit, direct, refusal, malformed
	)

	disambiguationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracker",
			Name:      "disambiguations_total",
			Help:      "Disambiguation prompts surfaced to users",
		},
		[]string{"kind", "mode"},
	)

	queryRowsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tracker",
			Name:      "query_rows_returned",
			Help:      "Rows returned per executed query",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tracker",
			Name:      "sessions_active",
			Help:      "Number of live conversation sessions",
		},
	)
)

func generationKindLabel(kind GenerationKind) string {
	switch kind {
	case GenSQL:
		return "sql"
	case GenNeedsLimit:
		return "needs_limit"
	case GenDirect:
		return "direct"
	case GenRefusal:
		return "refusal"
	default:
		return "malformed"
	}
}
