package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Outbound calls to the catalog and rate APIs, one per attempt.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_upstream_requests_total",
			Help: "Total number of upstream API attempts (by upstream and status).",
		},
		[]string{"upstream", "status"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_upstream_request_duration_seconds",
			Help:    "Duration of upstream API attempts in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"upstream"},
	)

	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	RabbitMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbitmq_messages_total",
			Help: "Total number of analytics messages forwarded to RabbitMQ.",
		},
		[]string{"routing_key", "result"},
	)

	RatesRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_rates_refresh_total",
			Help: "Exchange-rate refresh attempts by result.",
		},
		[]string{"result"}, // ok | error
	)

	RatesTableSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_rates_currencies",
			Help: "Number of currencies in the current exchange-rate table.",
		},
	)

	VariantResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_variant_resolutions_total",
			Help: "Variant resolutions by outcome.",
		},
		[]string{"result"}, // resolved | unresolved
	)

	BreakdownsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_breakdowns_total",
			Help: "Cart cost breakdowns computed, by whether rates were pending.",
		},
		[]string{"rates_pending"},
	)

	// Currency inputs that matched no known code or symbol and fell back to
	// USD. Labelled by where they came from, not by the raw input.
	UnknownCurrencies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_unknown_currency_total",
			Help: "Currency inputs that could not be recognized and were treated as USD.",
		},
		[]string{"source"},
	)

	// Selected cart lines whose (normalized) currency had no rate yet.
	RatesPendingCurrencies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_rates_pending_currency_total",
			Help: "Cart lines priced while their currency had no exchange rate.",
		},
		[]string{"currency"},
	)

	ActiveViews = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_active_views",
			Help: "Number of open product-view sessions.",
		},
	)

	PushClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_push_clients",
			Help: "Connected rate-push websocket clients.",
		},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_errors_total",
			Help: "Count of service-level errors by component.",
		},
		[]string{"component", "reason"},
	)

	// Unix seconds of the last successful refresh, per component.
	LastRefreshTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_last_refresh_timestamp",
			Help: "Timestamp (unix seconds) of the last successful refresh.",
		},
		[]string{"component"},
	)
)

// ObserveDuration records the time taken since start on a histogram or summary.
func ObserveDuration(v interface{}, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// counters are not meant for duration tracking
	}
}

// ObserveUpstream matches httpclient.Observer.
func ObserveUpstream(upstream, status string, elapsed time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(upstream, status).Inc()
	UpstreamRequestDuration.WithLabelValues(upstream).Observe(elapsed.Seconds())
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncRabbitMessage(routingKey, result string) {
	RabbitMessageCount.WithLabelValues(routingKey, result).Inc()
}

func IncRatesRefresh(result string) {
	RatesRefreshTotal.WithLabelValues(result).Inc()
}

func IncResolution(resolved bool) {
	if resolved {
		VariantResolutions.WithLabelValues("resolved").Inc()
		return
	}
	VariantResolutions.WithLabelValues("unresolved").Inc()
}

func IncBreakdown(ratesPending bool) {
	if ratesPending {
		BreakdownsTotal.WithLabelValues("true").Inc()
		return
	}
	BreakdownsTotal.WithLabelValues("false").Inc()
}

func IncUnknownCurrency(source string) {
	UnknownCurrencies.WithLabelValues(source).Inc()
}

func IncRatesPending(code string) {
	RatesPendingCurrencies.WithLabelValues(code).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetLastRefresh(component string, t time.Time) {
	LastRefreshTimestamp.WithLabelValues(component).Set(float64(t.Unix()))
}
