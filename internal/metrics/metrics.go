package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameHTTPRequestsTotal,
			Help: HelpTextHTTPRequestsTotal,
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameHTTPRequestDuration,
			Help:    HelpTextHTTPRequestDuration,
			Buckets: HTTPLatencyBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameHTTPRequestsInFlight,
			Help: HelpTextHTTPRequestsInFlight,
		},
	)
)

// Event Metrics
var (
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameEventsPublished,
			Help: HelpTextEventsPublished,
		},
		[]string{LabelType},
	)
)

// Ledger Metrics
var (
	StakesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameStakesTotal,
			Help: HelpTextStakesTotal,
		},
		[]string{LabelMode},
	)

	UnstakesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameUnstakesTotal,
			Help: HelpTextUnstakesTotal,
		},
		[]string{LabelMode},
	)

	HarvestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameHarvestsTotal,
			Help: HelpTextHarvestsTotal,
		},
	)

	VaultsClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameVaultsClosed,
			Help: HelpTextVaultsClosed,
		},
	)
)

// Settlement Metrics
var (
	SettlementLegsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameSettlementLegsDispatched,
			Help: HelpTextSettlementLegsDispatched,
		},
		[]string{LabelLegKind},
	)

	SettlementLegsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameSettlementLegsFailed,
			Help: HelpTextSettlementLegsFailed,
		},
		[]string{LabelLegKind},
	)

	SettlementCompensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameSettlementCompensations,
			Help: HelpTextSettlementCompensations,
		},
		[]string{LabelLegKind},
	)

	SettlementsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameSettlementsCompleted,
			Help: HelpTextSettlementsCompleted,
		},
		[]string{LabelKind, LabelStatus},
	)

	CompensationsStranded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameCompensationsStranded,
			Help: HelpTextCompensationsStranded,
		},
	)
)
