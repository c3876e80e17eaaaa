package metrics

// ============================================================================
// Metric Names
// ============================================================================

// HTTP metric names
const (
	MetricNameHTTPRequestsTotal    = "http_requests_total"
	MetricNameHTTPRequestDuration  = "http_request_duration_seconds"
	MetricNameHTTPRequestsInFlight = "http_requests_in_flight"
)

// Event metric names
const (
	MetricNameEventsPublished = "events_published_total"
)

// Ledger metric names
const (
	MetricNameStakesTotal   = "farm_stakes_total"
	MetricNameUnstakesTotal = "farm_unstakes_total"
	MetricNameHarvestsTotal = "farm_harvests_total"
	MetricNameVaultsClosed  = "farm_vaults_closed_total"
)

// Settlement metric names
const (
	MetricNameSettlementLegsDispatched = "settlement_legs_dispatched_total"
	MetricNameSettlementLegsFailed     = "settlement_legs_failed_total"
	MetricNameSettlementCompensations  = "settlement_compensations_total"
	MetricNameSettlementsCompleted     = "settlements_completed_total"
	MetricNameCompensationsStranded    = "settlement_compensations_stranded_total"
)

// ============================================================================
// Metric Labels
// ============================================================================

const (
	LabelMethod  = "method"
	LabelPath    = "path"
	LabelStatus  = "status"
	LabelType    = "type"
	LabelMode    = "mode"
	LabelKind    = "kind"
	LabelLegKind = "leg_kind"
)

// ============================================================================
// Help Texts
// ============================================================================

const (
	HelpTextHTTPRequestsTotal    = "Total number of HTTP requests"
	HelpTextHTTPRequestDuration  = "HTTP request latency in seconds"
	HelpTextHTTPRequestsInFlight = "Number of HTTP requests currently in flight"

	HelpTextEventsPublished = "Total number of events published by type"

	HelpTextStakesTotal   = "Total number of stake operations by farm mode"
	HelpTextUnstakesTotal = "Total number of unstake operations by farm mode"
	HelpTextHarvestsTotal = "Total number of harvest operations"
	HelpTextVaultsClosed  = "Total number of vaults removed after a clean close"

	HelpTextSettlementLegsDispatched = "Settlement legs dispatched to remote registries"
	HelpTextSettlementLegsFailed     = "Settlement legs whose remote call failed"
	HelpTextSettlementCompensations  = "Compensations applied after failed legs"
	HelpTextSettlementsCompleted     = "Settlements finalized by kind and terminal status"
	HelpTextCompensationsStranded    = "Compensations that could not be written back to the ledger"
)

// HTTPLatencyBuckets are the histogram buckets for request latency
var HTTPLatencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
