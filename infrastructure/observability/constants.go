package observability

// Metric name prefixes
const (
	MetricPrefix = "commitbet"
)

// Metric names
const (
	// Market operation metrics
	OperationsTotal   = MetricPrefix + ".operations_total"
	OperationDuration = MetricPrefix + ".operation_duration"

	// Settlement metrics
	StakedAmountTotal = MetricPrefix + ".stake.amount_total"
	PaidAmountTotal   = MetricPrefix + ".payout.amount_total"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"

	// Database metrics
	DatabaseQueriesTotal  = MetricPrefix + ".database.queries_total"
	DatabaseQueryDuration = MetricPrefix + ".database.query_duration"
)

// Label keys
const (
	LabelOperation  = "operation"
	LabelOutcome    = "outcome"
	LabelEventType  = "event_type"
	LabelRepository = "repository"
	LabelMethod     = "method"
	LabelErrorCode  = "error_code"
)

// Outcome label values
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
