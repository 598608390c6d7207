package enums

// OutboxAggregateType is stored in outbox_events.aggregate_type.
type OutboxAggregateType string

const AggregateConfigurationSubmission OutboxAggregateType = "configuration_submission"

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateConfigurationSubmission
}

// OutboxEventType is stored in outbox_events.event_type and doubles as the
// Pub/Sub "event_type" attribute.
type OutboxEventType string

const EventConfigurationSubmitted OutboxEventType = "configuration.submitted"

func (e OutboxEventType) IsValid() bool {
	return e == EventConfigurationSubmitted
}

// OutboxDLQErrorReason records why a row reached outbox_dlq.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
