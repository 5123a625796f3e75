package domain

// ItemResult is the outcome of migrating a single source record.
type ItemResult struct {
	SourceID      int64  `json:"sourceId"`
	DestinationID int64  `json:"destinationId,omitempty"`
	OK            bool   `json:"ok"`
	Reason        string `json:"reason,omitempty"`
}

// Outcome classifies a finished batch for the caller.
type Outcome string

// Batch outcomes.
const (
	OutcomeAllSucceeded Outcome = "all_succeeded"
	OutcomePartial      Outcome = "partial"
	OutcomeTotalFailure Outcome = "total_failure"
)

// BatchResult aggregates a migration batch. Errors holds at most the
// configured sample of failure reasons; Items holds every id in caller order.
type BatchResult struct {
	RunID        int64
	From         Stage
	To           Stage
	SuccessCount int
	ErrorCount   int
	Errors       []string
	Items        []ItemResult
}

// Outcome reports whether every item, some items, or no items succeeded.
func (r *BatchResult) Outcome() Outcome {
	switch {
	case r.SuccessCount == 0:
		return OutcomeTotalFailure
	case r.ErrorCount > 0:
		return OutcomePartial
	default:
		return OutcomeAllSucceeded
	}
}

// EligibleSet answers how many source records can currently move forward.
type EligibleSet struct {
	From      Stage
	To        Stage
	Count     int
	IDs       []int64
	Breakdown map[string]int
}

// MigrationRun is a persisted batch from the migration run log.
type MigrationRun struct {
	ID           int64        `json:"id"`
	From         Stage        `json:"from"`
	To           Stage        `json:"to"`
	ActorID      int64        `json:"actorId"`
	SuccessCount int          `json:"successCount"`
	ErrorCount   int          `json:"errorCount"`
	Items        []ItemResult `json:"items"`
	CreatedAt    string       `json:"createdAt"`
}
