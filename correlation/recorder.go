package correlation

// Outcome is what the trace filter did with a request's correlation id.
type Outcome string

const (
	OutcomeFound     Outcome = "found"
	OutcomeGenerated Outcome = "generated"
	// OutcomeRejected is recorded in addition to OutcomeGenerated when a caller supplied
	// value fails validation.
	OutcomeRejected Outcome = "rejected"
)

// Recorder receives per-request outcomes, usually to feed metrics.
type Recorder interface {
	RecordOutcome(o Outcome)
	RecordFailure(reason string)
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(Outcome) {}
func (nopRecorder) RecordFailure(string)  {}
