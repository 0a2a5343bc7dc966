// internal/tracker/outcome.go
package tracker

// OutcomeKind enumerates the channel-call results the tracker records.
type OutcomeKind int

const (
	OutcomeSent OutcomeKind = iota
	OutcomeFailed
	OutcomeDelivered
	OutcomeRead
)

// Outcome is one delivery result to apply to a history record.
type Outcome struct {
	Kind       OutcomeKind
	ExternalID string // Sent only
	Reason     string // Failed only
}

func Sent(externalID string) Outcome {
	return Outcome{Kind: OutcomeSent, ExternalID: externalID}
}

func Failed(reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason}
}

func Delivered() Outcome {
	return Outcome{Kind: OutcomeDelivered}
}

func Read() Outcome {
	return Outcome{Kind: OutcomeRead}
}
