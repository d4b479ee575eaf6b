package moderation

import "fmt"

// OutcomeKind is the terminal state of a handled message.
type OutcomeKind int

const (
	// OutcomeNoAction means the message scored below the toxicity threshold.
	OutcomeNoAction OutcomeKind = iota
	// OutcomeActioned means a strike was recorded and its action dispatched.
	OutcomeActioned
	// OutcomeDeferred means the ledger write failed and nothing was enforced.
	OutcomeDeferred
	// OutcomeSkipped means the classifier failed and the message was not judged.
	OutcomeSkipped
	// OutcomeRejected means the engine was shutting down.
	OutcomeRejected
	// OutcomeIgnored means the message was not eligible for moderation.
	OutcomeIgnored
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNoAction:
		return "NoAction"
	case OutcomeActioned:
		return "Actioned"
	case OutcomeDeferred:
		return "Deferred"
	case OutcomeSkipped:
		return "Skipped"
	case OutcomeRejected:
		return "Rejected"
	case OutcomeIgnored:
		return "Ignored"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome describes what the engine did with a message.
type Outcome struct {
	Kind    OutcomeKind
	Score   float64
	Cached  bool
	Strikes int
	Action  Action
	// Enforced is false when the platform rejected the action.
	Enforced bool
}
