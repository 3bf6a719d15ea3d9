package publish

import "blogpush/internal/hosting"

// OutcomeKind tags the result of one item's publish attempt sequence.
type OutcomeKind int

const (
	// OutcomeSkipped: the title was already known, no remote call was made.
	OutcomeSkipped OutcomeKind = iota
	// OutcomeSuccess: exactly one insert succeeded.
	OutcomeSuccess
	// OutcomeRetryableFailure: the retry budget ran out while the failure
	// was still retry-classified.
	OutcomeRetryableFailure
	// OutcomeFatalFailure: a non-retryable failure, propagated immediately.
	OutcomeFatalFailure
	// OutcomeAborted: the run context ended mid-attempt. Not a publish
	// failure; the item stays unprocessed so a resumed run re-attempts it.
	OutcomeAborted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryableFailure:
		return "retryable_failure"
	case OutcomeAborted:
		return "aborted"
	default:
		return "fatal_failure"
	}
}

// Outcome is the tagged result of publishing one candidate post.
type Outcome struct {
	Kind     OutcomeKind
	URL      string
	ID       string
	Attempts int

	// Class is the hosting error kind of the last failure, valid for the
	// failure outcomes.
	Class hosting.Kind
	Err   error
}

// jobFatal reports whether this outcome must terminate the whole run.
func (o Outcome) jobFatal() bool {
	if o.Kind != OutcomeRetryableFailure {
		return false
	}
	switch o.Class {
	case hosting.KindQuota, hosting.KindTooManyRequests, hosting.KindRateLimited:
		return true
	}
	return false
}
