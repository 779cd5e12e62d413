package models

// RetryDecision is what a connection failure handler asks the scheduler to do next.
type RetryDecision int

// const ...
const (
	RetryDecisionNull RetryDecision = iota
	RetryDecisionRetry
	RetryDecisionRetryWithAutoconnectTrue
	RetryDecisionRetryWithAutoconnectFalse
	RetryDecisionDoNotRetry
)

var retryDecisionNames = [...]string{
	RetryDecisionNull:                      "null",
	RetryDecisionRetry:                     "retry",
	RetryDecisionRetryWithAutoconnectTrue:  "retry_with_autoconnect_true",
	RetryDecisionRetryWithAutoconnectFalse: "retry_with_autoconnect_false",
	RetryDecisionDoNotRetry:                "do_not_retry",
}

func (d RetryDecision) String() string {
	if d < 0 || int(d) >= len(retryDecisionNames) {
		return "unknown"
	}
	return retryDecisionNames[d]
}

// IsRetry reports whether the decision asks for a new attempt.
func (d RetryDecision) IsRetry() bool {
	return d == RetryDecisionRetry || d == RetryDecisionRetryWithAutoconnectTrue || d == RetryDecisionRetryWithAutoconnectFalse
}

// Autoconnect returns the autoconnect value the retry must use. ok is false
// when the decision leaves the original value untouched.
func (d RetryDecision) Autoconnect() (value, ok bool) {
	switch d {
	case RetryDecisionRetryWithAutoconnectTrue:
		return true, true
	case RetryDecisionRetryWithAutoconnectFalse:
		return false, true
	default:
		return false, false
	}
}
