package resend

// Decision is the outcome of the eligibility gate.
type Decision int

const (
	Accept Decision = iota
	RejectNotJobApplication
	RejectInvalidAddress
	RejectExcluded
	RejectOverCap
	RejectDuplicateInRun
)

var decisionNames = map[Decision]string{
	Accept:                  "accept",
	RejectNotJobApplication: "reject_not_job_application",
	RejectInvalidAddress:    "reject_invalid_address",
	RejectExcluded:          "reject_excluded",
	RejectOverCap:           "reject_over_cap",
	RejectDuplicateInRun:    "reject_duplicate_in_run",
}

var decisionReasons = map[Decision]string{
	Accept:                  "eligible for resend",
	RejectNotJobApplication: "does not look like a job application",
	RejectInvalidAddress:    "recipient address is invalid",
	RejectExcluded:          "recipient is on the exclusion list",
	RejectOverCap:           "recipient already received the maximum number of messages",
	RejectDuplicateInRun:    "recipient and subject already handled in this run",
}

// String returns the metric-friendly name of the decision.
func (d Decision) String() string {
	if name, ok := decisionNames[d]; ok {
		return name
	}
	return "unknown"
}

// Reason returns a human readable explanation.
func (d Decision) Reason() string {
	if reason, ok := decisionReasons[d]; ok {
		return reason
	}
	return "unknown decision"
}

// Accepted reports whether the decision lets the message through.
func (d Decision) Accepted() bool {
	return d == Accept
}
