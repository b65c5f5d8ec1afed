package v1alpha1

type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusComplete JobStatus = "complete"
	JobStatusFailed   JobStatus = "failed"
)

// JobState is the tagged form of a job's status. Callers switch on Phase and
// read the payload field that belongs to it instead of inspecting the raw
// nullable columns.
type JobState struct {
	Phase         JobStatus
	ResultURI     string
	FailureReason string
}

func (s JobState) Terminal() bool {
	return s.Phase == JobStatusComplete || s.Phase == JobStatusFailed
}

// DeriveState maps the stored nullable fields to a JobState. A non-empty
// result URI always wins, a failure reason only counts when no result exists,
// anything else is pending. Pure and deterministic: the webhook merge and the
// poller share this single implementation.
func DeriveState(resultURI, failureReason *string) JobState {
	if resultURI != nil && *resultURI != "" {
		return JobState{Phase: JobStatusComplete, ResultURI: *resultURI}
	}
	if failureReason != nil && *failureReason != "" {
		return JobState{Phase: JobStatusFailed, FailureReason: *failureReason}
	}
	return JobState{Phase: JobStatusPending}
}

// DeriveStatus is DeriveState reduced to the phase only.
func DeriveStatus(resultURI, failureReason *string) JobStatus {
	return DeriveState(resultURI, failureReason).Phase
}
