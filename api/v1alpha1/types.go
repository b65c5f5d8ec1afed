package v1alpha1

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GenerationSubmit is the request body for submitting a new generation job.
type GenerationSubmit struct {
	InputParameters json.RawMessage `json:"inputParameters" validate:"input_params"`
}

// GenerationSubmitted is returned once the external worker accepted the request.
type GenerationSubmitted struct {
	JobID                uuid.UUID `json:"jobId"`
	ExternalJobID        string    `json:"externalJobId"`
	EstimatedWaitSeconds int       `json:"estimatedWaitSeconds"`
}

// GenerationStatus is a point-in-time snapshot of a job.
type GenerationStatus struct {
	JobID         uuid.UUID `json:"jobId"`
	ExternalJobID string    `json:"externalJobId"`
	Status        JobStatus `json:"status"`
	ResultURI     *string   `json:"resultUri,omitempty"`
	FailureReason *string   `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CompletionWebhook is the payload pushed by the external worker when a job
// finished (or to refresh traceability data while still pending).
type CompletionWebhook struct {
	ExternalJobID string    `json:"externalJobId"`
	Status        JobStatus `json:"status"`
	ResultURI     string    `json:"resultUri,omitempty"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
}

// WebhookAck is returned for every authenticated webhook delivery, including
// unknown jobs and duplicates, so the worker never retries out of control.
type WebhookAck struct {
	Acknowledged bool `json:"acknowledged"`
}

// Error is the generic error body.
type Error struct {
	Message string `json:"message"`
}
