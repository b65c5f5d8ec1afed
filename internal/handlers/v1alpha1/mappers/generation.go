package mappers

import (
	api "github.com/AgriAutomate/rocky-web-studio-sub002/api/v1alpha1"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/store/model"
)

func GenerationStatusToApi(job *model.GenerationJob) api.GenerationStatus {
	state := job.State()

	status := api.GenerationStatus{
		JobID:     job.ID,
		Status:    state.Phase,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.ExternalJobID != nil {
		status.ExternalJobID = *job.ExternalJobID
	}
	if state.ResultURI != "" {
		uri := state.ResultURI
		status.ResultURI = &uri
	}
	if state.FailureReason != "" {
		reason := state.FailureReason
		status.FailureReason = &reason
	}

	return status
}

func GenerationSubmittedToApi(job *model.GenerationJob, estimatedWaitSeconds int) api.GenerationSubmitted {
	submitted := api.GenerationSubmitted{
		JobID:                job.ID,
		EstimatedWaitSeconds: estimatedWaitSeconds,
	}
	if job.ExternalJobID != nil {
		submitted.ExternalJobID = *job.ExternalJobID
	}
	return submitted
}
