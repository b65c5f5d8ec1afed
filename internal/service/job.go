package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	api "github.com/AgriAutomate/rocky-web-studio-sub002/api/v1alpha1"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/client"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/service/mappers"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/store"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/store/model"
	"github.com/AgriAutomate/rocky-web-studio-sub002/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultFailureReason = "unknown error"

// CompletionResult tells the webhook handler what the merge did.
type CompletionResult int

const (
	CompletionApplied CompletionResult = iota
	CompletionDuplicate
	CompletionUnknownJob
)

type JobService struct {
	store                store.Store
	worker               client.Worker
	baseUrl              string
	defaultEstimatedWait int
}

func NewJobService(store store.Store, worker client.Worker, baseUrl string, defaultEstimatedWait int) *JobService {
	return &JobService{
		store:                store,
		worker:               worker,
		baseUrl:              baseUrl,
		defaultEstimatedWait: defaultEstimatedWait,
	}
}

// CallbackUrl is where the external worker pushes completion notifications.
func (s *JobService) CallbackUrl() string {
	return strings.TrimRight(s.baseUrl, "/") + "/api/v1/webhooks/generation"
}

// Submit forwards the request to the external worker's synchronous accept
// endpoint and persists a job row only once the worker acknowledged with a
// handle, so a rejected submission never leaves a pending row behind.
//
// If the insert fails after acceptance, the error is surfaced and no row
// exists; a later webhook for the orphaned handle is absorbed by the
// unknown-job no-op path.
func (s *JobService) Submit(ctx context.Context, form mappers.SubmissionForm) (*model.GenerationJob, int, error) {
	resp, err := s.worker.Submit(ctx, client.SubmitRequest{
		InputParameters: form.InputParameters,
		CallbackURL:     s.CallbackUrl(),
	})
	if err != nil {
		metrics.IncreaseSubmissionsTotalMetric(metrics.SubmissionRejected)
		return nil, 0, NewErrUpstreamSubmission(err)
	}

	job, err := s.store.Job().Create(ctx, form.ToJob(resp.ExternalJobID))
	if err != nil {
		metrics.IncreaseSubmissionsTotalMetric(metrics.SubmissionFailed)
		zap.S().Named("service").Errorw("failed to persist accepted job",
			"external_job_id", resp.ExternalJobID, "error", err)
		return nil, 0, fmt.Errorf("persisting accepted job: %w", err)
	}

	estimate := resp.EstimatedWaitSeconds
	if estimate <= 0 {
		estimate = s.defaultEstimatedWait
	}

	metrics.IncreaseSubmissionsTotalMetric(metrics.SubmissionAccepted)
	return job, estimate, nil
}

// GetJob returns the job only to its owner.
func (s *JobService) GetJob(ctx context.Context, owner string, id uuid.UUID) (*model.GenerationJob, error) {
	job, err := s.store.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		return nil, err
	}

	if job.OwnerID != owner {
		return nil, NewErrJobAccessForbidden(id)
	}

	return job, nil
}

// ApplyCompletion merges a completion notification into the job row. It is
// the sole writer of terminal fields and safe to replay: the resulting fields
// are computed from the payload and compared against the stored row, and only
// a difference triggers the single atomic update. Duplicate deliveries
// therefore leave the row byte-identical, updated_at included.
func (s *JobService) ApplyCompletion(ctx context.Context, payload api.CompletionWebhook) (CompletionResult, error) {
	job, err := s.store.Job().GetByExternalID(ctx, payload.ExternalJobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return CompletionUnknownJob, nil
		}
		return CompletionUnknownJob, err
	}

	resultURI, failureReason := nextTerminalFields(job, payload)

	raw, err := json.Marshal(payload)
	if err != nil {
		return CompletionDuplicate, fmt.Errorf("marshaling webhook payload: %w", err)
	}

	if strPtrEqual(job.ResultURI, resultURI) &&
		strPtrEqual(job.FailureReason, failureReason) &&
		bytes.Equal(job.RawWorkerPayload, raw) {
		zap.S().Named("service").Infow("duplicate completion webhook",
			"external_job_id", payload.ExternalJobID, "status", payload.Status)
		return CompletionDuplicate, nil
	}

	if _, err := s.store.Job().UpdateResult(ctx, job.ID, resultURI, failureReason, raw); err != nil {
		return CompletionApplied, fmt.Errorf("updating job %s: %w", job.ID, err)
	}

	return CompletionApplied, nil
}

// nextTerminalFields computes the terminal fields the row should hold after
// this payload. A pending notification, or a complete one without a result
// URI, keeps the current terminal fields and only refreshes the raw payload.
func nextTerminalFields(job *model.GenerationJob, payload api.CompletionWebhook) (*string, *string) {
	switch {
	case payload.Status == api.JobStatusComplete && payload.ResultURI != "":
		uri := payload.ResultURI
		return &uri, nil
	case payload.Status == api.JobStatusFailed:
		reason := payload.ErrorMessage
		if reason == "" {
			reason = defaultFailureReason
		}
		return nil, &reason
	default:
		return job.ResultURI, job.FailureReason
	}
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
