package v1alpha1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	api "github.com/AgriAutomate/rocky-web-studio-sub002/api/v1alpha1"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/auth"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/handlers/v1alpha1/mappers"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/handlers/validator"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/poller"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/service"
	srvMappers "github.com/AgriAutomate/rocky-web-studio-sub002/internal/service/mappers"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/store/model"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxSubmitBodyBytes = 128 * 1024

// (POST /api/v1/generations)
func (h *ServiceHandler) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSubmitBodyBytes))
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "failed to read body")
		return
	}

	var form api.GenerationSubmit
	if err := json.Unmarshal(body, &form); err != nil {
		renderError(w, r, http.StatusBadRequest, fmt.Sprintf("malformed body: %v", err))
		return
	}

	v := validator.NewValidator()
	v.Register(validator.NewGenerationValidationRules()...)
	if err := v.Struct(form); err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	job, estimate, err := h.jobSrv.Submit(r.Context(), srvMappers.SubmissionForm{
		OwnerID:         user.Username,
		InputParameters: form.InputParameters,
	})
	if err != nil {
		var upstreamErr *service.ErrUpstreamSubmission
		if errors.As(err, &upstreamErr) {
			renderError(w, r, http.StatusBadGateway, err.Error())
			return
		}
		zap.S().Named("generation_handler").Errorw("failed to submit generation", "error", err)
		renderError(w, r, http.StatusInternalServerError, "failed to submit generation")
		return
	}

	renderJSON(w, r, http.StatusCreated, mappers.GenerationSubmittedToApi(job, estimate))
}

// (GET /api/v1/generations/{id})
func (h *ServiceHandler) GetGeneration(w http.ResponseWriter, r *http.Request) {
	job, ok := h.ownedJob(w, r)
	if !ok {
		return
	}

	renderJSON(w, r, http.StatusOK, mappers.GenerationStatusToApi(job))
}

// (GET /api/v1/generations/{id}/wait)
//
// Bounded long poll: blocks until the job turns terminal or the budget runs
// out, then returns the latest snapshot either way.
func (h *ServiceHandler) WaitGeneration(w http.ResponseWriter, r *http.Request) {
	job, ok := h.ownedJob(w, r)
	if !ok {
		return
	}

	if job.State().Terminal() || job.ExternalJobID == nil {
		renderJSON(w, r, http.StatusOK, mappers.GenerationStatusToApi(job))
		return
	}

	p := poller.NewPoller(h.jobs)
	_, err := p.WaitForTerminal(r.Context(), *job.ExternalJobID, poller.Options{
		MaxTotal: waitBudget(r),
	})
	if err != nil {
		// client went away, nothing left to write
		return
	}

	fresh, err := h.jobs.Get(r.Context(), job.ID)
	if err != nil {
		zap.S().Named("generation_handler").Errorw("failed to re-read job after wait",
			"job_id", job.ID, "error", err)
		renderError(w, r, http.StatusInternalServerError, "failed to read job")
		return
	}

	renderJSON(w, r, http.StatusOK, mappers.GenerationStatusToApi(fresh))
}

// ownedJob resolves the {id} path parameter and enforces ownership. On
// failure it writes the error response and returns false.
func (h *ServiceHandler) ownedJob(w http.ResponseWriter, r *http.Request) (job *model.GenerationJob, ok bool) {
	user := auth.MustHaveUser(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "invalid job id")
		return nil, false
	}

	job, err = h.jobSrv.GetJob(r.Context(), user.Username, id)
	if err != nil {
		var notFoundErr *service.ErrResourceNotFound
		var forbiddenErr *service.ErrJobAccessForbidden
		switch {
		case errors.As(err, &notFoundErr):
			renderError(w, r, http.StatusNotFound, err.Error())
		case errors.As(err, &forbiddenErr):
			renderError(w, r, http.StatusForbidden, err.Error())
		default:
			zap.S().Named("generation_handler").Errorw("failed to get job", "job_id", id, "error", err)
			renderError(w, r, http.StatusInternalServerError, "failed to get job")
		}
		return nil, false
	}

	return job, true
}

// waitBudget reads the optional timeoutSeconds query parameter, capped at the
// poller's own budget.
func waitBudget(r *http.Request) time.Duration {
	raw := r.URL.Query().Get("timeoutSeconds")
	if raw == "" {
		return poller.DefaultMaxTotal
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return poller.DefaultMaxTotal
	}
	budget := time.Duration(seconds) * time.Second
	if budget > poller.DefaultMaxTotal {
		return poller.DefaultMaxTotal
	}
	return budget
}
