package v1alpha1

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	api "github.com/AgriAutomate/rocky-web-studio-sub002/api/v1alpha1"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/client"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/service"
	"github.com/AgriAutomate/rocky-web-studio-sub002/pkg/metrics"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 1024 * 1024

// WebhookHandler receives completion notifications from the worker fleet. It
// lives outside the user auth chain: the only credential is the shared secret
// header, and every authenticated delivery is acknowledged so workers do not
// retry forever. Unauthenticated deliveries are rejected before any storage
// access.
type WebhookHandler struct {
	jobSrv *service.JobService
	secret string
}

func NewWebhookHandler(jobService *service.JobService, secret string) *WebhookHandler {
	return &WebhookHandler{
		jobSrv: jobService,
		secret: secret,
	}
}

// (POST /api/v1/webhooks/generation)
func (h *WebhookHandler) ReceiveCompletion(w http.ResponseWriter, r *http.Request) {
	logger := zap.S().Named("webhook_handler")

	if h.secret != "" {
		presented := r.Header.Get(client.SharedSecretHeader)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(h.secret)) != 1 {
			metrics.IncreaseWebhooksTotalMetric(metrics.WebhookUnauthorized)
			renderError(w, r, http.StatusUnauthorized, "invalid webhook secret")
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		metrics.IncreaseWebhooksTotalMetric(metrics.WebhookMalformed)
		h.acknowledge(w, r)
		return
	}

	var payload api.CompletionWebhook
	if err := json.Unmarshal(body, &payload); err != nil || payload.ExternalJobID == "" {
		logger.Warnw("malformed webhook payload", "error", err)
		metrics.IncreaseWebhooksTotalMetric(metrics.WebhookMalformed)
		h.acknowledge(w, r)
		return
	}

	result, err := h.jobSrv.ApplyCompletion(r.Context(), payload)
	if err != nil {
		logger.Errorw("failed to apply completion webhook",
			"external_job_id", payload.ExternalJobID, "error", err)
	}

	switch result {
	case service.CompletionApplied:
		metrics.IncreaseWebhooksTotalMetric(metrics.WebhookApplied)
	case service.CompletionDuplicate:
		metrics.IncreaseWebhooksTotalMetric(metrics.WebhookDuplicate)
	case service.CompletionUnknownJob:
		logger.Infow("webhook for unknown job acknowledged", "external_job_id", payload.ExternalJobID)
		metrics.IncreaseWebhooksTotalMetric(metrics.WebhookUnknownJob)
	}

	h.acknowledge(w, r)
}

func (h *WebhookHandler) acknowledge(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, api.WebhookAck{Acknowledged: true})
}
