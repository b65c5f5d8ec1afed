package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const SharedSecretHeader = "X-Webhook-Secret"

// Worker is the client interface for the external generation worker's
// synchronous accept endpoint.
type Worker interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)
}

type SubmitRequest struct {
	InputParameters json.RawMessage `json:"inputParameters"`
	// CallbackURL is where the worker should push completion notifications.
	CallbackURL string `json:"callbackUrl"`
}

type SubmitResponse struct {
	ExternalJobID        string
	EstimatedWaitSeconds int
}

var _ Worker = (*worker)(nil)

type worker struct {
	url    string
	secret string
	client *http.Client
}

func NewWorker(url, secret string, timeout time.Duration) Worker {
	return &worker{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
	}
}

// acceptPayload covers the field spellings the worker fleet emits for the
// assigned handle.
type acceptPayload struct {
	ExternalJobID        string `json:"external_job_id"`
	GenerationID         string `json:"generation_id"`
	ID                   string `json:"id"`
	EstimatedWaitSeconds int    `json:"estimated_wait_seconds"`
}

func (p acceptPayload) handle() string {
	switch {
	case p.ExternalJobID != "":
		return p.ExternalJobID
	case p.GenerationID != "":
		return p.GenerationID
	default:
		return p.ID
	}
}

func (w *worker) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling submit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if w.secret != "" {
		httpReq.Header.Set(SharedSecretHeader, w.secret)
	}

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("submitting to worker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("worker rejected submission: %s", resp.Status)
	}

	var payload acceptPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding worker response: %w", err)
	}

	handle := payload.handle()
	if handle == "" {
		return nil, fmt.Errorf("worker did not return a job handle")
	}

	return &SubmitResponse{
		ExternalJobID:        handle,
		EstimatedWaitSeconds: payload.EstimatedWaitSeconds,
	}, nil
}
