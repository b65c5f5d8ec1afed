package poller

import (
	"context"
	"errors"
	"time"

	api "github.com/AgriAutomate/rocky-web-studio-sub002/api/v1alpha1"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/store"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/store/model"
	"github.com/AgriAutomate/rocky-web-studio-sub002/pkg/metrics"
	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"
)

const (
	// DefaultMaxTotal caps a poll loop regardless of the worker's estimate.
	DefaultMaxTotal = 300 * time.Second

	// progressCeiling is the highest percentage reported before the job is
	// actually observed complete.
	progressCeiling = 98
)

// Outcome is how a poll loop ended.
type Outcome int

const (
	OutcomeComplete Outcome = iota
	OutcomeFailed
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

type Options struct {
	// MaxTotal is the poll budget. Zero means DefaultMaxTotal.
	MaxTotal time.Duration
	// EstimatedWait drives the progress percentage. Zero disables it.
	EstimatedWait time.Duration
	// OnProgress, when set, is called once per iteration.
	OnProgress func(Progress)
}

type Progress struct {
	Percent int
	Elapsed time.Duration
	Attempt int
}

type Result struct {
	Outcome       Outcome
	ResultURI     string
	FailureReason string
	Attempts      int
	Elapsed       time.Duration
}

// JobReader is the read-only slice of the job store the poller needs.
type JobReader interface {
	GetByExternalID(ctx context.Context, externalJobID string) (*model.GenerationJob, error)
}

// Poller watches a job row until it turns terminal or the budget runs out.
// It never writes; the webhook handler owns the terminal fields.
type Poller struct {
	jobs   JobReader
	jitter jitterbug.Jitter
	log    *zap.SugaredLogger

	// test hooks
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPoller(jobs JobReader) *Poller {
	return &Poller{
		jobs:   jobs,
		jitter: &jitterbug.Norm{Stdev: 500 * time.Millisecond},
		log:    zap.S().Named("poller"),
		now:    time.Now,
		sleep:  sleepWithContext,
	}
}

// WaitForTerminal polls the job row until DeriveStatus reports a terminal
// state. Intervals back off with elapsed time, each one jittered. Transient
// read errors and missing rows count as still pending; the loop stops on
// budget exhaustion or context cancellation.
func (p *Poller) WaitForTerminal(ctx context.Context, externalJobID string, opts Options) (Result, error) {
	maxTotal := opts.MaxTotal
	if maxTotal <= 0 {
		maxTotal = DefaultMaxTotal
	}

	start := p.now()
	attempts := 0

	for {
		attempts++
		job, err := p.jobs.GetByExternalID(ctx, externalJobID)
		elapsed := p.now().Sub(start)

		if err != nil {
			if !errors.Is(err, store.ErrRecordNotFound) {
				p.log.Warnw("transient read error while polling",
					"external_job_id", externalJobID, "attempt", attempts, "error", err)
			}
		} else {
			state := job.State()
			if state.Terminal() {
				return p.finish(state, attempts, elapsed, opts), nil
			}
		}

		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Percent: progressPercent(elapsed, opts.EstimatedWait),
				Elapsed: elapsed,
				Attempt: attempts,
			})
		}

		if elapsed >= maxTotal {
			metrics.IncreasePollsTotalMetric(metrics.PollTimeout)
			return Result{Outcome: OutcomeTimeout, Attempts: attempts, Elapsed: elapsed}, nil
		}

		if err := p.sleep(ctx, p.jitter.Jitter(Interval(elapsed))); err != nil {
			return Result{}, err
		}
	}
}

func (p *Poller) finish(state api.JobState, attempts int, elapsed time.Duration, opts Options) Result {
	result := Result{Attempts: attempts, Elapsed: elapsed}

	switch state.Phase {
	case api.JobStatusComplete:
		result.Outcome = OutcomeComplete
		result.ResultURI = state.ResultURI
		metrics.IncreasePollsTotalMetric(metrics.PollComplete)
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{Percent: 100, Elapsed: elapsed, Attempt: attempts})
		}
	case api.JobStatusFailed:
		result.Outcome = OutcomeFailed
		result.FailureReason = state.FailureReason
		metrics.IncreasePollsTotalMetric(metrics.PollFailed)
	}

	return result
}

// Interval returns the base poll interval for the given elapsed time: fast
// while the job is young, then backing off as the wait drags on.
func Interval(elapsed time.Duration) time.Duration {
	switch {
	case elapsed < 60*time.Second:
		return 5 * time.Second
	case elapsed < 180*time.Second:
		return 10 * time.Second
	default:
		return 30 * time.Second
	}
}

func progressPercent(elapsed, estimatedWait time.Duration) int {
	if estimatedWait <= 0 {
		return 0
	}
	percent := int(elapsed * 100 / estimatedWait)
	if percent > progressCeiling {
		return progressCeiling
	}
	return percent
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
