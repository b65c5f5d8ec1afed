package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	api "github.com/AgriAutomate/rocky-web-studio-sub002/api/v1alpha1"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/client"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/config"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/service"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/service/mappers"
	st "github.com/AgriAutomate/rocky-web-studio-sub002/internal/store"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

const (
	insertJobStm     = "INSERT INTO generation_jobs (id, owner_id, external_job_id, created_at, updated_at) VALUES ('%s', '%s', '%s', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);"
	deleteAllJobsStm = "DELETE FROM generation_jobs;"
)

// fakeWorker stands in for the external worker's accept endpoint.
type fakeWorker struct {
	resp     *client.SubmitResponse
	err      error
	lastReq  client.SubmitRequest
	requests int
}

func (f *fakeWorker) Submit(ctx context.Context, req client.SubmitRequest) (*client.SubmitResponse, error) {
	f.requests++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

var _ = Describe("job service", Ordered, func() {
	var (
		s      st.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		cfg := config.NewDefault()
		db, err := st.InitDB(cfg)
		Expect(err).To(BeNil())

		s = st.NewStore(db)
		gormdb = db
		Expect(s.InitialMigration()).To(Succeed())
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec(deleteAllJobsStm)
	})

	Context("submit", func() {
		It("persists a job once the worker accepted", func() {
			worker := &fakeWorker{resp: &client.SubmitResponse{ExternalJobID: "ext-1", EstimatedWaitSeconds: 180}}
			srv := service.NewJobService(s, worker, "https://api.example.com", 240)

			job, estimate, err := srv.Submit(context.TODO(), mappers.SubmissionForm{
				OwnerID:         "u1",
				InputParameters: json.RawMessage(`{"a":1}`),
			})
			Expect(err).To(BeNil())
			Expect(*job.ExternalJobID).To(Equal("ext-1"))
			Expect(estimate).To(Equal(180))
			Expect(worker.lastReq.CallbackURL).To(Equal("https://api.example.com/api/v1/webhooks/generation"))

			stored, err := s.Job().GetByExternalID(context.TODO(), "ext-1")
			Expect(err).To(BeNil())
			Expect(stored.OwnerID).To(Equal("u1"))
			Expect(stored.State().Phase).To(Equal(api.JobStatusPending))
		})

		It("falls back to the configured wait estimate", func() {
			worker := &fakeWorker{resp: &client.SubmitResponse{ExternalJobID: "ext-2"}}
			srv := service.NewJobService(s, worker, "https://api.example.com", 240)

			_, estimate, err := srv.Submit(context.TODO(), mappers.SubmissionForm{OwnerID: "u1"})
			Expect(err).To(BeNil())
			Expect(estimate).To(Equal(240))
		})

		It("creates no row when the worker rejects", func() {
			worker := &fakeWorker{err: errors.New("worker busy")}
			srv := service.NewJobService(s, worker, "https://api.example.com", 240)

			_, _, err := srv.Submit(context.TODO(), mappers.SubmissionForm{OwnerID: "u1"})
			Expect(err).ToNot(BeNil())

			var upstreamErr *service.ErrUpstreamSubmission
			Expect(errors.As(err, &upstreamErr)).To(BeTrue())

			var count int64
			gormdb.Table("generation_jobs").Count(&count)
			Expect(count).To(BeZero())
		})

		It("creates independent jobs on resubmission", func() {
			worker := &fakeWorker{resp: &client.SubmitResponse{ExternalJobID: "ext-3"}}
			srv := service.NewJobService(s, worker, "https://api.example.com", 240)

			first, _, err := srv.Submit(context.TODO(), mappers.SubmissionForm{OwnerID: "u1"})
			Expect(err).To(BeNil())

			worker.resp = &client.SubmitResponse{ExternalJobID: "ext-4"}
			second, _, err := srv.Submit(context.TODO(), mappers.SubmissionForm{OwnerID: "u1"})
			Expect(err).To(BeNil())

			Expect(first.ID).ToNot(Equal(second.ID))
			Expect(worker.requests).To(Equal(2))
		})
	})

	Context("get job", func() {
		It("returns the job to its owner", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "u1", "ext-10"))
			Expect(tx.Error).To(BeNil())

			srv := service.NewJobService(s, &fakeWorker{}, "https://api.example.com", 240)
			job, err := srv.GetJob(context.TODO(), "u1", id)
			Expect(err).To(BeNil())
			Expect(job.ID).To(Equal(id))
		})

		It("refuses another caller's job", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "u1", "ext-11"))
			Expect(tx.Error).To(BeNil())

			srv := service.NewJobService(s, &fakeWorker{}, "https://api.example.com", 240)
			_, err := srv.GetJob(context.TODO(), "u2", id)

			var forbiddenErr *service.ErrJobAccessForbidden
			Expect(errors.As(err, &forbiddenErr)).To(BeTrue())
		})

		It("returns not found for a missing job", func() {
			srv := service.NewJobService(s, &fakeWorker{}, "https://api.example.com", 240)
			_, err := srv.GetJob(context.TODO(), "u1", uuid.New())

			var notFoundErr *service.ErrResourceNotFound
			Expect(errors.As(err, &notFoundErr)).To(BeTrue())
		})
	})

	Context("apply completion", func() {
		var srv *service.JobService

		BeforeEach(func() {
			srv = service.NewJobService(s, &fakeWorker{}, "https://api.example.com", 240)
		})

		It("applies a completion and derives complete", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "u1", "ext-20"))
			Expect(tx.Error).To(BeNil())

			result, err := srv.ApplyCompletion(context.TODO(), api.CompletionWebhook{
				ExternalJobID: "ext-20",
				Status:        api.JobStatusComplete,
				ResultURI:     "https://x/y",
			})
			Expect(err).To(BeNil())
			Expect(result).To(Equal(service.CompletionApplied))

			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.State()).To(Equal(api.JobState{Phase: api.JobStatusComplete, ResultURI: "https://x/y"}))
			Expect(job.RawWorkerPayload).ToNot(BeEmpty())
		})

		It("treats identical replays as no-op duplicates", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "u1", "ext-21"))
			Expect(tx.Error).To(BeNil())

			payload := api.CompletionWebhook{
				ExternalJobID: "ext-21",
				Status:        api.JobStatusComplete,
				ResultURI:     "https://x/y",
			}

			result, err := srv.ApplyCompletion(context.TODO(), payload)
			Expect(err).To(BeNil())
			Expect(result).To(Equal(service.CompletionApplied))

			applied, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())

			time.Sleep(10 * time.Millisecond)

			for i := 0; i < 3; i++ {
				result, err = srv.ApplyCompletion(context.TODO(), payload)
				Expect(err).To(BeNil())
				Expect(result).To(Equal(service.CompletionDuplicate))
			}

			replayed, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(replayed.UpdatedAt).To(Equal(applied.UpdatedAt))
			Expect(replayed.State()).To(Equal(applied.State()))
		})

		It("sets a default reason when a failure carries no message", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "u1", "ext-22"))
			Expect(tx.Error).To(BeNil())

			result, err := srv.ApplyCompletion(context.TODO(), api.CompletionWebhook{
				ExternalJobID: "ext-22",
				Status:        api.JobStatusFailed,
			})
			Expect(err).To(BeNil())
			Expect(result).To(Equal(service.CompletionApplied))

			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.State().Phase).To(Equal(api.JobStatusFailed))
			Expect(job.State().FailureReason).ToNot(BeEmpty())
		})

		It("clears the result when a failure follows a completion", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "u1", "ext-23"))
			Expect(tx.Error).To(BeNil())

			_, err := srv.ApplyCompletion(context.TODO(), api.CompletionWebhook{
				ExternalJobID: "ext-23",
				Status:        api.JobStatusComplete,
				ResultURI:     "https://x/y",
			})
			Expect(err).To(BeNil())

			result, err := srv.ApplyCompletion(context.TODO(), api.CompletionWebhook{
				ExternalJobID: "ext-23",
				Status:        api.JobStatusFailed,
				ErrorMessage:  "rendering crashed",
			})
			Expect(err).To(BeNil())
			Expect(result).To(Equal(service.CompletionApplied))

			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.ResultURI).To(BeNil())
			Expect(job.State()).To(Equal(api.JobState{Phase: api.JobStatusFailed, FailureReason: "rendering crashed"}))
		})

		It("keeps terminal fields on a pending notification", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "u1", "ext-24"))
			Expect(tx.Error).To(BeNil())

			_, err := srv.ApplyCompletion(context.TODO(), api.CompletionWebhook{
				ExternalJobID: "ext-24",
				Status:        api.JobStatusComplete,
				ResultURI:     "https://x/y",
			})
			Expect(err).To(BeNil())

			result, err := srv.ApplyCompletion(context.TODO(), api.CompletionWebhook{
				ExternalJobID: "ext-24",
				Status:        api.JobStatusPending,
			})
			Expect(err).To(BeNil())
			Expect(result).To(Equal(service.CompletionApplied))

			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.State()).To(Equal(api.JobState{Phase: api.JobStatusComplete, ResultURI: "https://x/y"}))
		})

		It("acknowledges unknown jobs without creating a row", func() {
			result, err := srv.ApplyCompletion(context.TODO(), api.CompletionWebhook{
				ExternalJobID: "ext-404",
				Status:        api.JobStatusComplete,
				ResultURI:     "https://x/y",
			})
			Expect(err).To(BeNil())
			Expect(result).To(Equal(service.CompletionUnknownJob))

			_, err = s.Job().GetByExternalID(context.TODO(), "ext-404")
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})
})
