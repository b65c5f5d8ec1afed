package store_test

import (
	"context"
	"fmt"
	"time"

	api "github.com/AgriAutomate/rocky-web-studio-sub002/api/v1alpha1"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/config"
	st "github.com/AgriAutomate/rocky-web-studio-sub002/internal/store"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/store/model"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

const (
	insertJobStm           = "INSERT INTO generation_jobs (id, owner_id, external_job_id, created_at, updated_at) VALUES ('%s', '%s', '%s', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);"
	insertCompletedJobStm  = "INSERT INTO generation_jobs (id, owner_id, external_job_id, result_uri, created_at, updated_at) VALUES ('%s', '%s', '%s', '%s', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);"
	deleteAllJobsStm       = "DELETE FROM generation_jobs;"
)

var _ = Describe("job store", Ordered, func() {
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

	Context("create", func() {
		It("successfully creates a job", func() {
			externalID := "ext-100"
			job, err := s.Job().Create(context.TODO(), model.GenerationJob{
				ID:              uuid.New(),
				OwnerID:         "org-1",
				InputParameters: []byte(`{"a":1}`),
				ExternalJobID:   &externalID,
			})
			Expect(err).To(BeNil())
			Expect(job.State().Phase).To(Equal(api.JobStatusPending))
			Expect(job.CreatedAt).NotTo(BeZero())
			Expect(job.UpdatedAt).NotTo(BeZero())
		})

		It("refuses a second job with the same external id", func() {
			externalID := "ext-100"
			_, err := s.Job().Create(context.TODO(), model.GenerationJob{ID: uuid.New(), OwnerID: "org-1", ExternalJobID: &externalID})
			Expect(err).To(BeNil())

			_, err = s.Job().Create(context.TODO(), model.GenerationJob{ID: uuid.New(), OwnerID: "org-2", ExternalJobID: &externalID})
			Expect(err).To(MatchError(st.ErrDuplicateKey))
		})
	})

	Context("get", func() {
		It("successfully gets a job by id", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "org-1", "ext-1"))
			Expect(tx.Error).To(BeNil())

			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.OwnerID).To(Equal("org-1"))
			Expect(*job.ExternalJobID).To(Equal("ext-1"))
		})

		It("returns ErrRecordNotFound for a missing id", func() {
			_, err := s.Job().Get(context.TODO(), uuid.New())
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})

		It("successfully gets a job by external id", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "org-1", "ext-2"))
			Expect(tx.Error).To(BeNil())

			job, err := s.Job().GetByExternalID(context.TODO(), "ext-2")
			Expect(err).To(BeNil())
			Expect(job.ID).To(Equal(id))
		})

		It("returns ErrRecordNotFound for a missing external id", func() {
			_, err := s.Job().GetByExternalID(context.TODO(), "ext-404")
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("update result", func() {
		It("sets the result uri and derives complete", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "org-1", "ext-3"))
			Expect(tx.Error).To(BeNil())

			resultURI := "https://studio.example.com/results/3"
			job, err := s.Job().UpdateResult(context.TODO(), id, &resultURI, nil, []byte(`{"status":"complete"}`))
			Expect(err).To(BeNil())
			Expect(job.State()).To(Equal(api.JobState{Phase: api.JobStatusComplete, ResultURI: resultURI}))
		})

		It("clears the result uri when the job failed", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertCompletedJobStm, id, "org-1", "ext-4", "https://studio.example.com/results/4"))
			Expect(tx.Error).To(BeNil())

			reason := "worker crashed"
			job, err := s.Job().UpdateResult(context.TODO(), id, nil, &reason, []byte(`{"status":"failed"}`))
			Expect(err).To(BeNil())
			Expect(job.ResultURI).To(BeNil())
			Expect(job.State()).To(Equal(api.JobState{Phase: api.JobStatusFailed, FailureReason: reason}))
		})

		It("never touches the external job id", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "org-1", "ext-5"))
			Expect(tx.Error).To(BeNil())

			resultURI := "https://studio.example.com/results/5"
			_, err := s.Job().UpdateResult(context.TODO(), id, &resultURI, nil, nil)
			Expect(err).To(BeNil())

			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(*job.ExternalJobID).To(Equal("ext-5"))
		})

		It("advances updated_at", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "org-1", "ext-6"))
			Expect(tx.Error).To(BeNil())

			before, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())

			time.Sleep(10 * time.Millisecond)

			resultURI := "https://studio.example.com/results/6"
			after, err := s.Job().UpdateResult(context.TODO(), id, &resultURI, nil, nil)
			Expect(err).To(BeNil())
			Expect(after.UpdatedAt.After(before.UpdatedAt)).To(BeTrue())
		})

		It("returns ErrRecordNotFound for a missing job", func() {
			resultURI := "https://studio.example.com/results/7"
			_, err := s.Job().UpdateResult(context.TODO(), uuid.New(), &resultURI, nil, nil)
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("transaction", func() {
		It("rolls back an uncommitted create", func() {
			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			externalID := "ext-tx"
			_, err = s.Job().Create(ctx, model.GenerationJob{ID: uuid.New(), OwnerID: "org-1", ExternalJobID: &externalID})
			Expect(err).To(BeNil())

			_, err = st.Rollback(ctx)
			Expect(err).To(BeNil())

			_, err = s.Job().GetByExternalID(context.TODO(), "ext-tx")
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})

		It("persists a committed create", func() {
			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			externalID := "ext-tx-2"
			_, err = s.Job().Create(ctx, model.GenerationJob{ID: uuid.New(), OwnerID: "org-1", ExternalJobID: &externalID})
			Expect(err).To(BeNil())

			_, err = st.Commit(ctx)
			Expect(err).To(BeNil())

			job, err := s.Job().GetByExternalID(context.TODO(), "ext-tx-2")
			Expect(err).To(BeNil())
			Expect(job.OwnerID).To(Equal("org-1"))
		})
	})
})
