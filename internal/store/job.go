package store

import (
	"context"
	"errors"

	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/store/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Job interface {
	Create(ctx context.Context, job model.GenerationJob) (*model.GenerationJob, error)
	Get(ctx context.Context, id uuid.UUID) (*model.GenerationJob, error)
	GetByExternalID(ctx context.Context, externalJobID string) (*model.GenerationJob, error)
	UpdateResult(ctx context.Context, id uuid.UUID, resultURI, failureReason *string, rawPayload []byte) (*model.GenerationJob, error)
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job model.GenerationJob) (*model.GenerationJob, error) {
	result := s.getDB(ctx).Create(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, result.Error
	}
	return &job, nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*model.GenerationJob, error) {
	var job model.GenerationJob
	result := s.getDB(ctx).First(&job, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &job, nil
}

func (s *JobStore) GetByExternalID(ctx context.Context, externalJobID string) (*model.GenerationJob, error) {
	var job model.GenerationJob
	result := s.getDB(ctx).First(&job, "external_job_id = ?", externalJobID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &job, nil
}

// UpdateResult atomically replaces the terminal fields and the traceability
// payload in one statement. ExternalJobID is deliberately outside the select
// list: once set it never changes.
func (s *JobStore) UpdateResult(ctx context.Context, id uuid.UUID, resultURI, failureReason *string, rawPayload []byte) (*model.GenerationJob, error) {
	job := model.GenerationJob{
		ID:               id,
		ResultURI:        resultURI,
		FailureReason:    failureReason,
		RawWorkerPayload: rawPayload,
	}

	result := s.getDB(ctx).Model(&job).
		Clauses(clause.Returning{}).
		Select("result_uri", "failure_reason", "raw_worker_payload").
		Updates(&job)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}

	return &job, nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
