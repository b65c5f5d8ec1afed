package model

import (
	"encoding/json"
	"time"

	api "github.com/AgriAutomate/rocky-web-studio-sub002/api/v1alpha1"
	"github.com/google/uuid"
)

// GenerationJob is the durable record for one asynchronous generation request.
//
// ExternalJobID is assigned by the external worker and set exactly once at
// creation; the row is only created after the worker accepted the submission,
// so the column is never updated afterwards. It is the webhook lookup key.
type GenerationJob struct {
	ID               uuid.UUID `gorm:"primaryKey;"`
	OwnerID          string    `gorm:"index;not null"`
	InputParameters  []byte    `gorm:"type:jsonb"`
	ExternalJobID    *string   `gorm:"uniqueIndex"`
	ResultURI        *string
	FailureReason    *string
	RawWorkerPayload []byte `gorm:"type:jsonb"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type GenerationJobList []GenerationJob

// State derives the tagged status from the stored fields. Single source of
// truth for both the webhook merge and the poller read path.
func (j GenerationJob) State() api.JobState {
	return api.DeriveState(j.ResultURI, j.FailureReason)
}

func (j GenerationJob) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}
