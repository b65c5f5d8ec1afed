package mappers

import (
	"encoding/json"

	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/store/model"
	"github.com/google/uuid"
)

type SubmissionForm struct {
	OwnerID         string
	InputParameters json.RawMessage
}

func (f SubmissionForm) ToJob(externalJobID string) model.GenerationJob {
	return model.GenerationJob{
		ID:              uuid.New(),
		OwnerID:         f.OwnerID,
		InputParameters: []byte(f.InputParameters),
		ExternalJobID:   &externalJobID,
	}
}
