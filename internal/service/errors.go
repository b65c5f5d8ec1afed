package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id uuid.UUID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrJobNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "generation job")
}

type ErrJobAccessForbidden struct {
	error
}

func NewErrJobAccessForbidden(id uuid.UUID) *ErrJobAccessForbidden {
	return &ErrJobAccessForbidden{fmt.Errorf("generation job %s is not owned by the caller", id)}
}

// ErrUpstreamSubmission means the external worker rejected the submission or
// was unreachable. No job row exists when it is returned.
type ErrUpstreamSubmission struct {
	error
}

func NewErrUpstreamSubmission(err error) *ErrUpstreamSubmission {
	return &ErrUpstreamSubmission{fmt.Errorf("upstream submission failed: %w", err)}
}
