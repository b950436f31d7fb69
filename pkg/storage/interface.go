package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"slurmnode/pkg/models"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Queue dispatches job submissions from the API to workers.
type Queue interface {
	// Push adds a submission to the pending queue.
	Push(ctx context.Context, sub *models.Submission) error

	// Pop retrieves a submission for a consumer group member. A nil
	// submission with a nil error means nothing was pending.
	Pop(ctx context.Context, group, consumer string) (string, *models.Submission, error)

	// Ack acknowledges a submission as processed.
	Ack(ctx context.Context, group, msgID string) error

	// EnsureGroup makes sure the consumer group exists.
	EnsureGroup(ctx context.Context, group string) error
}

// StatusStore tracks the live status of submissions so the API can answer
// queries while a job is in flight. Entries expire; this is not a job
// history.
type StatusStore interface {
	// SetStatus records the lifecycle status of a submission.
	SetStatus(ctx context.Context, id uuid.UUID, status models.SubmissionStatus) error

	// SetResult records the terminal result of a submission.
	SetResult(ctx context.Context, result *models.SubmissionResult) error

	// Get returns the last known result snapshot for a submission, with
	// at least the Status field populated. ErrNotFound when unknown or
	// expired.
	Get(ctx context.Context, id uuid.UUID) (*models.SubmissionResult, error)
}

// LogStore archives collected job output.
type LogStore interface {
	// Store saves logs and returns a reference path or URL.
	Store(ctx context.Context, submissionID string, logs []byte) (string, error)

	// Retrieve fetches logs by reference.
	Retrieve(ctx context.Context, reference string) ([]byte, error)
}
