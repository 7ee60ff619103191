package service

import (
	"context"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

// PrintJob is what the print backend receives for one dispatch.
type PrintJob struct {
	TicketID     string
	TicketNumber string
	JobName      string
	OwnerID      string
	Printer      string
	Payload      []byte
	Options      map[string]string
	Copies       int
	// ForceGrayscale asks the backend to render gray because the device
	// cannot be told to print monochrome.
	ForceGrayscale bool
	// ForceBookletOrder asks the backend to impose booklet page order
	// because the device cannot.
	ForceBookletOrder bool
}

// PrintBackend hands jobs to physical devices. Submit is atomic: it either
// returns a print-out id or an error with nothing queued.
type PrintBackend interface {
	Submit(ctx context.Context, job PrintJob) (string, error)
}

// QueueDepthPublisher receives the pending ticket counts after every change.
type QueueDepthPublisher interface {
	Publish(ctx context.Context, stats domain.QueueStats) error
}

// JobState is a status reported by the print backend.
type JobState string

const (
	JobStatePending    JobState = "PENDING"
	JobStateProcessing JobState = "PROCESSING"
	JobStateCompleted  JobState = "COMPLETED"
	JobStateCanceled   JobState = "CANCELED"
	JobStateAborted    JobState = "ABORTED"
)

// Valid reports whether s is a known state.
func (s JobState) Valid() bool {
	switch s {
	case JobStatePending, JobStateProcessing, JobStateCompleted, JobStateCanceled, JobStateAborted:
		return true
	}
	return false
}
