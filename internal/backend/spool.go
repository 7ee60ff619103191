// Package backend hands dispatched tickets to the print system.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/jobticket-service/internal/service"
)

const (
	jobSuffix     = ".job.json"
	payloadSuffix = ".pdf"
	tmpPrefix     = ".tmp-"
)

// ErrSpoolUnavailable is returned when the spool folder cannot be used.
var ErrSpoolUnavailable = errors.New("spool folder unavailable")

// Spool is a hot-folder print backend. Each job becomes a payload file and a
// job file in a per-printer folder; the job file is written last, so a
// watcher never sees a job without its payload. Status comes back through
// the backend status feed.
type Spool struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// jobFile is what the spool watcher reads.
type jobFile struct {
	PrintOutID        string            `json:"print_out_id"`
	TicketID          string            `json:"ticket_id"`
	TicketNumber      string            `json:"ticket_number"`
	JobName           string            `json:"job_name"`
	Owner             string            `json:"owner"`
	Printer           string            `json:"printer"`
	Copies            int               `json:"copies"`
	Options           map[string]string `json:"options"`
	ForceGrayscale    bool              `json:"force_grayscale,omitempty"`
	ForceBookletOrder bool              `json:"force_booklet_order,omitempty"`
	Payload           string            `json:"payload"`
	SubmittedAt       time.Time         `json:"submitted_at"`
}

// NewSpool returns a backend writing below dir.
func NewSpool(dir string, logger *zap.Logger) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpoolUnavailable, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Spool{dir: dir, logger: logger.Named("spool"), now: time.Now}, nil
}

// Submit implements service.PrintBackend.
func (s *Spool) Submit(ctx context.Context, job service.PrintJob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if job.Printer == "" || filepath.Base(job.Printer) != job.Printer {
		return "", fmt.Errorf("invalid printer name %q", job.Printer)
	}
	folder := filepath.Join(s.dir, job.Printer)
	if err := os.MkdirAll(folder, 0o750); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSpoolUnavailable, err)
	}

	id := uuid.NewString()
	payloadName := id + payloadSuffix
	if err := writeAtomic(folder, payloadName, job.Payload); err != nil {
		return "", err
	}

	data, err := json.Marshal(jobFile{
		PrintOutID:        id,
		TicketID:          job.TicketID,
		TicketNumber:      job.TicketNumber,
		JobName:           job.JobName,
		Owner:             job.OwnerID,
		Printer:           job.Printer,
		Copies:            job.Copies,
		Options:           job.Options,
		ForceGrayscale:    job.ForceGrayscale,
		ForceBookletOrder: job.ForceBookletOrder,
		Payload:           payloadName,
		SubmittedAt:       s.now().UTC(),
	})
	if err == nil {
		err = writeAtomic(folder, id+jobSuffix, data)
	}
	if err != nil {
		_ = os.Remove(filepath.Join(folder, payloadName))
		return "", err
	}

	s.logger.Info("job spooled",
		zap.String("print_out_id", id),
		zap.String("printer", job.Printer),
		zap.String("ticket_number", job.TicketNumber),
		zap.Int("copies", job.Copies))
	return id, nil
}

func writeAtomic(dir, name string, data []byte) error {
	f, err := os.CreateTemp(dir, tmpPrefix+name+"-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSpoolUnavailable, err)
	}
	tmp := f.Name()
	_, err = f.Write(data)
	if syncErr := f.Sync(); err == nil {
		err = syncErr
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp, filepath.Join(dir, name))
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("spool %s: %w", name, err)
	}
	return nil
}
