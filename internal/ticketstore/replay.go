package ticketstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

// ReplayedTicket is a ticket recovered from its descriptor file.
type ReplayedTicket struct {
	Ticket        *domain.Ticket
	PayloadDigest string
}

// ReplayResult is the reconciled content of a ticket directory.
type ReplayResult struct {
	Tickets []ReplayedTicket
	// Removed lists the file names deleted while healing the directory.
	Removed []string
}

// Replay reconciles a ticket directory after a restart. Descriptors that do
// not decode with the current schema are deleted together with their
// payload, as are print descriptors whose payload is missing, payloads whose
// descriptor is missing, tickets repeating a number already replayed, and
// leftovers of interrupted atomic writes. Nothing found in the directory is
// fatal; only failing to list or heal it is.
func Replay(dir string, logger *zap.Logger) (ReplayResult, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ReplayResult{}, fmt.Errorf("create ticket dir: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("read ticket dir: %w", err)
	}

	var result ReplayResult
	remove := func(name, reason string) error {
		if err := removeIfExists(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("heal %s: %w", name, err)
		}
		result.Removed = append(result.Removed, name)
		logger.Warn("removed ticket file", zap.String("file", name), zap.String("reason", reason))
		return nil
	}

	payloads := map[string]bool{}
	var descriptors []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case isTempFile(name):
			if err := remove(name, "interrupted write"); err != nil {
				return ReplayResult{}, err
			}
		case strings.HasSuffix(name, DescriptorExt):
			descriptors = append(descriptors, name)
		case strings.HasSuffix(name, PayloadExt):
			payloads[strings.TrimSuffix(name, PayloadExt)] = true
		default:
			logger.Debug("ignoring foreign file in ticket dir", zap.String("file", name))
		}
	}
	sort.Strings(descriptors)

	described := map[string]bool{}
	for _, name := range descriptors {
		id := strings.TrimSuffix(name, DescriptorExt)
		data, err := os.ReadFile(filepath.Join(dir, name))
		var (
			ticket *domain.Ticket
			digest string
		)
		if err == nil {
			ticket, digest, err = decodeDescriptor(data)
		}
		if err == nil && ticket.ID != id {
			err = fmt.Errorf("%w: descriptor of %s holds ticket %s", ErrSchemaMismatch, id, ticket.ID)
		}
		if err == nil && ticket.HasPayload() && !payloads[id] {
			err = fmt.Errorf("payload of print ticket %s is missing", id)
		}
		if err != nil {
			if rmErr := remove(name, err.Error()); rmErr != nil {
				return ReplayResult{}, rmErr
			}
			if payloads[id] {
				if rmErr := remove(id+PayloadExt, "descriptor discarded"); rmErr != nil {
					return ReplayResult{}, rmErr
				}
				delete(payloads, id)
			}
			continue
		}
		described[id] = true
		result.Tickets = append(result.Tickets, ReplayedTicket{Ticket: ticket, PayloadDigest: digest})
	}

	for id := range payloads {
		if described[id] {
			continue
		}
		if err := remove(id+PayloadExt, "payload without descriptor"); err != nil {
			return ReplayResult{}, err
		}
	}

	sort.SliceStable(result.Tickets, func(i, j int) bool {
		a, b := result.Tickets[i].Ticket, result.Tickets[j].Ticket
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.ID < b.ID
	})

	numbers := map[string]bool{}
	kept := result.Tickets[:0]
	for _, rt := range result.Tickets {
		if !numbers[rt.Ticket.Number] {
			numbers[rt.Ticket.Number] = true
			kept = append(kept, rt)
			continue
		}
		id := rt.Ticket.ID
		if err := remove(id+DescriptorExt, "duplicate ticket number "+rt.Ticket.Number); err != nil {
			return ReplayResult{}, err
		}
		if payloads[id] {
			if err := remove(id+PayloadExt, "descriptor discarded"); err != nil {
				return ReplayResult{}, err
			}
		}
	}
	result.Tickets = kept
	return result, nil
}
