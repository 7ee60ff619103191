// Package ticketstore keeps pending job tickets in memory, backed by one
// descriptor file and, for print tickets, one payload file per ticket.
package ticketstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

// Listener is told about tickets leaving the store.
type Listener interface {
	TicketCompleted(ctx context.Context, ticket *domain.Ticket)
	TicketCanceled(ctx context.Context, ticket *domain.Ticket)
}

// Filter selects cached tickets. Empty fields match everything.
type Filter struct {
	OwnerID string
	Search  string
	GroupID string
}

type entry struct {
	ticket *domain.Ticket
	digest string
}

// Store is the durable index of pending tickets. Mutations and statistics
// are serialized by one mutex; lookups by identity read a concurrent map.
type Store struct {
	dir    string
	logger *zap.Logger

	mu       sync.Mutex
	started  bool
	codec    *payloadCodec
	listener Listener
	byNumber map[string]string
	reopened map[string]struct{}
	stats    domain.QueueStats

	byID sync.Map // id -> *entry, entries are never mutated in place
}

// New returns a store for dir. Call Start before use.
func New(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dir:      dir,
		logger:   logger.Named("ticketstore"),
		byNumber: map[string]string{},
		reopened: map[string]struct{}{},
	}
}

// SetListener registers the receiver of completion and cancellation events.
func (s *Store) SetListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// Dir returns the ticket directory.
func (s *Store) Dir() string {
	return s.dir
}

// Start replays the ticket directory and builds the indexes.
func (s *Store) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	codec, err := newPayloadCodec()
	if err != nil {
		return err
	}
	result, err := Replay(s.dir, s.logger)
	if err != nil {
		codec.close()
		return err
	}

	s.codec = codec
	s.byNumber = make(map[string]string, len(result.Tickets))
	s.reopened = map[string]struct{}{}
	s.stats = domain.QueueStats{}
	s.byID.Range(func(k, _ any) bool {
		s.byID.Delete(k)
		return true
	})
	for _, rt := range result.Tickets {
		s.index(&entry{ticket: rt.Ticket, digest: rt.PayloadDigest})
	}
	s.started = true

	s.logger.Info("ticket store started",
		zap.String("dir", s.dir),
		zap.Int("copy_tickets", s.stats.CopyTickets),
		zap.Int("print_tickets", s.stats.PrintTickets),
		zap.Int("healed_files", len(result.Removed)))
	return nil
}

// Shutdown releases the store. Files stay on disk for the next Start.
func (s *Store) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.codec.close()
	s.codec = nil
	s.started = false
	s.logger.Info("ticket store stopped")
}

// Add persists a new ticket and then makes it visible. Print tickets must
// come with their payload.
func (s *Store) Add(ticket *domain.Ticket, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrStoreClosed
	}
	if _, ok := s.byID.Load(ticket.ID); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTicket, ticket.ID)
	}
	if _, ok := s.byNumber[ticket.Number]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNumber, ticket.Number)
	}
	if ticket.HasPayload() && payload == nil {
		return ErrPayloadRequired
	}

	var digest string
	if ticket.HasPayload() {
		digest = payloadDigest(payload)
		if err := writeFileAtomic(payloadPath(s.dir, ticket.ID), s.codec.compress(payload)); err != nil {
			return fmt.Errorf("write payload %s: %w", ticket.ID, err)
		}
	}
	data, err := encodeDescriptor(ticket, digest)
	if err == nil {
		err = writeFileAtomic(descriptorPath(s.dir, ticket.ID), data)
	}
	if err != nil {
		if ticket.HasPayload() {
			if rmErr := removeIfExists(payloadPath(s.dir, ticket.ID)); rmErr != nil {
				s.logger.Warn("payload left behind", zap.String("ticket_id", ticket.ID), zap.Error(rmErr))
			}
		}
		return fmt.Errorf("write descriptor %s: %w", ticket.ID, err)
	}

	s.index(&entry{ticket: ticket.Clone(), digest: digest})
	return nil
}

// Update rewrites the descriptor of a cached ticket and refreshes the
// indexes. The payload is never rewritten.
func (s *Store) Update(ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrStoreClosed
	}
	current, ok := s.load(ticket.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTicketNotFound, ticket.ID)
	}
	if owner, taken := s.byNumber[ticket.Number]; taken && owner != ticket.ID {
		return fmt.Errorf("%w: %s", ErrDuplicateNumber, ticket.Number)
	}

	data, err := encodeDescriptor(ticket, current.digest)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(descriptorPath(s.dir, ticket.ID), data); err != nil {
		return fmt.Errorf("write descriptor %s: %w", ticket.ID, err)
	}

	s.unindex(current)
	s.index(&entry{ticket: ticket.Clone(), digest: current.digest})
	return nil
}

// Remove deletes a ticket's files and index entries, then tells the
// listener whether the ticket completed or was canceled.
func (s *Store) Remove(ctx context.Context, id string, completed bool) (*domain.Ticket, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	current, ok := s.load(id)
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, id)
	}
	if err := removeIfExists(descriptorPath(s.dir, id)); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("remove descriptor %s: %w", id, err)
	}
	if err := removeIfExists(payloadPath(s.dir, id)); err != nil {
		// healed as an orphan on the next start
		s.logger.Warn("payload left behind", zap.String("ticket_id", id), zap.Error(err))
	}
	s.unindex(current)
	listener := s.listener
	s.mu.Unlock()

	removed := current.ticket.Clone()
	if listener != nil {
		if completed {
			listener.TicketCompleted(ctx, removed.Clone())
		} else {
			listener.TicketCanceled(ctx, removed.Clone())
		}
	}
	return removed, nil
}

// Get returns a copy of a cached ticket.
func (s *Store) Get(id string) (*domain.Ticket, error) {
	e, ok := s.load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, id)
	}
	return e.ticket.Clone(), nil
}

// GetByNumber returns a copy of the ticket with the given number.
func (s *Store) GetByNumber(number string) (*domain.Ticket, error) {
	s.mu.Lock()
	id, ok := s.byNumber[number]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: number %s", ErrTicketNotFound, number)
	}
	return s.Get(id)
}

// GetByPrintOut returns the ticket dispatched under printOutID.
func (s *Store) GetByPrintOut(printOutID string) (*domain.Ticket, error) {
	var found *domain.Ticket
	s.byID.Range(func(_, v any) bool {
		t := v.(*entry).ticket
		if t.PrintOutID != nil && *t.PrintOutID == printOutID {
			found = t.Clone()
			return false
		}
		return true
	})
	if found == nil {
		return nil, fmt.Errorf("%w: print-out %s", ErrTicketNotFound, printOutID)
	}
	return found, nil
}

// ReopenedIDs returns the identities of cached reopened tickets.
func (s *Store) ReopenedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.reopened))
	for id := range s.reopened {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Filter returns tickets matching f, re-read from their descriptor files so
// callers never hold references into the cache. Tickets are ordered by
// delivery time, then submit time.
func (s *Store) Filter(f Filter) ([]*domain.Ticket, error) {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var ids []string
	s.byID.Range(func(k, v any) bool {
		if matches(v.(*entry).ticket, f, search) {
			ids = append(ids, k.(string))
		}
		return true
	})

	tickets := make([]*domain.Ticket, 0, len(ids))
	for _, id := range ids {
		data, err := os.ReadFile(descriptorPath(s.dir, id))
		if err != nil {
			if os.IsNotExist(err) {
				continue // removed meanwhile
			}
			return nil, fmt.Errorf("read descriptor %s: %w", id, err)
		}
		t, _, err := decodeDescriptor(data)
		if err != nil {
			return nil, fmt.Errorf("decode descriptor %s: %w", id, err)
		}
		tickets = append(tickets, t)
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		a, b := tickets[i], tickets[j]
		if !a.DeliveryAt.Equal(b.DeliveryAt) {
			return a.DeliveryAt.Before(b.DeliveryAt)
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.Number < b.Number
	})
	return tickets, nil
}

func matches(t *domain.Ticket, f Filter, search string) bool {
	if f.OwnerID != "" && t.OwnerID != f.OwnerID {
		return false
	}
	if f.GroupID != "" && t.PrinterGroup != f.GroupID {
		return false
	}
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Number), search) ||
		strings.Contains(strings.ToLower(t.JobName), search)
}

// Payload returns the raw document bytes of a print ticket.
func (s *Store) Payload(id string) ([]byte, error) {
	e, ok := s.load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, id)
	}
	if !e.ticket.HasPayload() {
		return nil, nil
	}
	s.mu.Lock()
	codec := s.codec
	s.mu.Unlock()
	if codec == nil {
		return nil, ErrStoreClosed
	}
	stored, err := os.ReadFile(payloadPath(s.dir, id))
	if err != nil {
		return nil, fmt.Errorf("read payload %s: %w", id, err)
	}
	raw, err := codec.decompress(stored)
	if errors.Is(err, ErrStoreClosed) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPayloadCorrupt, id, err)
	}
	if payloadDigest(raw) != e.digest {
		return nil, fmt.Errorf("%w: %s", ErrPayloadCorrupt, id)
	}
	return raw, nil
}

// Stats returns a snapshot of the pending ticket counts.
func (s *Store) Stats() domain.QueueStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Len returns the number of cached tickets.
func (s *Store) Len() int {
	return s.Stats().Total()
}

func (s *Store) load(id string) (*entry, bool) {
	v, ok := s.byID.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

// index and unindex must be called with mu held.
func (s *Store) index(e *entry) {
	t := e.ticket
	s.byID.Store(t.ID, e)
	s.byNumber[t.Number] = t.ID
	if t.Reopened {
		s.reopened[t.ID] = struct{}{}
	}
	s.stats = applyDelta(s.stats, t, 1)
}

func (s *Store) unindex(e *entry) {
	t := e.ticket
	s.byID.Delete(t.ID)
	if s.byNumber[t.Number] == t.ID {
		delete(s.byNumber, t.Number)
	}
	delete(s.reopened, t.ID)
	s.stats = applyDelta(s.stats, t, -1)
}

func applyDelta(stats domain.QueueStats, t *domain.Ticket, delta int) domain.QueueStats {
	if t.IsCopy() {
		stats.CopyTickets += delta
	} else {
		stats.PrintTickets += delta
	}
	return stats
}
