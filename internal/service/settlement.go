package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/jobticket-service/internal/domain"
	"github.com/spec-kit/jobticket-service/internal/events"
	"github.com/spec-kit/jobticket-service/internal/ticketnumber"
	apperrors "github.com/spec-kit/jobticket-service/pkg/util"
)

// Settle charges a ticket without printing it, archives it and removes it
// from the store. The owner is notified as for a completed ticket. The
// charge is posted first; a later failure reverses it and drops the archive
// row, so the ticket stays pending with nothing recorded.
func (s *JobTicketService) Settle(ctx context.Context, id string, actor events.Actor) (_ *domain.Ticket, err error) {
	ctx, span := tracer.Start(ctx, "JobTicketService.Settle", trace.WithAttributes(attribute.String("ticket.id", id)))
	defer func() { endSpan(span, err) }()
	defer s.transitions.lock(id)()

	t, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if t.PrintOutID != nil {
		return nil, fmt.Errorf("settle %s: %w", t.Number, ErrAlreadyDispatched)
	}
	if t.Copies < 1 {
		return nil, fmt.Errorf("settle %s: %w", t.Number, ErrCopiesRequired)
	}
	if t.Cost == nil {
		return nil, fmt.Errorf("settle %s: %w", t.Number, ErrCostMissing)
	}
	if t.Option(domain.OptMedia) == "" {
		return nil, fmt.Errorf("settle %s: %w", t.Number, ErrMediaRequired)
	}

	charges, err := s.charges(t, *t.Cost)
	if err != nil {
		return nil, err
	}
	t.Charged = charges

	entries := ledgerEntries(t, domain.LedgerEntryCharge, charges, "settled")
	if err := s.post(ctx, entries); err != nil {
		return nil, fmt.Errorf("charge ticket %s: %w", t.Number, err)
	}
	if err := s.archiveTicket(ctx, t, domain.OutcomeSettled); err != nil {
		s.compensate(ctx, entries)
		return nil, err
	}
	removed, err := s.store.Remove(withActor(ctx, actor), t.ID, true)
	if err != nil {
		s.logger.Error("settled ticket not removed", zap.String("ticket_id", t.ID), zap.Error(err))
		s.unarchive(ctx, t)
		s.compensate(ctx, entries)
		return nil, err
	}

	s.logger.Info("ticket settled",
		zap.String("ticket_id", t.ID),
		zap.String("number", t.Number),
		zap.String("cost", t.Cost.String()))
	s.publishDepth(ctx)
	removed.Charged = charges
	return removed, nil
}

// Cancel removes a ticket without printing. Charges posted by an earlier
// dispatch that the device canceled are reversed. A ticket in flight on a
// device cannot be canceled here.
func (s *JobTicketService) Cancel(ctx context.Context, id string, actor events.Actor) (_ *domain.Ticket, err error) {
	ctx, span := tracer.Start(ctx, "JobTicketService.Cancel", trace.WithAttributes(attribute.String("ticket.id", id)))
	defer func() { endSpan(span, err) }()
	defer s.transitions.lock(id)()

	t, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if t.Status == domain.TicketStatusDispatched {
		return nil, fmt.Errorf("cancel %s: %w", t.Number, ErrAlreadyDispatched)
	}
	refund := ledgerEntries(t, domain.LedgerEntryReversal, t.Charged, "canceled")
	if err := s.post(ctx, refund); err != nil {
		return nil, fmt.Errorf("refund ticket %s: %w", t.Number, err)
	}

	removed, err := s.store.Remove(withActor(ctx, actor), t.ID, false)
	if err != nil {
		s.compensate(ctx, refund)
		return nil, err
	}
	s.logger.Info("ticket canceled", zap.String("ticket_id", t.ID), zap.String("number", t.Number))
	s.publishDepth(ctx)
	return removed, nil
}

// Reopen derives a new pending ticket from an archived one. Copy tickets
// must have been settled; print tickets need their archived payload. The
// new ticket has its own identity, the reopen number suffix and zeroed
// counters.
func (s *JobTicketService) Reopen(ctx context.Context, archivedTicketID string, actor events.Actor) (_ *domain.Ticket, err error) {
	ctx, span := tracer.Start(ctx, "JobTicketService.Reopen", trace.WithAttributes(attribute.String("ticket.id", archivedTicketID)))
	defer func() { endSpan(span, err) }()

	archived, err := s.archive.GetByTicketID(ctx, archivedTicketID)
	if err != nil {
		return nil, fmt.Errorf("load archived ticket %s: %w", archivedTicketID, err)
	}
	source := &archived.Ticket
	switch {
	case source.IsCopy() && archived.Outcome != domain.OutcomeSettled:
		return nil, fmt.Errorf("reopen %s (%s): %w", source.Number, archived.Outcome, ErrNotReopenable)
	case source.HasPayload() && len(archived.Payload) == 0:
		return nil, fmt.Errorf("reopen %s without payload: %w", source.Number, ErrNotReopenable)
	case archived.Outcome == domain.OutcomeCanceled:
		return nil, fmt.Errorf("reopen canceled %s: %w", source.Number, ErrNotReopenable)
	}

	now := s.now().UTC()
	t := source.Clone()
	t.ID = uuid.NewString()
	t.Number = ticketnumber.Reopened(source.Number)
	t.Reopened = true
	t.Status = domain.TicketStatusPending
	t.SubmittedAt = now
	t.DeliveryAt = now.Add(s.cfg.DeliveryTTL())
	t.Copies = 0
	t.Sheets = 0
	t.Cost = decimalPtr(decimal.Zero)
	t.Accounts = nil
	t.Charged = nil
	t.RedirectPrinter = nil
	t.PrintOutID = nil

	var payload []byte
	if t.HasPayload() {
		payload = archived.Payload
	}
	if err := s.store.Add(t, payload); err != nil {
		return nil, fmt.Errorf("reopen %s: %w", source.Number, err)
	}

	s.logger.Info("ticket reopened",
		zap.String("ticket_id", t.ID),
		zap.String("number", t.Number),
		zap.String("source_ticket_id", source.ID))
	s.publishDepth(ctx)
	s.publishEvent(ctx, events.EventTicketReopened, t, actor, events.TicketReopenedPayload{
		SourceTicketID: source.ID,
		SourceNumber:   source.Number,
	})
	return t.Clone(), nil
}

func (s *JobTicketService) archiveTicket(ctx context.Context, t *domain.Ticket, outcome domain.TicketOutcome) error {
	var payload []byte
	if t.HasPayload() {
		raw, err := s.store.Payload(t.ID)
		if err != nil {
			return fmt.Errorf("archive %s: %w", t.Number, err)
		}
		payload = raw
	}
	archived := &domain.ArchivedTicket{
		Ticket:     *t.Clone(),
		Outcome:    outcome,
		Payload:    payload,
		ArchivedAt: s.now().UTC(),
	}
	if err := s.archive.Save(ctx, archived); err != nil {
		return fmt.Errorf("archive %s: %w", t.Number, err)
	}
	return nil
}

// charges splits amount across the ticket's accounts. Tickets without an
// account set are not charged.
func (s *JobTicketService) charges(t *domain.Ticket, amount decimal.Decimal) ([]domain.AccountCharge, error) {
	if t.Accounts == nil || len(t.Accounts.Weights) == 0 {
		return nil, nil
	}
	charges, err := s.splitter.Split(amount, *t.Accounts)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid account weights", map[string]any{"accounts": err.Error()})
	}
	return charges, nil
}

// unarchive drops the archive row of a ticket that is still in the store.
func (s *JobTicketService) unarchive(ctx context.Context, t *domain.Ticket) {
	if err := s.archive.Delete(ctx, t.ID); err != nil {
		s.logger.Error("archive row left for pending ticket",
			zap.String("ticket_id", t.ID), zap.String("number", t.Number), zap.Error(err))
	}
}

// post sends entries to the ledger. An empty batch is not posted.
func (s *JobTicketService) post(ctx context.Context, entries []domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.ledger.Post(ctx, entries)
}

// compensate posts the inverse of entries whose transition was not
// committed.
func (s *JobTicketService) compensate(ctx context.Context, entries []domain.LedgerEntry) {
	if len(entries) == 0 {
		return
	}
	inverse := make([]domain.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		e.Kind = invertKind(e.Kind)
		e.Comment = "rollback: " + e.Comment
		inverse = append(inverse, e)
	}
	if err := s.ledger.Post(ctx, inverse); err != nil {
		s.logger.Error("ledger rollback not posted",
			zap.String("ticket_id", entries[0].TicketID),
			zap.Int("entries", len(inverse)),
			zap.Error(err))
	}
}

func invertKind(kind domain.LedgerEntryKind) domain.LedgerEntryKind {
	if kind == domain.LedgerEntryCharge {
		return domain.LedgerEntryReversal
	}
	return domain.LedgerEntryCharge
}

func ledgerEntries(t *domain.Ticket, kind domain.LedgerEntryKind, charges []domain.AccountCharge, comment string) []domain.LedgerEntry {
	entries := make([]domain.LedgerEntry, 0, len(charges))
	for _, c := range charges {
		entries = append(entries, domain.LedgerEntry{
			TicketID:     t.ID,
			TicketNumber: t.Number,
			AccountID:    c.AccountID,
			Kind:         kind,
			Amount:       c.Amount,
			Comment:      comment,
		})
	}
	return entries
}
