package service

import (
	"context"
	"fmt"
	"maps"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/jobticket-service/internal/domain"
	"github.com/spec-kit/jobticket-service/internal/events"
	"github.com/spec-kit/jobticket-service/internal/redirect"
	apperrors "github.com/spec-kit/jobticket-service/pkg/util"
)

// PrintInput selects the device and tray a ticket is released to. Empty
// fields fall back to the preferred device and the requested media source.
type PrintInput struct {
	Printer     string
	MediaSource string
}

// Print dispatches a pending print ticket and charges its accounts. When
// the backend fails nothing is committed and the ticket stays pending.
// Transitions of one ticket are serialized, so a second concurrent Print
// sees the first one's print-out id.
func (s *JobTicketService) Print(ctx context.Context, id string, in PrintInput, actor events.Actor) (_ *domain.Ticket, err error) {
	ctx, span := tracer.Start(ctx, "JobTicketService.Print", trace.WithAttributes(attribute.String("ticket.id", id)))
	defer func() { endSpan(span, err) }()
	defer s.transitions.lock(id)()

	t, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if t.PrintOutID != nil {
		return nil, fmt.Errorf("print %s: %w", t.Number, ErrAlreadyDispatched)
	}
	if !t.HasPayload() {
		return nil, fmt.Errorf("print %s: %w", t.Number, ErrNotPrintable)
	}
	if t.Copies < 1 {
		return nil, fmt.Errorf("print %s: %w", t.Number, ErrCopiesRequired)
	}
	if t.Cost == nil {
		return nil, fmt.Errorf("print %s: %w", t.Number, ErrCostMissing)
	}

	target, source, err := s.selectTarget(ctx, t, in.Printer, in.MediaSource)
	if err != nil {
		return nil, err
	}
	charges, err := s.charges(t, *t.Cost)
	if err != nil {
		return nil, err
	}

	printOutID, err := s.submit(ctx, t, target, source, t.Copies)
	if err != nil {
		return nil, err
	}

	// The job is on the device from here on. Charged only lists what the
	// ledger accepted, so a later refund never reverses a missing charge.
	dispatched := markDispatched(t, target, source, printOutID, charges)
	entries := ledgerEntries(dispatched, domain.LedgerEntryCharge, charges, "print "+target.Printer.Name)
	chargeErr := s.post(ctx, entries)
	if chargeErr != nil {
		s.logger.Error("dispatch charge not posted", zap.String("ticket_id", t.ID), zap.Error(chargeErr))
		dispatched.Charged = nil
	}
	if err := s.store.Update(dispatched); err != nil {
		s.logger.Error("dispatched ticket not persisted",
			zap.String("ticket_id", t.ID), zap.String("print_out_id", printOutID), zap.Error(err))
		if chargeErr == nil {
			s.compensate(ctx, entries)
		}
		return nil, err
	}

	s.logger.Info("ticket dispatched",
		zap.String("ticket_id", t.ID),
		zap.String("number", t.Number),
		zap.String("printer", target.Printer.Name),
		zap.String("print_out_id", printOutID))
	s.publishEvent(ctx, events.EventTicketDispatched, dispatched, actor, events.TicketDispatchedPayload{
		Printer:    target.Printer.Name,
		PrintOutID: printOutID,
		Copies:     dispatched.Copies,
	})
	if chargeErr != nil {
		return nil, fmt.Errorf("charge ticket %s: %w", t.Number, chargeErr)
	}
	return dispatched, nil
}

// RetryInput re-dispatches a ticket canceled at the device. Copies may be
// lower than the ticket's copies when part of the job was already printed.
type RetryInput struct {
	Copies      int
	Printer     string
	MediaSource string
}

// Retry re-validates the target, re-dispatches the ticket and replaces the
// earlier charge with one proportional to the copies now produced.
func (s *JobTicketService) Retry(ctx context.Context, id string, in RetryInput, actor events.Actor) (_ *domain.Ticket, err error) {
	ctx, span := tracer.Start(ctx, "JobTicketService.Retry", trace.WithAttributes(attribute.String("ticket.id", id)))
	defer func() { endSpan(span, err) }()
	defer s.transitions.lock(id)()

	t, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TicketStatusDeviceCanceled {
		return nil, fmt.Errorf("retry %s: %w", t.Number, ErrNotRetryable)
	}
	if t.Cost == nil {
		return nil, fmt.Errorf("retry %s: %w", t.Number, ErrCostMissing)
	}
	copies := in.Copies
	if copies == 0 {
		copies = t.Copies
	}
	if copies < 1 || copies > t.Copies {
		return nil, apperrors.NewValidationError("invalid retry", map[string]any{
			"copies": fmt.Sprintf("must be between 1 and %d", t.Copies),
		})
	}

	printer := in.Printer
	if printer == "" && t.RedirectPrinter != nil {
		printer = *t.RedirectPrinter
	}
	target, source, err := s.selectTarget(ctx, t, printer, in.MediaSource)
	if err != nil {
		return nil, err
	}

	amount := t.Cost.Mul(decimal.NewFromInt(int64(copies))).Div(decimal.NewFromInt(int64(t.Copies)))
	charges, err := s.charges(t, s.splitter.Round(amount))
	if err != nil {
		return nil, err
	}

	printOutID, err := s.submit(ctx, t, target, source, copies)
	if err != nil {
		return nil, err
	}

	reversed := t.Charged
	dispatched := markDispatched(t, target, source, printOutID, charges)
	entries := ledgerEntries(dispatched, domain.LedgerEntryReversal, reversed, "retry reversal")
	entries = append(entries, ledgerEntries(dispatched, domain.LedgerEntryCharge, charges,
		fmt.Sprintf("retry %d/%d copies on %s", copies, t.Copies, target.Printer.Name))...)
	chargeErr := s.post(ctx, entries)
	if chargeErr != nil {
		s.logger.Error("retry charge not posted", zap.String("ticket_id", t.ID), zap.Error(chargeErr))
		dispatched.Charged = reversed
	}
	if err := s.store.Update(dispatched); err != nil {
		s.logger.Error("retried ticket not persisted",
			zap.String("ticket_id", t.ID), zap.String("print_out_id", printOutID), zap.Error(err))
		if chargeErr == nil {
			s.compensate(ctx, entries)
		}
		return nil, err
	}

	s.logger.Info("ticket retried",
		zap.String("ticket_id", t.ID),
		zap.Int("copies", copies),
		zap.String("printer", target.Printer.Name),
		zap.String("print_out_id", printOutID))
	s.publishEvent(ctx, events.EventTicketRetried, dispatched, actor, events.TicketDispatchedPayload{
		Printer:    target.Printer.Name,
		PrintOutID: printOutID,
		Copies:     copies,
	})
	if chargeErr != nil {
		return nil, fmt.Errorf("charge ticket %s: %w", t.Number, chargeErr)
	}
	return dispatched, nil
}

// HandleJobState consumes the backend status feed. Completed jobs are
// archived and removed; canceled or aborted jobs wait for Retry or Cancel.
func (s *JobTicketService) HandleJobState(ctx context.Context, printOutID string, state JobState) (_ *domain.Ticket, err error) {
	ctx, span := tracer.Start(ctx, "JobTicketService.HandleJobState", trace.WithAttributes(
		attribute.String("print_out.id", printOutID),
		attribute.String("print_out.state", string(state)),
	))
	defer func() { endSpan(span, err) }()

	if !state.Valid() {
		return nil, apperrors.NewValidationError("unknown job state", map[string]any{"state": string(state)})
	}
	t, err := s.store.GetByPrintOut(printOutID)
	if err != nil {
		return nil, err
	}
	defer s.transitions.lock(t.ID)()
	// a Retry may have replaced the print-out id while we waited
	if t, err = s.store.GetByPrintOut(printOutID); err != nil {
		return nil, err
	}
	backend := events.Actor{Role: domain.OperatorRoleBackend}

	switch state {
	case JobStateCompleted:
		if err := s.archiveTicket(ctx, t, domain.OutcomeCompleted); err != nil {
			return nil, err
		}
		removed, err := s.store.Remove(withActor(ctx, backend), t.ID, true)
		if err != nil {
			s.logger.Error("completed ticket not removed", zap.String("ticket_id", t.ID), zap.Error(err))
			s.unarchive(ctx, t)
			return nil, err
		}
		s.logger.Info("ticket completed", zap.String("ticket_id", t.ID), zap.String("print_out_id", printOutID))
		s.publishDepth(ctx)
		return removed, nil

	case JobStateCanceled, JobStateAborted:
		if t.Status == domain.TicketStatusDeviceCanceled {
			return t, nil
		}
		t.Status = domain.TicketStatusDeviceCanceled
		if err := s.store.Update(t); err != nil {
			return nil, err
		}
		s.logger.Info("ticket canceled by device", zap.String("ticket_id", t.ID), zap.String("print_out_id", printOutID))
		s.publishEvent(ctx, events.EventTicketDeviceCanceled, t, backend, events.TicketClosedPayload{JobName: t.JobName})
		return t, nil
	}

	s.logger.Debug("job state ignored", zap.String("print_out_id", printOutID), zap.String("state", string(state)))
	return t, nil
}

// selectTarget resolves the device and media source for a dispatch.
func (s *JobTicketService) selectTarget(ctx context.Context, t *domain.Ticket, printer, mediaSource string) (redirect.Redirect, string, error) {
	redirects, err := s.resolver.Resolve(ctx, t, constraintFilter)
	if err != nil {
		return redirect.Redirect{}, "", err
	}

	var (
		target redirect.Redirect
		found  bool
	)
	for _, r := range redirects {
		if (printer == "" && r.Preferred) || (printer != "" && r.Printer.Name == printer) {
			target, found = r, true
			break
		}
	}
	if !found {
		return redirect.Redirect{}, "", fmt.Errorf("ticket %s on %q: %w", t.Number, printer, ErrNoCompatiblePrinter)
	}

	if mediaSource == "" {
		mediaSource = t.Option(domain.OptMediaSource)
	}
	if mediaSource == "" || !target.HasMediaSource(mediaSource) {
		return redirect.Redirect{}, "", fmt.Errorf("ticket %s on %s: %w", t.Number, target.Printer.Name, ErrMediaSourceRequired)
	}
	return target, mediaSource, nil
}

func (s *JobTicketService) submit(ctx context.Context, t *domain.Ticket, target redirect.Redirect, source string, copies int) (string, error) {
	payload, err := s.store.Payload(t.ID)
	if err != nil {
		return "", err
	}
	job := buildJob(t, target, source, copies)
	job.Payload = payload

	printOutID, err := s.backend.Submit(ctx, job)
	if err != nil {
		s.logger.Error("dispatch failed",
			zap.String("ticket_id", t.ID),
			zap.String("number", t.Number),
			zap.String("printer", target.Printer.Name),
			zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}
	return printOutID, nil
}

func buildJob(t *domain.Ticket, target redirect.Redirect, source string, copies int) PrintJob {
	p := &target.Printer
	options := maps.Clone(t.Options)
	if options == nil {
		options = map[string]string{}
	}
	options[domain.OptMediaSource] = source
	if target.OutputBin != "" && options[domain.OptOutputBin] == "" {
		options[domain.OptOutputBin] = target.OutputBin
	}
	if target.JogOffset != "" && options[domain.OptJogOffset] == "" {
		options[domain.OptJogOffset] = target.JogOffset
	}
	if target.JobSheetsSource != nil {
		options[domain.OptJobSheetsSource] = target.JobSheetsSource.Keyword
	}

	return PrintJob{
		TicketID:          t.ID,
		TicketNumber:      t.Number,
		JobName:           t.JobName,
		OwnerID:           t.OwnerID,
		Printer:           p.Name,
		Options:           options,
		Copies:            copies,
		ForceGrayscale:    !t.WantsColor() && p.Color && !p.Supports(domain.OptColorMode, domain.ValueMonochrome),
		ForceBookletOrder: t.Option(domain.OptBooklet) == "true" && !p.Supports(domain.OptBooklet, "true"),
	}
}

func markDispatched(t *domain.Ticket, target redirect.Redirect, source, printOutID string, charges []domain.AccountCharge) *domain.Ticket {
	d := t.Clone()
	name := target.Printer.Name
	d.RedirectPrinter = &name
	d.PrintOutID = &printOutID
	d.Status = domain.TicketStatusDispatched
	if d.Options == nil {
		d.Options = map[string]string{}
	}
	d.Options[domain.OptMediaSource] = source
	d.Charged = charges
	return d
}
