package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/jobticket-service/internal/accounting"
	"github.com/spec-kit/jobticket-service/internal/config"
	"github.com/spec-kit/jobticket-service/internal/domain"
	"github.com/spec-kit/jobticket-service/internal/events"
	"github.com/spec-kit/jobticket-service/internal/redirect"
	"github.com/spec-kit/jobticket-service/internal/repository"
	"github.com/spec-kit/jobticket-service/internal/rules"
	"github.com/spec-kit/jobticket-service/internal/ticketnumber"
	"github.com/spec-kit/jobticket-service/internal/ticketstore"
	apperrors "github.com/spec-kit/jobticket-service/pkg/util"
)

var tracer = otel.Tracer("github.com/spec-kit/jobticket-service/internal/service")

// JobTicketService drives tickets from admission to completion,
// settlement, cancellation or reopening.
type JobTicketService struct {
	store      *ticketstore.Store
	numbers    *ticketnumber.Generator
	splitter   *accounting.Splitter
	resolver   *redirect.Resolver
	printers   repository.PrinterRepository
	ledger     repository.LedgerRepository
	archive    repository.ArchiveRepository
	backend    PrintBackend
	queue      QueueDepthPublisher
	dispatcher events.Dispatcher
	numberUp   rules.NumberUpTable
	cfg        config.TicketConfig
	logger     *zap.Logger
	now        func() time.Time

	// transitions guards the check-then-commit of every mutation of a
	// cached ticket, including the backend call of a dispatch.
	transitions ticketLocks
}

// JobTicketDependencies bundles the collaborators of the service.
type JobTicketDependencies struct {
	Store       *ticketstore.Store
	Numbers     *ticketnumber.Generator
	PrinterRepo repository.PrinterRepository
	LedgerRepo  repository.LedgerRepository
	ArchiveRepo repository.ArchiveRepository
	Backend     PrintBackend
	QueueDepth  QueueDepthPublisher
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewJobTicketService constructs the service and registers it as the
// store's listener.
func NewJobTicketService(cfg config.TicketConfig, deps JobTicketDependencies) *JobTicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &JobTicketService{
		store:      deps.Store,
		numbers:    deps.Numbers,
		splitter:   accounting.NewSplitter(cfg.MonetaryScale),
		resolver:   redirect.NewResolver(deps.PrinterRepo, logger),
		printers:   deps.PrinterRepo,
		ledger:     deps.LedgerRepo,
		archive:    deps.ArchiveRepo,
		backend:    deps.Backend,
		queue:      deps.QueueDepth,
		dispatcher: deps.Dispatcher,
		numberUp:   rules.BuiltinNumberUp(),
		cfg:        cfg,
		logger:     logger.Named("jobticket"),
		now:        time.Now,
	}
	deps.Store.SetListener(s)
	return s
}

// PageRotation describes how the document content is rotated.
type PageRotation struct {
	Page    int
	Content int
	User    int
}

// AdmitInput describes a finished print or copy request.
type AdmitInput struct {
	Kind        domain.TicketKind
	OwnerID     string
	JobName     string
	PrinterName string
	Options     map[string]string
	Documents   []domain.DocumentRange
	Copies      int
	Pages       int
	Rotation    PageRotation
	Payload     []byte
	Accounts    *domain.AccountTrxSet
	Supplier    *domain.SupplierInfo
	ChunkIndex  int
	ChunkSize   int
	Label       *domain.NumberLabel
	DeliveryAt  time.Time
}

func (in AdmitInput) validate() error {
	details := map[string]any{}
	if !in.Kind.Valid() {
		details["kind"] = "must be PRINT or COPY"
	}
	if strings.TrimSpace(in.OwnerID) == "" {
		details["owner_id"] = "required"
	}
	if strings.TrimSpace(in.PrinterName) == "" {
		details["printer_name"] = "required"
	}
	if in.Copies < 1 {
		details["copies"] = "must be at least 1"
	}
	if in.Pages < 0 {
		details["pages"] = "must not be negative"
	}
	if in.Kind == domain.TicketKindPrint && len(in.Payload) == 0 {
		details["payload"] = "required for print tickets"
	}
	if in.ChunkSize > 0 && (in.ChunkIndex < 0 || in.ChunkIndex >= in.ChunkSize) {
		details["chunk_index"] = "out of range"
	}
	if in.Accounts != nil && in.Accounts.Denominator() <= 0 {
		details["accounts"] = "weights must be positive"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket request", details)
	}
	return nil
}

// Admit builds a ticket, prices it, checks credit and persists it.
func (s *JobTicketService) Admit(ctx context.Context, in AdmitInput, actor events.Actor) (_ *domain.Ticket, err error) {
	ctx, span := tracer.Start(ctx, "JobTicketService.Admit", trace.WithAttributes(
		attribute.String("ticket.kind", string(in.Kind)),
		attribute.String("printer", in.PrinterName),
	))
	defer func() { endSpan(span, err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}

	printer, err := s.printers.Printer(ctx, in.PrinterName)
	if err != nil {
		return nil, fmt.Errorf("load printer %s: %w", in.PrinterName, err)
	}
	group, err := s.printers.GroupOf(ctx, in.PrinterName)
	if err != nil {
		return nil, fmt.Errorf("load redirect group of %s: %w", in.PrinterName, err)
	}

	options := maps.Clone(in.Options)
	if options == nil {
		options = map[string]string{}
	}
	if err := checkConstraints(&printer, options); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &domain.Ticket{
		ID:           uuid.NewString(),
		Kind:         in.Kind,
		Status:       domain.TicketStatusPending,
		OwnerID:      in.OwnerID,
		JobName:      strings.TrimSpace(in.JobName),
		SubmittedAt:  now,
		DeliveryAt:   in.DeliveryAt.UTC(),
		Documents:    slices.Clone(in.Documents),
		Options:      options,
		PrinterName:  in.PrinterName,
		PrinterGroup: group,
		Copies:       in.Copies,
		Pages:        in.Pages,
		Accounts:     in.Accounts,
		Supplier:     in.Supplier,
		ChunkIndex:   in.ChunkIndex,
		ChunkSize:    in.ChunkSize,
	}
	if in.DeliveryAt.IsZero() {
		t.DeliveryAt = now.Add(s.cfg.DeliveryTTL())
	}
	t.Label = s.label(in.Label)
	s.imposeNumberUp(t, &printer, in.Rotation)
	s.price(t, &printer)

	if err := s.checkCredit(ctx, t); err != nil {
		return nil, err
	}
	if err := s.addWithNumber(t, in.Payload); err != nil {
		return nil, err
	}

	s.logger.Info("ticket admitted",
		zap.String("ticket_id", t.ID),
		zap.String("number", t.Number),
		zap.String("kind", string(t.Kind)),
		zap.String("cost", t.Cost.String()))
	s.publishDepth(ctx)
	s.publishEvent(ctx, events.EventTicketAdmitted, t, actor, events.TicketAdmittedPayload{
		Kind:         t.Kind,
		PrinterName:  t.PrinterName,
		PrinterGroup: t.PrinterGroup,
		Copies:       t.Copies,
		Cost:         t.Cost,
	})
	return t.Clone(), nil
}

func (s *JobTicketService) label(override *domain.NumberLabel) domain.NumberLabel {
	if override != nil {
		return *override
	}
	return domain.NumberLabel{Domain: s.cfg.LabelDomain, Use: s.cfg.LabelUse, Tag: s.cfg.LabelTag}
}

// addWithNumber assigns a fresh number and retries when the store already
// holds it.
func (s *JobTicketService) addWithNumber(t *domain.Ticket, payload []byte) error {
	retries := max(s.cfg.NumberRetries, 0)
	for attempt := 0; ; attempt++ {
		t.Number = s.numbers.GenerateLabeled(t.Label)
		err := s.store.Add(t, payload)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ticketstore.ErrDuplicateNumber) || attempt >= retries {
			return fmt.Errorf("admit ticket: %w", err)
		}
		s.logger.Warn("ticket number collision", zap.String("number", t.Number), zap.Int("attempt", attempt+1))
	}
}

// imposeNumberUp records the page layout decision in the ticket options.
// 1-up jobs resolve too: page rotation alone can flip the sheet orientation.
func (s *JobTicketService) imposeNumberUp(t *domain.Ticket, printer *domain.Printer, rot PageRotation) {
	n := t.NumberUp()
	orientation := rules.OrientationPortrait
	if o := t.Option(domain.OptOrientation); o == "4" || o == "5" {
		orientation = rules.OrientationLandscape
	}
	result, ok := rules.ResolveNumberUp(rules.NumberUpTemplate{
		Orientation:     orientation,
		PageRotation:    rot.Page,
		ContentRotation: rot.Content,
		UserRotation:    rot.User,
		NumberUp:        n,
	}, printer.NumberUpRules, s.numberUp)
	if !ok {
		return
	}
	t.Options[domain.OptNumberUpLayout] = result.Layout
	t.Options[domain.OptTargetOrientation] = result.Orientation
	t.Options[domain.OptLandscape] = fmt.Sprintf("%t", result.Landscape)
}

// price computes sheets and cost from the printer's cost rules.
func (s *JobTicketService) price(t *domain.Ticket, printer *domain.Printer) {
	in := rules.CostInput{
		Options:  t.Options,
		Pages:    t.Pages,
		NumberUp: t.NumberUp(),
		Duplex:   t.WantsDuplex(),
		Copies:   t.Copies,
	}
	cost := s.splitter.Round(rules.TicketCost(printer.CostRules, in))
	t.Sheets = t.Copies * in.Sheets()
	t.Cost = &cost
}

func (s *JobTicketService) checkCredit(ctx context.Context, t *domain.Ticket) error {
	if !s.cfg.CreditCheck || t.Accounts == nil || t.Cost == nil || t.Cost.IsZero() {
		return nil
	}
	charges, err := s.splitter.Split(*t.Cost, *t.Accounts)
	if err != nil {
		return apperrors.NewValidationError("invalid account weights", map[string]any{"accounts": err.Error()})
	}
	ok, err := s.ledger.IsBalanceSufficient(ctx, charges)
	if err != nil {
		return fmt.Errorf("credit check: %w", err)
	}
	if !ok {
		return ErrInsufficientCredit
	}
	return nil
}

// checkConstraints rejects options the printer's constraint rules refuse.
func checkConstraints(printer *domain.Printer, options map[string]string) error {
	for _, keyword := range slices.Sorted(maps.Keys(options)) {
		value := options[keyword]
		if rules.IsOptionValid(printer.ConstraintRules, keyword, value, options) == rules.Invalid {
			return apperrors.NewRejection(keyword, value, "not allowed on printer "+printer.Name)
		}
	}
	return nil
}

// constraintFilter is the redirect option filter backed by each device's
// own constraint rules.
func constraintFilter(printer *domain.Printer, t *domain.Ticket) string {
	var rejection *apperrors.RejectionError
	if err := checkConstraints(printer, t.Options); errors.As(err, &rejection) {
		return rejection.Error()
	}
	return ""
}

// AmendInput changes the counters of a pending ticket, typically a reopened one.
type AmendInput struct {
	Copies   int
	Accounts *domain.AccountTrxSet
}

// Amend reprices a pending ticket for a new number of copies.
func (s *JobTicketService) Amend(ctx context.Context, id string, in AmendInput) (_ *domain.Ticket, err error) {
	ctx, span := tracer.Start(ctx, "JobTicketService.Amend", trace.WithAttributes(attribute.String("ticket.id", id)))
	defer func() { endSpan(span, err) }()

	if in.Copies < 1 {
		return nil, apperrors.NewValidationError("invalid amendment", map[string]any{"copies": "must be at least 1"})
	}
	defer s.transitions.lock(id)()
	t, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if t.PrintOutID != nil {
		return nil, fmt.Errorf("amend %s: %w", t.Number, ErrAlreadyDispatched)
	}
	printer, err := s.printers.Printer(ctx, t.PrinterName)
	if err != nil {
		return nil, fmt.Errorf("load printer %s: %w", t.PrinterName, err)
	}

	t.Copies = in.Copies
	if in.Accounts != nil {
		if in.Accounts.Denominator() <= 0 {
			return nil, apperrors.NewValidationError("invalid amendment", map[string]any{"accounts": "weights must be positive"})
		}
		t.Accounts = in.Accounts
	}
	s.price(t, &printer)
	if err := s.checkCredit(ctx, t); err != nil {
		return nil, err
	}
	if err := s.store.Update(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns a pending ticket.
func (s *JobTicketService) Get(id string) (*domain.Ticket, error) {
	return s.store.Get(id)
}

// GetByNumber returns a pending ticket by its human number.
func (s *JobTicketService) GetByNumber(number string) (*domain.Ticket, error) {
	return s.store.GetByNumber(number)
}

// List returns pending tickets matching filter.
func (s *JobTicketService) List(filter ticketstore.Filter) ([]*domain.Ticket, error) {
	return s.store.Filter(filter)
}

// Stats returns the queue-depth snapshot.
func (s *JobTicketService) Stats() domain.QueueStats {
	return s.store.Stats()
}

// Redirects lists the devices able to execute a pending ticket.
func (s *JobTicketService) Redirects(ctx context.Context, id string) ([]redirect.Redirect, error) {
	t, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, t, constraintFilter)
}

func (s *JobTicketService) publishDepth(ctx context.Context) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Publish(ctx, s.store.Stats()); err != nil {
		s.logger.Warn("queue depth not published", zap.Error(err))
	}
}

func (s *JobTicketService) publishEvent(ctx context.Context, eventType events.EventType, t *domain.Ticket, actor events.Actor, payload any) {
	if s.dispatcher == nil {
		return
	}
	err := s.dispatcher.Publish(ctx, events.Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		TicketID:     t.ID,
		TicketNumber: t.Number,
		OwnerID:      t.OwnerID,
		Actor:        actor,
		Timestamp:    s.now().UTC(),
		Payload:      payload,
	})
	if err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// OperatorActor describes an operator acting on tickets.
func OperatorActor(operatorID string, role domain.OperatorRole) events.Actor {
	if operatorID == "" {
		return events.Actor{Role: role}
	}
	return events.Actor{OperatorID: &operatorID, Role: role}
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
