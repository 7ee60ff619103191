package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/jobticket-service/internal/api/dto"
	"github.com/spec-kit/jobticket-service/internal/auth"
	"github.com/spec-kit/jobticket-service/internal/domain"
	"github.com/spec-kit/jobticket-service/internal/events"
	"github.com/spec-kit/jobticket-service/internal/redirect"
	"github.com/spec-kit/jobticket-service/internal/service"
	"github.com/spec-kit/jobticket-service/internal/ticketstore"
	apperrors "github.com/spec-kit/jobticket-service/pkg/util"
)

// TicketLifecycle is the part of the job ticket service the operator API uses.
type TicketLifecycle interface {
	Admit(ctx context.Context, in service.AdmitInput, actor events.Actor) (*domain.Ticket, error)
	Amend(ctx context.Context, id string, in service.AmendInput) (*domain.Ticket, error)
	Print(ctx context.Context, id string, in service.PrintInput, actor events.Actor) (*domain.Ticket, error)
	Retry(ctx context.Context, id string, in service.RetryInput, actor events.Actor) (*domain.Ticket, error)
	Settle(ctx context.Context, id string, actor events.Actor) (*domain.Ticket, error)
	Cancel(ctx context.Context, id string, actor events.Actor) (*domain.Ticket, error)
	Reopen(ctx context.Context, archivedTicketID string, actor events.Actor) (*domain.Ticket, error)
	Get(id string) (*domain.Ticket, error)
	GetByNumber(number string) (*domain.Ticket, error)
	List(filter ticketstore.Filter) ([]*domain.Ticket, error)
	Redirects(ctx context.Context, id string) ([]redirect.Redirect, error)
}

// TicketsHandler manages the operator ticket endpoints.
type TicketsHandler struct {
	service TicketLifecycle
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets TicketLifecycle) *TicketsHandler {
	return &TicketsHandler{service: tickets}
}

// Admit POST /tickets.
func (h *TicketsHandler) Admit(c *fiber.Ctx) error {
	var req dto.AdmitTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	in := service.AdmitInput{
		Kind:        domain.TicketKind(strings.ToUpper(string(req.Kind))),
		OwnerID:     req.OwnerID,
		JobName:     req.JobName,
		PrinterName: req.Printer,
		Options:     req.Options,
		Copies:      req.Copies,
		Pages:       req.Pages,
		Rotation:    service.PageRotation(req.Rotation),
		Payload:     req.Payload,
		Accounts:    accountSet(req.Accounts),
		ChunkIndex:  req.ChunkIndex,
		ChunkSize:   req.ChunkSize,
	}
	for _, d := range req.Documents {
		in.Documents = append(in.Documents, domain.DocumentRange{DocumentID: d.DocumentID, PageRanges: d.PageRanges})
	}
	if req.Supplier != nil {
		in.Supplier = &domain.SupplierInfo{Name: req.Supplier.Name, OrderID: req.Supplier.OrderID, Data: req.Supplier.Data}
	}
	if req.Label != nil {
		in.Label = &domain.NumberLabel{Domain: req.Label.Domain, Use: req.Label.Use, Tag: req.Label.Tag}
	}
	if req.DeliveryAt != nil {
		in.DeliveryAt = *req.DeliveryAt
	}

	ticket, err := h.service.Admit(c.UserContext(), in, actorOf(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// List GET /tickets?owner=&q=&group=.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	tickets, err := h.service.List(ticketstore.Filter{
		OwnerID: c.Query("owner"),
		Search:  c.Query("q"),
		GroupID: c.Query("group"),
	})
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, ticketResponse(t))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.service.Get(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// GetByNumber GET /tickets/number/:number.
func (h *TicketsHandler) GetByNumber(c *fiber.Ctx) error {
	ticket, err := h.service.GetByNumber(c.Params("number"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Amend POST /tickets/:id/amend.
func (h *TicketsHandler) Amend(c *fiber.Ctx) error {
	var req dto.AmendTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Amend(c.UserContext(), c.Params("id"), service.AmendInput{
		Copies:   req.Copies,
		Accounts: accountSet(req.Accounts),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Print POST /tickets/:id/print.
func (h *TicketsHandler) Print(c *fiber.Ctx) error {
	var req dto.PrintTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ticket, err := h.service.Print(c.UserContext(), c.Params("id"), service.PrintInput{
		Printer:     req.Printer,
		MediaSource: req.MediaSource,
	}, actorOf(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Retry POST /tickets/:id/retry.
func (h *TicketsHandler) Retry(c *fiber.Ctx) error {
	var req dto.RetryTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ticket, err := h.service.Retry(c.UserContext(), c.Params("id"), service.RetryInput(req), actorOf(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Settle POST /tickets/:id/settle.
func (h *TicketsHandler) Settle(c *fiber.Ctx) error {
	ticket, err := h.service.Settle(c.UserContext(), c.Params("id"), actorOf(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Cancel POST /tickets/:id/cancel.
func (h *TicketsHandler) Cancel(c *fiber.Ctx) error {
	ticket, err := h.service.Cancel(c.UserContext(), c.Params("id"), actorOf(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Reopen POST /archive/:id/reopen.
func (h *TicketsHandler) Reopen(c *fiber.Ctx) error {
	ticket, err := h.service.Reopen(c.UserContext(), c.Params("id"), actorOf(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Printers GET /tickets/:id/printers.
func (h *TicketsHandler) Printers(c *fiber.Ctx) error {
	redirects, err := h.service.Redirects(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.RedirectResponse, 0, len(redirects))
	for _, r := range redirects {
		items = append(items, redirectResponse(r))
	}
	return c.JSON(fiber.Map{"data": items})
}

func actorOf(c *fiber.Ctx) events.Actor {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return events.Actor{}
	}
	return service.OperatorActor(principal.OperatorID(), principal.Role)
}

func accountSet(req *dto.AccountSetRequest) *domain.AccountTrxSet {
	if req == nil {
		return nil
	}
	set := &domain.AccountTrxSet{TotalWeight: req.TotalWeight}
	for _, w := range req.Weights {
		set.Weights = append(set.Weights, domain.AccountWeight(w))
	}
	return set
}

func ticketResponse(t *domain.Ticket) dto.TicketResponse {
	resp := dto.TicketResponse{
		ID:              t.ID,
		Number:          t.Number,
		Kind:            t.Kind,
		Status:          t.Status,
		OwnerID:         t.OwnerID,
		JobName:         t.JobName,
		Printer:         t.PrinterName,
		PrinterGroup:    t.PrinterGroup,
		RedirectPrinter: t.RedirectPrinter,
		PrintOutID:      t.PrintOutID,
		Options:         t.Options,
		Copies:          t.Copies,
		Pages:           t.Pages,
		Sheets:          t.Sheets,
		Reopened:        t.Reopened,
		SubmittedAt:     t.SubmittedAt,
		DeliveryAt:      t.DeliveryAt,
	}
	if t.Cost != nil {
		cost := t.Cost.String()
		resp.Cost = &cost
	}
	for _, ch := range t.Charged {
		resp.Charged = append(resp.Charged, dto.ChargeResponse{AccountID: ch.AccountID, Amount: ch.Amount.String()})
	}
	return resp
}

func redirectResponse(r redirect.Redirect) dto.RedirectResponse {
	resp := dto.RedirectResponse{
		Printer:     r.Printer.Name,
		DisplayName: r.Printer.DisplayName,
		Preferred:   r.Preferred,
		Color:       r.Printer.Color,
		Duplex:      r.Printer.Duplex,
		OutputBin:   r.OutputBin,
		JogOffset:   r.JogOffset,
	}
	for _, src := range r.MediaSources {
		resp.MediaSources = append(resp.MediaSources, dto.MediaSourceResponse(src))
	}
	if r.JobSheetsSource != nil {
		src := dto.MediaSourceResponse(*r.JobSheetsSource)
		resp.JobSheetsSource = &src
	}
	return resp
}
