package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketAdmitted       EventType = "ticket_admitted"
	EventTicketDispatched     EventType = "ticket_dispatched"
	EventTicketCompleted      EventType = "ticket_completed"
	EventTicketCanceled       EventType = "ticket_canceled"
	EventTicketDeviceCanceled EventType = "ticket_device_canceled"
	EventTicketRetried        EventType = "ticket_retried"
	EventTicketReopened       EventType = "ticket_reopened"
)

// Actor encapsulates who triggered an event. Backend status changes have
// no operator.
type Actor struct {
	OperatorID *string             `json:"operator_id,omitempty"`
	Role       domain.OperatorRole `json:"role,omitempty"`
}

// Event represents a ticket lifecycle event emitted by services.
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	TicketID     string    `json:"ticket_id"`
	TicketNumber string    `json:"ticket_number"`
	OwnerID      string    `json:"owner_id"`
	Actor        Actor     `json:"actor"`
	Timestamp    time.Time `json:"timestamp"`
	Payload      any       `json:"payload,omitempty"`
}

// TicketAdmittedPayload payload.
type TicketAdmittedPayload struct {
	Kind         domain.TicketKind `json:"kind"`
	PrinterName  string            `json:"printer_name"`
	PrinterGroup string            `json:"printer_group,omitempty"`
	Copies       int               `json:"copies"`
	Cost         *decimal.Decimal  `json:"cost,omitempty"`
}

// TicketDispatchedPayload payload.
type TicketDispatchedPayload struct {
	Printer    string `json:"printer"`
	PrintOutID string `json:"print_out_id"`
	Copies     int    `json:"copies"`
}

// TicketClosedPayload is sent when a ticket leaves the store.
type TicketClosedPayload struct {
	Outcome domain.TicketOutcome `json:"outcome,omitempty"`
	JobName string               `json:"job_name,omitempty"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	SourceTicketID string `json:"source_ticket_id"`
	SourceNumber   string `json:"source_number"`
}
