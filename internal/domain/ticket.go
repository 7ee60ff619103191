package domain

import (
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

// TicketKind distinguishes print tickets, which carry a rendered payload,
// from copy tickets, which are worked by an operator at a copier.
type TicketKind string

const (
	TicketKindPrint TicketKind = "PRINT"
	TicketKindCopy  TicketKind = "COPY"
)

// Valid reports whether k is a known ticket kind.
func (k TicketKind) Valid() bool {
	return k == TicketKindPrint || k == TicketKindCopy
}

// TicketStatus enumerates the states a cached ticket can be in. Completed,
// canceled and settled tickets are removed from the store, so they have no
// status of their own.
type TicketStatus string

const (
	TicketStatusPending        TicketStatus = "PENDING"
	TicketStatusDispatched     TicketStatus = "DISPATCHED"
	TicketStatusDeviceCanceled TicketStatus = "DEVICE_CANCELED"
)

// TicketOutcome records how a ticket left the store.
type TicketOutcome string

const (
	OutcomeCompleted TicketOutcome = "COMPLETED"
	OutcomeSettled   TicketOutcome = "SETTLED"
	OutcomeCanceled  TicketOutcome = "CANCELED"
)

// DocumentRange selects pages of one source document.
type DocumentRange struct {
	DocumentID string
	PageRanges string
}

// NumberLabel is the optional prefix of a ticket number.
type NumberLabel struct {
	Domain string
	Use    string
	Tag    string
}

// SupplierInfo links a ticket to a third-party billing integration.
type SupplierInfo struct {
	Name    string
	OrderID string
	Data    map[string]string
}

// Ticket is the durable unit of queued print or copy work.
type Ticket struct {
	ID              string
	Number          string
	Kind            TicketKind
	Status          TicketStatus
	OwnerID         string
	JobName         string
	Label           NumberLabel
	SubmittedAt     time.Time
	DeliveryAt      time.Time
	Documents       []DocumentRange
	Options         map[string]string
	PrinterName     string
	PrinterGroup    string
	RedirectPrinter *string
	Copies          int
	Pages           int
	Sheets          int
	Cost            *decimal.Decimal
	Accounts        *AccountTrxSet
	Charged         []AccountCharge
	Supplier        *SupplierInfo
	ChunkIndex      int
	ChunkSize       int
	Reopened        bool
	PrintOutID      *string
}

// IsCopy reports whether the ticket is a copy job.
func (t *Ticket) IsCopy() bool {
	return t.Kind == TicketKindCopy
}

// HasPayload reports whether the ticket owns a payload file.
func (t *Ticket) HasPayload() bool {
	return t.Kind == TicketKindPrint
}

// Option returns the requested value of an IPP keyword.
func (t *Ticket) Option(keyword string) string {
	return t.Options[keyword]
}

// Clone returns a deep copy so callers never share mutable state with the cache.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.Documents = append([]DocumentRange(nil), t.Documents...)
	c.Options = maps.Clone(t.Options)
	if t.RedirectPrinter != nil {
		v := *t.RedirectPrinter
		c.RedirectPrinter = &v
	}
	if t.Cost != nil {
		v := *t.Cost
		c.Cost = &v
	}
	if t.Accounts != nil {
		set := *t.Accounts
		set.Weights = append([]AccountWeight(nil), t.Accounts.Weights...)
		c.Accounts = &set
	}
	c.Charged = append([]AccountCharge(nil), t.Charged...)
	if t.Supplier != nil {
		s := *t.Supplier
		s.Data = maps.Clone(t.Supplier.Data)
		c.Supplier = &s
	}
	if t.PrintOutID != nil {
		v := *t.PrintOutID
		c.PrintOutID = &v
	}
	return &c
}

// ArchivedTicket is the long-lived record of a ticket that left the store.
type ArchivedTicket struct {
	Ticket     Ticket
	Outcome    TicketOutcome
	Payload    []byte
	ArchivedAt time.Time
}

// QueueStats counts pending tickets per scope.
type QueueStats struct {
	CopyTickets  int `json:"copy_tickets"`
	PrintTickets int `json:"print_tickets"`
}

// Total returns the number of cached tickets.
func (s QueueStats) Total() int {
	return s.CopyTickets + s.PrintTickets
}
