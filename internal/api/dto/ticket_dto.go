package dto

import (
	"time"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

// DocumentRangeRequest selects pages of one source document.
type DocumentRangeRequest struct {
	DocumentID string `json:"document_id"`
	PageRanges string `json:"page_ranges"`
}

// AccountWeightRequest is one weighted account of a split.
type AccountWeightRequest struct {
	AccountID  string `json:"account_id"`
	Weight     int    `json:"weight"`
	WeightUnit int    `json:"weight_unit"`
	Detail     string `json:"detail"`
}

// AccountSetRequest is the weighted account set charged for a ticket.
type AccountSetRequest struct {
	TotalWeight int                    `json:"total_weight"`
	Weights     []AccountWeightRequest `json:"weights"`
}

// RotationRequest describes page, content and user rotation in degrees.
type RotationRequest struct {
	Page    int `json:"page"`
	Content int `json:"content"`
	User    int `json:"user"`
}

// LabelRequest overrides the configured ticket number label.
type LabelRequest struct {
	Domain string `json:"domain"`
	Use    string `json:"use"`
	Tag    string `json:"tag"`
}

// SupplierRequest links a ticket to an external billing supplier.
type SupplierRequest struct {
	Name    string            `json:"name"`
	OrderID string            `json:"order_id"`
	Data    map[string]string `json:"data"`
}

// AdmitTicketRequest payload. Payload is the rendered document, base64
// encoded in JSON; copy tickets have none.
type AdmitTicketRequest struct {
	Kind       domain.TicketKind      `json:"kind"`
	OwnerID    string                 `json:"owner_id"`
	JobName    string                 `json:"job_name"`
	Printer    string                 `json:"printer"`
	Options    map[string]string      `json:"options"`
	Documents  []DocumentRangeRequest `json:"documents"`
	Copies     int                    `json:"copies"`
	Pages      int                    `json:"pages"`
	Rotation   RotationRequest        `json:"rotation"`
	Payload    []byte                 `json:"payload"`
	Accounts   *AccountSetRequest     `json:"accounts"`
	Supplier   *SupplierRequest       `json:"supplier"`
	ChunkIndex int                    `json:"chunk_index"`
	ChunkSize  int                    `json:"chunk_size"`
	Label      *LabelRequest          `json:"label"`
	DeliveryAt *time.Time             `json:"delivery_at"`
}

// PrintTicketRequest releases a ticket to a device.
type PrintTicketRequest struct {
	Printer     string `json:"printer"`
	MediaSource string `json:"media_source"`
}

// RetryTicketRequest re-dispatches a device-canceled ticket.
type RetryTicketRequest struct {
	Copies      int    `json:"copies"`
	Printer     string `json:"printer"`
	MediaSource string `json:"media_source"`
}

// AmendTicketRequest changes the copies of a pending ticket.
type AmendTicketRequest struct {
	Copies   int                `json:"copies"`
	Accounts *AccountSetRequest `json:"accounts"`
}

// JobStateRequest is one print backend status report.
type JobStateRequest struct {
	State string `json:"state"`
}

// ChargeResponse is the amount booked on one account.
type ChargeResponse struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
}

// TicketResponse describes a cached ticket.
type TicketResponse struct {
	ID              string              `json:"id"`
	Number          string              `json:"number"`
	Kind            domain.TicketKind   `json:"kind"`
	Status          domain.TicketStatus `json:"status"`
	OwnerID         string              `json:"owner_id"`
	JobName         string              `json:"job_name"`
	Printer         string              `json:"printer"`
	PrinterGroup    string              `json:"printer_group,omitempty"`
	RedirectPrinter *string             `json:"redirect_printer"`
	PrintOutID      *string             `json:"print_out_id"`
	Options         map[string]string   `json:"options"`
	Copies          int                 `json:"copies"`
	Pages           int                 `json:"pages"`
	Sheets          int                 `json:"sheets"`
	Cost            *string             `json:"cost"`
	Charged         []ChargeResponse    `json:"charged,omitempty"`
	Reopened        bool                `json:"reopened"`
	SubmittedAt     time.Time           `json:"submitted_at"`
	DeliveryAt      time.Time           `json:"delivery_at"`
}

// MediaSourceResponse describes a loaded tray.
type MediaSourceResponse struct {
	Keyword string `json:"keyword"`
	Media   string `json:"media"`
	Label   string `json:"label"`
}

// RedirectResponse describes a device able to execute a ticket.
type RedirectResponse struct {
	Printer         string                `json:"printer"`
	DisplayName     string                `json:"display_name"`
	Preferred       bool                  `json:"preferred"`
	Color           bool                  `json:"color"`
	Duplex          bool                  `json:"duplex"`
	MediaSources    []MediaSourceResponse `json:"media_sources"`
	JobSheetsSource *MediaSourceResponse  `json:"job_sheets_source,omitempty"`
	OutputBin       string                `json:"output_bin,omitempty"`
	JogOffset       string                `json:"jog_offset,omitempty"`
}

// QueueStatsResponse is the queue-depth snapshot.
type QueueStatsResponse struct {
	CopyTickets  int `json:"copy_tickets"`
	PrintTickets int `json:"print_tickets"`
	Total        int `json:"total"`
}
