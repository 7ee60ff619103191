package ticketstore

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

// DescriptorVersion is bumped whenever the descriptor layout changes. Files
// written with another version are discarded at startup.
const DescriptorVersion = 3

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Core deterministic encoding: identical tickets produce identical files.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("ticketstore: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("ticketstore: CBOR decoder initialization failed: " + err.Error())
	}
}

type descriptor struct {
	Version       int          `cbor:"version"`
	PayloadDigest string       `cbor:"payload_digest,omitempty"`
	Ticket        ticketRecord `cbor:"ticket"`
}

type ticketRecord struct {
	ID              string            `cbor:"id"`
	Number          string            `cbor:"number"`
	Kind            string            `cbor:"kind"`
	Status          string            `cbor:"status"`
	OwnerID         string            `cbor:"owner_id"`
	JobName         string            `cbor:"job_name,omitempty"`
	LabelDomain     string            `cbor:"label_domain,omitempty"`
	LabelUse        string            `cbor:"label_use,omitempty"`
	LabelTag        string            `cbor:"label_tag,omitempty"`
	SubmittedAt     int64             `cbor:"submitted_at"`
	DeliveryAt      int64             `cbor:"delivery_at"`
	Documents       []documentRecord  `cbor:"documents,omitempty"`
	Options         map[string]string `cbor:"options,omitempty"`
	PrinterName     string            `cbor:"printer_name"`
	PrinterGroup    string            `cbor:"printer_group,omitempty"`
	RedirectPrinter *string           `cbor:"redirect_printer,omitempty"`
	Copies          int               `cbor:"copies"`
	Pages           int               `cbor:"pages"`
	Sheets          int               `cbor:"sheets"`
	Cost            *string           `cbor:"cost,omitempty"`
	Accounts        *accountSetRecord `cbor:"accounts,omitempty"`
	Charged         []chargeRecord    `cbor:"charged,omitempty"`
	Supplier        *supplierRecord   `cbor:"supplier,omitempty"`
	ChunkIndex      int               `cbor:"chunk_index"`
	ChunkSize       int               `cbor:"chunk_size"`
	Reopened        bool              `cbor:"reopened"`
	PrintOutID      *string           `cbor:"print_out_id,omitempty"`
}

type documentRecord struct {
	DocumentID string `cbor:"document_id"`
	PageRanges string `cbor:"page_ranges"`
}

type accountSetRecord struct {
	TotalWeight int            `cbor:"total_weight"`
	Weights     []weightRecord `cbor:"weights"`
}

type weightRecord struct {
	AccountID  string `cbor:"account_id"`
	Weight     int    `cbor:"weight"`
	WeightUnit int    `cbor:"weight_unit"`
	Detail     string `cbor:"detail,omitempty"`
}

type chargeRecord struct {
	AccountID string `cbor:"account_id"`
	Amount    string `cbor:"amount"`
}

type supplierRecord struct {
	Name    string            `cbor:"name"`
	OrderID string            `cbor:"order_id,omitempty"`
	Data    map[string]string `cbor:"data,omitempty"`
}

func encodeDescriptor(t *domain.Ticket, payloadDigest string) ([]byte, error) {
	d := descriptor{
		Version:       DescriptorVersion,
		PayloadDigest: payloadDigest,
		Ticket:        toRecord(t),
	}
	data, err := encMode.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode descriptor %s: %w", t.ID, err)
	}
	return data, nil
}

func decodeDescriptor(data []byte) (*domain.Ticket, string, error) {
	var d descriptor
	if err := decMode.Unmarshal(data, &d); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if d.Version != DescriptorVersion {
		return nil, "", fmt.Errorf("%w: version %d, want %d", ErrSchemaMismatch, d.Version, DescriptorVersion)
	}
	t, err := fromRecord(d.Ticket)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return t, d.PayloadDigest, nil
}

func toRecord(t *domain.Ticket) ticketRecord {
	r := ticketRecord{
		ID:              t.ID,
		Number:          t.Number,
		Kind:            string(t.Kind),
		Status:          string(t.Status),
		OwnerID:         t.OwnerID,
		JobName:         t.JobName,
		LabelDomain:     t.Label.Domain,
		LabelUse:        t.Label.Use,
		LabelTag:        t.Label.Tag,
		SubmittedAt:     unixNano(t.SubmittedAt),
		DeliveryAt:      unixNano(t.DeliveryAt),
		Options:         t.Options,
		PrinterName:     t.PrinterName,
		PrinterGroup:    t.PrinterGroup,
		RedirectPrinter: t.RedirectPrinter,
		Copies:          t.Copies,
		Pages:           t.Pages,
		Sheets:          t.Sheets,
		ChunkIndex:      t.ChunkIndex,
		ChunkSize:       t.ChunkSize,
		Reopened:        t.Reopened,
		PrintOutID:      t.PrintOutID,
	}
	for _, doc := range t.Documents {
		r.Documents = append(r.Documents, documentRecord{DocumentID: doc.DocumentID, PageRanges: doc.PageRanges})
	}
	if t.Cost != nil {
		cost := t.Cost.String()
		r.Cost = &cost
	}
	if t.Accounts != nil {
		set := &accountSetRecord{TotalWeight: t.Accounts.TotalWeight}
		for _, w := range t.Accounts.Weights {
			set.Weights = append(set.Weights, weightRecord{
				AccountID:  w.AccountID,
				Weight:     w.Weight,
				WeightUnit: w.WeightUnit,
				Detail:     w.Detail,
			})
		}
		r.Accounts = set
	}
	for _, c := range t.Charged {
		r.Charged = append(r.Charged, chargeRecord{AccountID: c.AccountID, Amount: c.Amount.String()})
	}
	if t.Supplier != nil {
		r.Supplier = &supplierRecord{Name: t.Supplier.Name, OrderID: t.Supplier.OrderID, Data: t.Supplier.Data}
	}
	return r
}

func fromRecord(r ticketRecord) (*domain.Ticket, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("descriptor without ticket id")
	}
	kind := domain.TicketKind(r.Kind)
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown ticket kind %q", r.Kind)
	}
	t := &domain.Ticket{
		ID:              r.ID,
		Number:          r.Number,
		Kind:            kind,
		Status:          domain.TicketStatus(r.Status),
		OwnerID:         r.OwnerID,
		JobName:         r.JobName,
		Label:           domain.NumberLabel{Domain: r.LabelDomain, Use: r.LabelUse, Tag: r.LabelTag},
		SubmittedAt:     fromUnixNano(r.SubmittedAt),
		DeliveryAt:      fromUnixNano(r.DeliveryAt),
		Options:         r.Options,
		PrinterName:     r.PrinterName,
		PrinterGroup:    r.PrinterGroup,
		RedirectPrinter: r.RedirectPrinter,
		Copies:          r.Copies,
		Pages:           r.Pages,
		Sheets:          r.Sheets,
		ChunkIndex:      r.ChunkIndex,
		ChunkSize:       r.ChunkSize,
		Reopened:        r.Reopened,
		PrintOutID:      r.PrintOutID,
	}
	for _, doc := range r.Documents {
		t.Documents = append(t.Documents, domain.DocumentRange{DocumentID: doc.DocumentID, PageRanges: doc.PageRanges})
	}
	if r.Cost != nil {
		cost, err := decimal.NewFromString(*r.Cost)
		if err != nil {
			return nil, fmt.Errorf("cost: %w", err)
		}
		t.Cost = &cost
	}
	if r.Accounts != nil {
		set := &domain.AccountTrxSet{TotalWeight: r.Accounts.TotalWeight}
		for _, w := range r.Accounts.Weights {
			set.Weights = append(set.Weights, domain.AccountWeight{
				AccountID:  w.AccountID,
				Weight:     w.Weight,
				WeightUnit: w.WeightUnit,
				Detail:     w.Detail,
			})
		}
		t.Accounts = set
	}
	for _, c := range r.Charged {
		amount, err := decimal.NewFromString(c.Amount)
		if err != nil {
			return nil, fmt.Errorf("charged amount: %w", err)
		}
		t.Charged = append(t.Charged, domain.AccountCharge{AccountID: c.AccountID, Amount: amount})
	}
	if r.Supplier != nil {
		t.Supplier = &domain.SupplierInfo{Name: r.Supplier.Name, OrderID: r.Supplier.OrderID, Data: r.Supplier.Data}
	}
	return t, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
