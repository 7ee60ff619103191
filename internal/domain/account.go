package domain

import "github.com/shopspring/decimal"

// AccountWeight is one participant in a weighted cost split.
type AccountWeight struct {
	AccountID  string
	Weight     int
	WeightUnit int
	Detail     string
}

// Copies returns the number of copies the weight stands for.
func (w AccountWeight) Copies() int {
	if w.WeightUnit <= 0 {
		return w.Weight
	}
	return w.Weight / w.WeightUnit
}

// AccountTrxSet is a weighted set of accounts charged for one ticket.
type AccountTrxSet struct {
	TotalWeight int
	Weights     []AccountWeight
}

// Denominator returns the total weight the split divides by.
func (s AccountTrxSet) Denominator() int {
	if s.TotalWeight > 0 {
		return s.TotalWeight
	}
	total := 0
	for _, w := range s.Weights {
		total += w.Weight
	}
	return total
}

// AccountCharge is the amount assigned to one account.
type AccountCharge struct {
	AccountID string
	Amount    decimal.Decimal
}

// LedgerEntryKind tags ledger postings.
type LedgerEntryKind string

const (
	LedgerEntryCharge   LedgerEntryKind = "CHARGE"
	LedgerEntryReversal LedgerEntryKind = "REVERSAL"
)

// LedgerEntry is one posting handed to the accounting collaborator.
type LedgerEntry struct {
	TicketID     string
	TicketNumber string
	AccountID    string
	Kind         LedgerEntryKind
	Amount       decimal.Decimal
	Comment      string
}
