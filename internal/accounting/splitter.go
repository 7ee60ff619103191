// Package accounting distributes ticket costs over weighted account sets.
package accounting

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

// ErrNoWeight is returned when the account set has nothing to divide by.
var ErrNoWeight = errors.New("account set has no weight")

// Splitter divides amounts at a fixed monetary scale.
type Splitter struct {
	scale int32
}

// NewSplitter returns a splitter rounding to scale decimal places.
func NewSplitter(scale int32) *Splitter {
	return &Splitter{scale: scale}
}

// Scale returns the monetary scale.
func (s *Splitter) Scale() int32 {
	return s.scale
}

// Round applies half-to-even rounding at the splitter scale.
func (s *Splitter) Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(s.scale)
}

// Split assigns total × weight ÷ denominator to each account, rounded half
// to even. The rounding residue is booked on the last account so the charges
// always add up to the rounded share of the whole set, which is the rounded
// total when the weights sum to the denominator. Accounts listed more than
// once are merged in order of first appearance.
func (s *Splitter) Split(total decimal.Decimal, set domain.AccountTrxSet) ([]domain.AccountCharge, error) {
	denominator := set.Denominator()
	if denominator <= 0 || len(set.Weights) == 0 {
		return nil, ErrNoWeight
	}
	denom := decimal.NewFromInt(int64(denominator))
	weightSum := 0
	for _, w := range set.Weights {
		weightSum += w.Weight
	}
	target := s.Round(total.Mul(decimal.NewFromInt(int64(weightSum))).Div(denom))

	charges := make([]domain.AccountCharge, 0, len(set.Weights))
	index := make(map[string]int, len(set.Weights))
	sum := decimal.Zero
	for _, w := range set.Weights {
		share := s.Round(total.Mul(decimal.NewFromInt(int64(w.Weight))).Div(denom))
		sum = sum.Add(share)
		if i, ok := index[w.AccountID]; ok {
			charges[i].Amount = charges[i].Amount.Add(share)
			continue
		}
		index[w.AccountID] = len(charges)
		charges = append(charges, domain.AccountCharge{AccountID: w.AccountID, Amount: share})
	}

	if residue := target.Sub(sum); !residue.IsZero() {
		last := len(charges) - 1
		charges[last].Amount = charges[last].Amount.Add(residue)
	}
	return charges, nil
}

// Amounts converts charges into a lookup by account.
func Amounts(charges []domain.AccountCharge) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(charges))
	for _, c := range charges {
		out[c.AccountID] = out[c.AccountID].Add(c.Amount)
	}
	return out
}

// Sum adds up the charged amounts.
func Sum(charges []domain.AccountCharge) decimal.Decimal {
	total := decimal.Zero
	for _, c := range charges {
		total = total.Add(c.Amount)
	}
	return total
}
