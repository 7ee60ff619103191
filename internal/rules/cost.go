package rules

import (
	"maps"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

// Validity is the tri-state verdict of option constraint rules.
type Validity int

const (
	// Unspecified means no rule addressed the option.
	Unspecified Validity = iota
	Valid
	Invalid
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unspecified"
	}
}

// Applies reports whether every predicate of rule holds for options.
// Keywords the rule does not mention are don't-care.
func Applies(rule domain.CostRule, options map[string]string) bool {
	for keyword, want := range rule.When {
		if !predicateHolds(want, options[keyword], hasKey(options, keyword)) {
			return false
		}
	}
	return true
}

func hasKey(options map[string]string, keyword string) bool {
	_, ok := options[keyword]
	return ok
}

func predicateHolds(want, got string, present bool) bool {
	switch {
	case want == "*":
		return present && got != ""
	case strings.HasPrefix(want, "!"):
		return got != want[1:]
	default:
		return present && got == want
	}
}

// CalcCost resolves an amount from rules. Without accumulate the first
// applicable rule carrying an amount wins; with accumulate every applicable
// amount is summed. The boolean is false when no rule contributed.
func CalcCost(rules []domain.CostRule, options map[string]string, accumulate bool) (decimal.Decimal, bool) {
	if !accumulate {
		rule, ok := First(rules, func(r domain.CostRule) bool {
			return r.Amount != nil && Applies(r, options)
		})
		if !ok {
			return decimal.Zero, false
		}
		return *rule.Amount, true
	}
	total := decimal.Zero
	found := false
	for _, rule := range rules {
		if rule.Amount == nil || !Applies(rule, options) {
			continue
		}
		total = total.Add(*rule.Amount)
		found = true
	}
	return total, found
}

// IsOptionValid evaluates the constraint rules that address keyword=value in
// the full option context. The first applicable rule saying valid wins; the
// option is invalid only when every applicable rule rejects it.
func IsOptionValid(rules []domain.CostRule, keyword, value string, context map[string]string) Validity {
	options := maps.Clone(context)
	if options == nil {
		options = map[string]string{}
	}
	options[keyword] = value

	rejected := false
	for _, rule := range rules {
		if rule.Valid == nil {
			continue
		}
		if _, addresses := rule.When[keyword]; !addresses {
			continue
		}
		if !Applies(rule, options) {
			continue
		}
		if *rule.Valid {
			return Valid
		}
		rejected = true
	}
	if rejected {
		return Invalid
	}
	return Unspecified
}

// CostInput describes the job a ticket cost is computed for.
type CostInput struct {
	Options  map[string]string
	Pages    int
	NumberUp int
	Duplex   bool
	Copies   int
}

// Sides returns the printed sides of one copy.
func (in CostInput) Sides() int {
	if in.Pages <= 0 {
		return 0
	}
	n := in.NumberUp
	if n <= 0 {
		n = 1
	}
	return ceilDiv(in.Pages, n)
}

// Sheets returns the sheets of one copy.
func (in CostInput) Sheets() int {
	sides := in.Sides()
	if in.Duplex {
		return ceilDiv(sides, 2)
	}
	return sides
}

// TicketCost computes the total cost of a job from the four device lists.
// Side and sheet costs are first-match; copy and set surcharges accumulate.
func TicketCost(rules domain.CostRules, in CostInput) decimal.Decimal {
	sideCost, _ := CalcCost(rules.MediaSide, in.Options, false)
	sheetCost, _ := CalcCost(rules.Sheet, in.Options, false)
	copyCost, _ := CalcCost(rules.Copy, in.Options, true)
	setCost, _ := CalcCost(rules.Set, in.Options, true)

	perCopy := sideCost.Mul(decimal.NewFromInt(int64(in.Sides()))).
		Add(sheetCost.Mul(decimal.NewFromInt(int64(in.Sheets())))).
		Add(copyCost)
	return perCopy.Mul(decimal.NewFromInt(int64(in.Copies))).Add(setCost)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
