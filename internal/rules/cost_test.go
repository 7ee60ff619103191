package rules

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func verdict(v bool) *bool { return &v }

func TestCalcCostAccumulatesAllApplicableRules(t *testing.T) {
	rules := []domain.CostRule{
		{When: map[string]string{"finishings-cover": "front"}, Amount: amount("0.50")},
		{When: map[string]string{"finishings-binding": "*"}, Amount: amount("1.25")},
		{When: map[string]string{"media": "iso_a4_210x297mm"}, Amount: amount("0.10")},
		{When: map[string]string{"media": "iso_a3_297x420mm"}, Amount: amount("9.99")},
	}
	options := map[string]string{
		"finishings-cover":   "front",
		"finishings-binding": "wire",
		"media":              "iso_a4_210x297mm",
	}

	got, ok := CalcCost(rules, options, true)
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("1.85").Equal(got), got.String())

	got, ok = CalcCost(rules, options, false)
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("0.50").Equal(got), got.String())
}

func TestCalcCostSkipsRulesWithoutAmount(t *testing.T) {
	rules := []domain.CostRule{
		{When: map[string]string{"media": "iso_a4_210x297mm"}, Valid: verdict(true)},
		{When: map[string]string{"media": "iso_a4_210x297mm"}, Amount: amount("0.07")},
	}
	got, ok := CalcCost(rules, map[string]string{"media": "iso_a4_210x297mm"}, false)
	require.True(t, ok)
	assert.Equal(t, "0.07", got.StringFixed(2))
}

func TestCalcCostNoMatch(t *testing.T) {
	rules := []domain.CostRule{{When: map[string]string{"media": "iso_a3_297x420mm"}, Amount: amount("1")}}
	got, ok := CalcCost(rules, map[string]string{"media": "iso_a4_210x297mm"}, true)
	assert.False(t, ok)
	assert.True(t, got.IsZero())
}

func TestAppliesPredicates(t *testing.T) {
	options := map[string]string{"sides": "one-sided", "print-color-mode": "color"}
	cases := []struct {
		when map[string]string
		want bool
	}{
		{nil, true},
		{map[string]string{"sides": "one-sided"}, true},
		{map[string]string{"sides": "!one-sided"}, false},
		{map[string]string{"sides": "!two-sided-long-edge"}, true},
		{map[string]string{"print-color-mode": "*"}, true},
		{map[string]string{"media-type": "*"}, false},
		{map[string]string{"media-type": "!stationery"}, true},
		{map[string]string{"sides": "one-sided", "print-color-mode": "monochrome"}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Applies(domain.CostRule{When: tc.when}, options), "when %v", tc.when)
	}
}

func TestIsOptionValid(t *testing.T) {
	rules := []domain.CostRule{
		{When: map[string]string{"finishings-staple": "staple-top-left", "media": "iso_a5_148x210mm"}, Valid: verdict(false)},
		{When: map[string]string{"finishings-staple": "staple-top-left", "media": "iso_a4_210x297mm"}, Valid: verdict(true)},
		{When: map[string]string{"finishings-staple": "*", "sides": "one-sided"}, Valid: verdict(false)},
		{When: map[string]string{"finishings-punch": "*"}, Amount: amount("0.20")},
	}

	a4Simplex := map[string]string{"media": "iso_a4_210x297mm", "sides": "one-sided"}
	assert.Equal(t, Valid, IsOptionValid(rules, "finishings-staple", "staple-top-left", a4Simplex))

	a5Simplex := map[string]string{"media": "iso_a5_148x210mm", "sides": "one-sided"}
	assert.Equal(t, Invalid, IsOptionValid(rules, "finishings-staple", "staple-top-left", a5Simplex))

	a3Duplex := map[string]string{"media": "iso_a3_297x420mm", "sides": "two-sided-long-edge"}
	assert.Equal(t, Unspecified, IsOptionValid(rules, "finishings-staple", "staple-top-left", a3Duplex))

	assert.Equal(t, Unspecified, IsOptionValid(rules, "finishings-punch", "punch-dual-left", a4Simplex))
	assert.Equal(t, Unspecified, IsOptionValid(nil, "media", "iso_a4_210x297mm", nil))
}

func TestTicketCost(t *testing.T) {
	rules := domain.CostRules{
		MediaSide: []domain.CostRule{
			{When: map[string]string{"print-color-mode": "color"}, Amount: amount("0.25")},
			{Amount: amount("0.05")},
		},
		Sheet: []domain.CostRule{{When: map[string]string{"media": "iso_a4_210x297mm"}, Amount: amount("0.02")}},
		Copy: []domain.CostRule{
			{When: map[string]string{"finishings-staple": "*"}, Amount: amount("0.10")},
			{When: map[string]string{"finishings-punch": "*"}, Amount: amount("0.15")},
		},
		Set: []domain.CostRule{{When: map[string]string{"job-sheets": "!none"}, Amount: amount("1.00")}},
	}
	in := CostInput{
		Options: map[string]string{
			"media":             "iso_a4_210x297mm",
			"print-color-mode":  "monochrome",
			"finishings-staple": "staple-top-left",
			"finishings-punch":  "punch-dual-left",
			"job-sheets":        "none",
		},
		Pages:    10,
		NumberUp: 2,
		Duplex:   true,
		Copies:   3,
	}
	assert.Equal(t, 5, in.Sides())
	assert.Equal(t, 3, in.Sheets())

	// per copy: 5*0.05 + 3*0.02 + 0.25 = 0.56; three copies, no set cost
	got := TicketCost(rules, in)
	assert.Equal(t, "1.68", got.StringFixed(2))
}
