package domain

import "github.com/shopspring/decimal"

// Choice is one supported value of an IPP keyword. Label is the localized
// display text; an empty label means the choice cannot be presented.
type Choice struct {
	Value string
	Label string
}

// MediaSource is a tray or feeder loaded with a medium.
type MediaSource struct {
	Keyword string
	Media   string
	Label   string
}

// CostRule maps an option predicate set to an amount or a validity verdict.
// Predicate values may be negated with "!" and "*" matches any present value.
type CostRule struct {
	When   map[string]string
	Amount *decimal.Decimal
	Valid  *bool
}

// CostRules holds the four independently configurable cost lists of a device.
type CostRules struct {
	MediaSide []CostRule
	Sheet     []CostRule
	Copy      []CostRule
	Set       []CostRule
}

// NumberUpRule is a device specific override of the built-in number-up table.
// Nil slots are wildcards.
type NumberUpRule struct {
	Orientation     *int
	PageRotation    *int
	ContentRotation *int
	UserRotation    *int
	NumberUp        *int
	Result          NumberUpResult
}

// NumberUpResult is the page imposition decision for a job.
type NumberUpResult struct {
	Orientation string `yaml:"orientation"`
	Layout      string `yaml:"layout"`
	Landscape   bool   `yaml:"landscape"`
}

// Printer is the read-only capability record of a physical device.
type Printer struct {
	Name            string
	DisplayName     string
	Deleted         bool
	Disabled        bool
	Duplex          bool
	Color           bool
	Choices         map[string][]Choice
	MediaSources    []MediaSource
	Defaults        map[string]string
	CostRules       CostRules
	NumberUpRules   []NumberUpRule
	ConstraintRules []CostRule
	Groups          []string
}

// Supports reports whether value is a supported choice of keyword.
func (p *Printer) Supports(keyword, value string) bool {
	_, ok := p.Choice(keyword, value)
	return ok
}

// Choice looks up a supported choice of keyword.
func (p *Printer) Choice(keyword, value string) (Choice, bool) {
	for _, c := range p.Choices[keyword] {
		if c.Value == value {
			return c, true
		}
	}
	return Choice{}, false
}

// PrinterGroup is a logical printer whose members can execute its tickets.
type PrinterGroup struct {
	Name    string
	Members []Printer
}
