package domain

import "strconv"

// IPP keywords the dispatch core interprets.
const (
	OptSides             = "sides"
	OptColorMode         = "print-color-mode"
	OptMedia             = "media"
	OptMediaType         = "media-type"
	OptMediaSource       = "media-source"
	OptSheetCollate      = "sheet-collate"
	OptJobSheets         = "job-sheets"
	OptNumberUp          = "number-up"
	OptOrientation       = "orientation-requested"
	OptOutputBin         = "output-bin"
	OptJogOffset         = "jog-offset"
	OptJobSheetsSource   = "job-sheets-media-source"
	OptBooklet           = "booklet"
	OptNumberUpLayout    = "number-up-layout"
	OptTargetOrientation = "x-target-orientation"
	OptLandscape         = "x-landscape"

	ValueNone             = "none"
	ValueColor            = "color"
	ValueMonochrome       = "monochrome"
	ValueOneSided         = "one-sided"
	ValueTwoSidedLongEdge = "two-sided-long-edge"
	ValueTwoSidedShort    = "two-sided-short-edge"
)

// FinishingKeywords are the finishing options a device must support when
// requested with a value other than "none".
var FinishingKeywords = []string{
	"finishings",
	"finishings-staple",
	"finishings-punch",
	"finishings-fold",
	"finishings-booklet",
}

// WantsDuplex reports whether the ticket asks for two-sided output.
func (t *Ticket) WantsDuplex() bool {
	s := t.Options[OptSides]
	return s == ValueTwoSidedLongEdge || s == ValueTwoSidedShort
}

// WantsColor reports whether the ticket asks for color output.
func (t *Ticket) WantsColor() bool {
	return t.Options[OptColorMode] == ValueColor
}

// WantsJobSheets reports whether banner sheets are requested.
func (t *Ticket) WantsJobSheets() bool {
	v := t.Options[OptJobSheets]
	return v != "" && v != ValueNone
}

// Finishings returns the requested finishing options.
func (t *Ticket) Finishings() map[string]string {
	found := map[string]string{}
	for _, k := range FinishingKeywords {
		if v := t.Options[k]; v != "" && v != ValueNone {
			found[k] = v
		}
	}
	return found
}

// NumberUp returns the requested layout count, 1 when absent or invalid.
func (t *Ticket) NumberUp() int {
	n, err := strconv.Atoi(t.Options[OptNumberUp])
	if err != nil || n < 1 {
		return 1
	}
	return n
}
