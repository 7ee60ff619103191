// Package ticketnumber generates short, human-typeable ticket numbers.
package ticketnumber

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/bwmarrin/snowflake"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

const (
	// GroupWidth is the number of characters per group.
	GroupWidth = 4
	// GroupSeparator joins the groups of a number.
	GroupSeparator = "-"
	// LabelSeparator joins the label prefix to the number.
	LabelSeparator = "/"
	// LabelPartSeparator joins the domain, use and tag of a label.
	LabelPartSeparator = "."
	// ReopenSuffix marks numbers of reopened tickets. It is not a hex digit,
	// so a reopened number never equals a generated one.
	ReopenSuffix = "-R"

	encodedWidth = 16
)

// Generator derives ticket numbers from a strictly increasing snowflake
// sequence. The encoded digits are shuffled so consecutive numbers do not
// look sequential. Uniqueness is enforced by the ticket store, not here.
type Generator struct {
	node    *snowflake.Node
	shuffle func(n int, swap func(i, j int))
}

// NewGenerator returns a generator for the given snowflake node id.
func NewGenerator(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node, shuffle: rand.Shuffle}, nil
}

// Generate returns a number without label, e.g. "3F0A-91C2-0D7B-E641".
func (g *Generator) Generate() string {
	return g.GenerateLabeled(domain.NumberLabel{})
}

// GenerateLabeled returns a number prefixed by the non-empty label parts,
// e.g. "LIB.COPY/3F0A-91C2-0D7B-E641".
func (g *Generator) GenerateLabeled(label domain.NumberLabel) string {
	digits := []byte(fmt.Sprintf("%0*x", encodedWidth, g.node.Generate().Int64()))
	g.shuffle(len(digits), func(i, j int) { digits[i], digits[j] = digits[j], digits[i] })

	groups := make([]string, 0, (len(digits)+GroupWidth-1)/GroupWidth)
	for start := 0; start < len(digits); start += GroupWidth {
		end := min(start+GroupWidth, len(digits))
		groups = append(groups, string(digits[start:end]))
	}
	number := strings.ToUpper(strings.Join(groups, GroupSeparator))

	if prefix := Prefix(label); prefix != "" {
		return prefix + LabelSeparator + number
	}
	return number
}

// Prefix formats the label parts of a number.
func Prefix(label domain.NumberLabel) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{label.Domain, label.Use, label.Tag} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, strings.ToUpper(p))
		}
	}
	return strings.Join(parts, LabelPartSeparator)
}

// Reopened returns the number of a ticket reopened from number.
func Reopened(number string) string {
	if IsReopened(number) {
		return number
	}
	return number + ReopenSuffix
}

// IsReopened reports whether number carries the reopen suffix.
func IsReopened(number string) bool {
	return strings.HasSuffix(number, ReopenSuffix)
}
