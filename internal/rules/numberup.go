package rules

import (
	_ "embed"
	"fmt"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

// Sheet orientations used as the first independent variable of number-up rules.
const (
	OrientationPortrait  = 0
	OrientationLandscape = 1
)

//go:embed numberup_builtin.yaml
var builtinNumberUpYAML []byte

// NumberUpTemplate is the job side of a number-up lookup.
type NumberUpTemplate struct {
	Orientation     int
	PageRotation    int
	ContentRotation int
	UserRotation    int
	NumberUp        int
}

func (t NumberUpTemplate) tuple() []int {
	return []int{t.Orientation, t.PageRotation, t.ContentRotation, t.UserRotation, t.NumberUp}
}

// NumberUpRule is a compiled number-up rule.
type NumberUpRule = Rule[int, domain.NumberUpResult]

// NumberUpTable is a versioned, ordered list of number-up rules.
type NumberUpTable struct {
	Version int
	Rules   []NumberUpRule
}

type yamlSlot string

func (s *yamlSlot) UnmarshalYAML(node *yaml.Node) error {
	*s = yamlSlot(node.Value)
	return nil
}

type yamlNumberUpRule struct {
	When struct {
		Orientation     yamlSlot `yaml:"orientation"`
		PageRotation    yamlSlot `yaml:"page_rotation"`
		ContentRotation yamlSlot `yaml:"content_rotation"`
		UserRotation    yamlSlot `yaml:"user_rotation"`
		NumberUp        yamlSlot `yaml:"number_up"`
	} `yaml:"when"`
	Then domain.NumberUpResult `yaml:"then"`
}

type yamlNumberUpTable struct {
	Version int                `yaml:"version"`
	Rules   []yamlNumberUpRule `yaml:"rules"`
}

var builtinNumberUp = sync.OnceValues(func() (NumberUpTable, error) {
	return ParseNumberUpTable(builtinNumberUpYAML)
})

// BuiltinNumberUp returns the embedded number-up table.
func BuiltinNumberUp() NumberUpTable {
	table, err := builtinNumberUp()
	if err != nil {
		panic("rules: invalid built-in number-up table: " + err.Error())
	}
	return table
}

// ParseNumberUpTable decodes a YAML rule table.
func ParseNumberUpTable(data []byte) (NumberUpTable, error) {
	var raw yamlNumberUpTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return NumberUpTable{}, fmt.Errorf("decode number-up table: %w", err)
	}
	table := NumberUpTable{Version: raw.Version, Rules: make([]NumberUpRule, 0, len(raw.Rules))}
	for i, r := range raw.Rules {
		orientation, err := orientationSlot(string(r.When.Orientation))
		if err != nil {
			return NumberUpTable{}, fmt.Errorf("rule %d: %w", i, err)
		}
		slots := []Slot[int]{orientation}
		for _, v := range []yamlSlot{r.When.PageRotation, r.When.ContentRotation, r.When.UserRotation, r.When.NumberUp} {
			slot, err := intSlot(string(v))
			if err != nil {
				return NumberUpTable{}, fmt.Errorf("rule %d: %w", i, err)
			}
			slots = append(slots, slot)
		}
		table.Rules = append(table.Rules, NumberUpRule{Slots: slots, Result: r.Then})
	}
	return table, nil
}

func orientationSlot(v string) (Slot[int], error) {
	switch v {
	case "", "*":
		return Any[int](), nil
	case "portrait":
		return Is(OrientationPortrait), nil
	case "landscape":
		return Is(OrientationLandscape), nil
	}
	return Slot[int]{}, fmt.Errorf("unknown orientation %q", v)
}

func intSlot(v string) (Slot[int], error) {
	if v == "" || v == "*" {
		return Any[int](), nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return Slot[int]{}, fmt.Errorf("invalid slot value %q", v)
	}
	return Is(n), nil
}

// CompileNumberUpRules converts device overrides into engine rules.
func CompileNumberUpRules(custom []domain.NumberUpRule) []NumberUpRule {
	compiled := make([]NumberUpRule, 0, len(custom))
	for _, c := range custom {
		compiled = append(compiled, NumberUpRule{
			Slots: []Slot[int]{
				optionalSlot(c.Orientation),
				optionalSlot(c.PageRotation),
				optionalSlot(c.ContentRotation),
				optionalSlot(c.UserRotation),
				optionalSlot(c.NumberUp),
			},
			Result: c.Result,
		})
	}
	return compiled
}

func optionalSlot(v *int) Slot[int] {
	if v == nil {
		return Any[int]()
	}
	return Is(*v)
}

// ResolveNumberUp finds the imposition parameters of a job. Device rules are
// searched before the built-in table. Layouts of 9 and 16 pages share the
// 4-up geometry and are matched as 4-up.
func ResolveNumberUp(template NumberUpTemplate, custom []domain.NumberUpRule, builtin NumberUpTable) (domain.NumberUpResult, bool) {
	lookup := template
	if lookup.NumberUp == 9 || lookup.NumberUp == 16 {
		lookup.NumberUp = 4
	}
	tuple := lookup.tuple()
	if len(custom) > 0 {
		if rule, ok := Match(CompileNumberUpRules(custom), tuple); ok {
			return rule.Result, true
		}
	}
	rule, ok := Match(builtin.Rules, tuple)
	if !ok {
		return domain.NumberUpResult{}, false
	}
	return rule.Result, true
}
