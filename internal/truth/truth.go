// Package truth places field-collected ground-truth points on maps, tiles
// and photos, labelled with the survey's target taxonomy.
package truth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"argos/internal/geo"
	"argos/pkg/colorutil"
)

var (
	ErrNoFieldCode = errors.New("no field code")
	ErrBadTarget   = errors.New("invalid target")
)

// Point is a ground-truth observation recorded in the field.
type Point struct {
	Position geo.Point `json:"position"`
	Code     string    `json:"code"`
	Name     string    `json:"name,omitempty"`
	Symbol   string    `json:"symbol,omitempty"`
	Recorded string    `json:"recorded,omitempty"`
}

// Shapefile attribute names of field waypoints.
const (
	FieldName     = "Name"
	FieldSymbol   = "Symbol"
	FieldRecorded = "DateTimeS"
)

var fieldCode = regexp.MustCompile(`(\w+)\s.*`)

// ParseFieldCode returns the leading word of a waypoint name, as in
// "SPAL 12 north bank" -> "SPAL". Names without a following description
// carry no code.
func ParseFieldCode(name string) (string, error) {
	m := fieldCode.FindStringSubmatch(name)
	if m == nil {
		return "", fmt.Errorf("%w in %q", ErrNoFieldCode, name)
	}
	return m[1], nil
}

// FromFields builds a Point from a waypoint position and its attributes.
func FromFields(pos geo.Point, fields map[string]string) (Point, error) {
	if err := pos.Validate(); err != nil {
		return Point{}, err
	}
	name := fields[FieldName]
	code, err := ParseFieldCode(name)
	if err != nil {
		return Point{}, err
	}
	return Point{
		Position: pos,
		Code:     code,
		Name:     name,
		Symbol:   fields[FieldSymbol],
		Recorded: fields[FieldRecorded],
	}, nil
}

// Target is an annotation class and the field codes recorded for it.
type Target struct {
	ScientificName string   `json:"scientific_name" mapstructure:"scientific_name"`
	CommonName     string   `json:"common_name" mapstructure:"common_name"`
	ColorCode      string   `json:"color_code" mapstructure:"color_code"`
	Codes          []string `json:"codes" mapstructure:"codes"`
	Physiognomy    string   `json:"physiognomy,omitempty" mapstructure:"physiognomy"`
	Category       string   `json:"category,omitempty" mapstructure:"category"`
}

// Validate checks the target has a name, codes and a parseable color.
func (t Target) Validate() error {
	if strings.TrimSpace(t.ScientificName) == "" {
		return fmt.Errorf("%w: missing scientific name", ErrBadTarget)
	}
	if len(t.Codes) == 0 {
		return fmt.Errorf("%w: %s has no codes", ErrBadTarget, t.ScientificName)
	}
	if _, err := colorutil.ParseHex(t.ColorCode); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadTarget, t.ScientificName, err)
	}
	return nil
}

// Taxonomy looks targets up by field code. When several targets list the
// same code the one listed last wins.
type Taxonomy struct {
	targets []Target
	byCode  map[string]int
}

// NewTaxonomy validates and indexes targets.
func NewTaxonomy(targets []Target) (*Taxonomy, error) {
	tax := &Taxonomy{targets: make([]Target, len(targets)), byCode: make(map[string]int)}
	copy(tax.targets, targets)
	for i, t := range tax.targets {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		for _, c := range t.Codes {
			tax.byCode[c] = i
		}
	}
	return tax, nil
}

// Lookup returns the target recorded under code.
func (t *Taxonomy) Lookup(code string) (Target, bool) {
	if t == nil {
		return Target{}, false
	}
	i, ok := t.byCode[code]
	if !ok {
		return Target{}, false
	}
	return t.targets[i], true
}

// Targets returns the targets in their original order.
func (t *Taxonomy) Targets() []Target {
	if t == nil {
		return nil
	}
	out := make([]Target, len(t.targets))
	copy(out, t.targets)
	return out
}

// PhysicalFeatures are the non-plant classes every survey annotates.
func PhysicalFeatures() []Target {
	return []Target{
		{ScientificName: "H2O", CommonName: "water", ColorCode: "#0e87cc", Codes: []string{"CR"}, Physiognomy: "N/A", Category: "Physical Feature"},
		{ScientificName: "Roadus Roadius", CommonName: "Road", ColorCode: "#070d0d", Codes: []string{"ROAD"}, Physiognomy: "N/A", Category: "Man-made Feature"},
		{ScientificName: "Silicon Dioxide", CommonName: "Sand", ColorCode: "#8a6e45", Codes: []string{"DIRT"}, Physiognomy: "N/A", Category: "Physical Feature"},
		{ScientificName: "Rocky Rockinius", CommonName: "Rock", ColorCode: "#ada587", Codes: []string{"ROCK"}, Physiognomy: "N/A", Category: "Physical Feature"},
	}
}
