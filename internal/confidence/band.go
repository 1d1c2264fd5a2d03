package confidence

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegrator/inv"
	"github.com/modfin/henry/slicez"
)

var ErrInvalidBandTable = errors.New("invalid band table")

// Band is one severity tier. A confidence falls into the first band, in
// table order, whose Lower bound it reaches.
type Band struct {
	Name  string  `json:"name" toml:"name"`
	Lower float64 `json:"lower" toml:"lower"`
	Color string  `json:"color" toml:"color"`
}

// Table is an ordered set of bands, highest lower bound first. The last
// band catches every value below the bound of the one before it.
type Table []Band

// DefaultTable is the canonical table: 90 / 75 / 60 with a
// green, orange, dark-orange, red palette.
func DefaultTable() Table {
	return Table{
		{Name: "High", Lower: 90, Color: "green"},
		{Name: "Good", Lower: 75, Color: "orange"},
		{Name: "Moderate", Lower: 60, Color: "dark-orange"},
		{Name: "Low", Lower: 0, Color: "red"},
	}
}

// AlternateTable uses the same cut points as DefaultTable with the
// green, orange, red, pink palette.
func AlternateTable() Table {
	return Table{
		{Name: "High", Lower: 90, Color: "green"},
		{Name: "Good", Lower: 75, Color: "orange"},
		{Name: "Moderate", Lower: 60, Color: "red"},
		{Name: "Low", Lower: 0, Color: "pink"},
	}
}

// LegacyTable is the 80 / 70 / 40 variant.
func LegacyTable() Table {
	return Table{
		{Name: "High", Lower: 80, Color: "green"},
		{Name: "Good", Lower: 70, Color: "orange"},
		{Name: "Moderate", Lower: 40, Color: "red"},
		{Name: "Low", Lower: 0, Color: "pink"},
	}
}

// Preset returns a named built-in table.
func Preset(name string) (Table, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return DefaultTable(), nil
	case "alternate":
		return AlternateTable(), nil
	case "legacy":
		return LegacyTable(), nil
	}
	return nil, fmt.Errorf("unknown band preset '%s', %w", name, ErrInvalidBandTable)
}

// Classify returns the band c belongs to. The lower bound of each band is
// inclusive.
func (t Table) Classify(c float64) Band {
	if len(t) == 0 {
		return Band{}
	}
	for _, b := range t {
		if c >= b.Lower {
			return b
		}
	}
	return t[len(t)-1]
}

// Rank is the index of the band c falls into, 0 being the most confident.
func (t Table) Rank(c float64) int {
	for i, b := range t {
		if c >= b.Lower {
			return i
		}
	}
	return len(t) - 1
}

// Upper is the exclusive upper bound of the band at index i, 100 for the
// first one.
func (t Table) Upper(i int) float64 {
	if i == 0 {
		return 100
	}
	return t[i-1].Lower
}

// Validate checks that t has bands, named, with strictly decreasing lower
// bounds, and that the last band reaches down to 0.
func (t Table) Validate() error {
	checks := []any{
		"table has at least one band", len(t) > 0,
	}
	if len(t) > 0 {
		checks = append(checks,
			"last band lower bound is at most 0", t[len(t)-1].Lower <= 0,
		)
	}
	for i, b := range t {
		checks = append(checks,
			fmt.Sprintf("band %d has a name", i), strings.TrimSpace(b.Name) != "",
		)
		if i > 0 {
			checks = append(checks,
				fmt.Sprintf("band %d lower bound is below band %d", i, i-1), b.Lower < t[i-1].Lower,
			)
		}
	}
	if err := inv.Check("band table", checks...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBandTable, err)
	}
	return nil
}

// ParseTable reads bands written as "lower:name[:color]", e.g. "90:High:green".
// Bands may be given in any order; they are sorted by lower bound.
func ParseTable(specs []string) (Table, error) {
	var err error
	table := Table(slicez.Map(specs, func(spec string) Band {
		parts := strings.SplitN(strings.TrimSpace(spec), ":", 3)
		if len(parts) < 2 {
			err = errors.Join(err, fmt.Errorf("band '%s' is not lower:name[:color]", spec))
			return Band{}
		}
		lower, perr := strconv.ParseFloat(parts[0], 64)
		if perr != nil {
			err = errors.Join(err, fmt.Errorf("band '%s' has a bad lower bound: %w", spec, perr))
			return Band{}
		}
		b := Band{Name: parts[1], Lower: lower}
		if len(parts) == 3 {
			b.Color = parts[2]
		}
		return b
	}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBandTable, err)
	}

	table = table.Sorted()
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Sorted returns a copy of t ordered by descending lower bound.
func (t Table) Sorted() Table {
	out := append(Table{}, t...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Lower > out[j].Lower
	})
	return out
}
