package shared

import (
	"regexp"
	"strconv"
	"strings"
)

// Dimensions describes a plate, sheet or bar. Nil members are unknown and act as
// wildcards during inventory lookups.
type Dimensions struct {
	Length    *float64 `json:"length"`
	Width     *float64 `json:"width"`
	Thickness *float64 `json:"thickness"`
}

// ErrInvalidDimensions is returned for dimension labels that do not follow "L: n, W: n, T: n".
var ErrInvalidDimensions = InvalidInput("dimensions must look like \"L: 10, W: 5, T: 0.25\"")

var dimensionPattern = regexp.MustCompile(`^\s*L:\s*(\d+\.?\d*),\s*W:\s*(\d+\.?\d*),\s*T:\s*(\d+\.?\d*)\s*$`)

// Dims is a convenience constructor for fully specified dimensions.
func Dims(length, width, thickness float64) Dimensions {
	return Dimensions{Length: &length, Width: &width, Thickness: &thickness}
}

// ParseDimensions reads the legacy display label. An empty label yields zero Dimensions.
func ParseDimensions(label string) (Dimensions, error) {
	if strings.TrimSpace(label) == "" {
		return Dimensions{}, nil
	}
	m := dimensionPattern.FindStringSubmatch(label)
	if m == nil {
		return Dimensions{}, ErrInvalidDimensions
	}
	vals := make([]float64, 3)
	for i := range vals {
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return Dimensions{}, ErrInvalidDimensions
		}
		vals[i] = v
	}
	return Dims(vals[0], vals[1], vals[2]), nil
}

// IsZero reports whether no dimension is set.
func (d Dimensions) IsZero() bool {
	return d.Length == nil && d.Width == nil && d.Thickness == nil
}

// Validate rejects negative measurements.
func (d Dimensions) Validate() error {
	for _, v := range []*float64{d.Length, d.Width, d.Thickness} {
		if v != nil && *v < 0 {
			return InvalidInput("dimensions must not be negative")
		}
	}
	return nil
}

// Label renders the dimensions the way quotes and invoices print them.
func (d Dimensions) Label() string {
	parts := make([]string, 0, 3)
	add := func(prefix string, v *float64) {
		if v != nil {
			parts = append(parts, prefix+": "+strconv.FormatFloat(*v, 'f', -1, 64))
		}
	}
	add("L", d.Length)
	add("W", d.Width)
	add("T", d.Thickness)
	return strings.Join(parts, ", ")
}

// Matches reports whether other satisfies every dimension set on d.
func (d Dimensions) Matches(other Dimensions) bool {
	eq := func(want, got *float64) bool {
		if want == nil {
			return true
		}
		return got != nil && *got == *want
	}
	return eq(d.Length, other.Length) && eq(d.Width, other.Width) && eq(d.Thickness, other.Thickness)
}
