package validator

import (
	"fmt"
)

// Validator represents a sanity check over one numeric reading
type Validator interface {
	// Validate returns an error describing the violation, or nil
	Validate(value float64) error
}

// RangeValidator checks that a reading falls inside an inclusive range
type RangeValidator struct {
	Field string
	Min   float64
	Max   float64
}

// Validate implements Validator
func (rv *RangeValidator) Validate(value float64) error {
	if value < rv.Min || value > rv.Max {
		return fmt.Errorf("field %s value %g outside range [%g, %g]", rv.Field, value, rv.Min, rv.Max)
	}
	return nil
}
