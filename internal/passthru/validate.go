package passthru

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationState is the pass/fail outcome of a field.
type ValidationState int

const (
	Invalid ValidationState = iota
	Valid
)

func (v ValidationState) String() string {
	if v == Valid {
		return "Valid"
	}
	return "Invalid"
}

func (v ValidationState) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *ValidationState) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "Valid":
		*v = Valid
	case "Invalid":
		*v = Invalid
	default:
		return fmt.Errorf("unknown validation state %q", s)
	}
	return nil
}

// Validate applies a marker rule to a field value.
//
// Without invert the value is Valid when it contains marker (or when no marker
// is configured). With invert the value is Valid when marker is absent, so
// "must be STATUS_NOERROR" and "must not be -1" share one mechanism.
// An unresolved value is always Invalid.
func Validate(value, marker string, invert bool) ValidationState {
	if value == Unresolved {
		return Invalid
	}
	if marker == "" {
		return Valid
	}
	if strings.Contains(value, marker) != invert {
		return Valid
	}
	return Invalid
}
