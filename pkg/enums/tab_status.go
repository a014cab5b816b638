package enums

import "fmt"

// TabStatus tracks whether a tab is still accumulating items or settled.
// Paid is terminal; a tab never reopens.
type TabStatus string

const (
	TabStatusOpen TabStatus = "open"
	TabStatusPaid TabStatus = "paid"
)

var validTabStatuses = []TabStatus{
	TabStatusOpen,
	TabStatusPaid,
}

// String implements fmt.Stringer.
func (t TabStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TabStatus.
func (t TabStatus) IsValid() bool {
	for _, candidate := range validTabStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTabStatus converts raw input into a TabStatus.
func ParseTabStatus(value string) (TabStatus, error) {
	for _, candidate := range validTabStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tab status %q", value)
}
