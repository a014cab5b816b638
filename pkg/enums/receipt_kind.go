package enums

import "fmt"

// ReceiptKind distinguishes the post-settlement notifications a tab can emit.
// A tab sends at most one receipt per kind.
type ReceiptKind string

const (
	ReceiptKindSettlement ReceiptKind = "settlement"
)

var validReceiptKinds = []ReceiptKind{
	ReceiptKindSettlement,
}

func (k ReceiptKind) String() string {
	return string(k)
}

func (k ReceiptKind) IsValid() bool {
	for _, candidate := range validReceiptKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

func ParseReceiptKind(value string) (ReceiptKind, error) {
	for _, candidate := range validReceiptKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid receipt kind %q", value)
}
