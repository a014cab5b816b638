package tabs

import (
	"github.com/google/uuid"

	"github.com/rjanssen/bartab-backend/pkg/db/models"
)

// AddItemInput is one requested line for a tab.
type AddItemInput struct {
	DrinkID uuid.UUID
	Qty     int
}

// GuestTabInput captures everything needed to open a guest tab.
type GuestTabInput struct {
	Name       string
	TableLabel string
	Email      *string
	Items      []AddItemInput
}

// AddItemResult reports the tab after the add and whether the line merged
// into an existing one rather than creating a new line.
type AddItemResult struct {
	Tab    *models.Tab
	Merged bool
}

// Settlement is the outcome of a Paid transition. ReceiptDue is the one-shot
// signal that a settlement notification still has to be issued; a repeated
// transition on an already-settled tab reports AlreadyPaid with ReceiptDue
// false.
type Settlement struct {
	TabID       uuid.UUID
	AmountCents int64
	AlreadyPaid bool
	ReceiptDue  bool
}
