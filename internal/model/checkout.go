package model

import (
	"time"

	"github.com/google/uuid"
)

// CheckoutUser is the user holding a checkout.
type CheckoutUser struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Checkout records that an item is held by a user. It is active until
// ReturnedAt is set.
type Checkout struct {
	ID           uuid.UUID    `json:"id"`
	CheckedOutBy CheckoutUser `json:"checkedOutBy"`
	CheckedOutAt time.Time    `json:"checkedOutAt"`
	ReturnedAt   *time.Time   `json:"returnedAt,omitempty"`
}

// Active reports whether the checkout has not been returned yet.
func (c Checkout) Active() bool {
	return c.ReturnedAt == nil
}

// Clone returns a copy of c with its own ReturnedAt.
func (c Checkout) Clone() Checkout {
	if c.ReturnedAt != nil {
		t := *c.ReturnedAt
		c.ReturnedAt = &t
	}
	return c
}

// CheckoutRecord is one entry of an item's checkout history.
type CheckoutRecord struct {
	ID           uuid.UUID  `json:"id"`
	ItemID       uuid.UUID  `json:"itemId"`
	CheckedOutBy uuid.UUID  `json:"checkedOutBy"`
	CheckedOutAt time.Time  `json:"checkedOutAt"`
	ReturnedAt   *time.Time `json:"returnedAt"`
}
