package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Category identifies an item variant. It is fixed when the item is created.
type Category string

// Item categories.
const (
	CategoryGeneral Category = "general"
	CategoryBook    Category = "book"
	CategoryLaptop  Category = "laptop"
)

var (
	// ErrUnknownCategory is returned when a payload carries a category this
	// client does not know how to represent.
	ErrUnknownCategory = errors.New("unknown item category")

	// ErrCategoryChange is returned when an update tries to move an item to
	// another category.
	ErrCategoryChange = errors.New("item category cannot be changed")
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryBook, CategoryLaptop:
		return true
	}
	return false
}

// Item is a catalog item. The concrete type is one of General, Book or Laptop;
// consumers switch on it exhaustively.
type Item interface {
	Category() Category
	Base() ItemBase
	isItem()
}

// ItemBase holds the fields every item variant carries.
type ItemBase struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Checkout    *Checkout `json:"checkout"`
}

// Base returns the common item fields.
func (b ItemBase) Base() ItemBase { return b }

// CheckedOut reports whether the item has an active checkout.
func (b ItemBase) CheckedOut() bool { return b.Checkout != nil }

// General is an item without category-specific fields.
type General struct {
	ItemBase
}

// Book is a catalog book.
type Book struct {
	ItemBase
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

// Laptop is a catalog laptop identified by its MAC address.
type Laptop struct {
	ItemBase
	MACAddress string `json:"macAddress"`
}

// CloneItem returns a copy of item that shares no checkout with it.
func CloneItem(item Item) Item {
	switch v := item.(type) {
	case General:
		v.ItemBase = v.ItemBase.clone()
		return v
	case Book:
		v.ItemBase = v.ItemBase.clone()
		return v
	case Laptop:
		v.ItemBase = v.ItemBase.clone()
		return v
	}
	return item
}

func (b ItemBase) clone() ItemBase {
	if b.Checkout != nil {
		c := b.Checkout.Clone()
		b.Checkout = &c
	}
	return b
}

func (General) Category() Category { return CategoryGeneral }
func (Book) Category() Category    { return CategoryBook }
func (Laptop) Category() Category  { return CategoryLaptop }

func (General) isItem() {}
func (Book) isItem()    {}
func (Laptop) isItem()  {}

// MarshalJSON writes the item with its category tag.
func (g General) MarshalJSON() ([]byte, error) {
	type general General
	return json.Marshal(struct {
		Category Category `json:"category"`
		general
	}{CategoryGeneral, general(g)})
}

// MarshalJSON writes the book with its category tag.
func (b Book) MarshalJSON() ([]byte, error) {
	type book Book
	return json.Marshal(struct {
		Category Category `json:"category"`
		book
	}{CategoryBook, book(b)})
}

// MarshalJSON writes the laptop with its category tag.
func (l Laptop) MarshalJSON() ([]byte, error) {
	type laptop Laptop
	return json.Marshal(struct {
		Category Category `json:"category"`
		laptop
	}{CategoryLaptop, laptop(l)})
}

// DecodeItem decodes a category-tagged item payload into its variant.
// Fields that belong to other categories are dropped.
func DecodeItem(data []byte) (Item, error) {
	var head struct {
		Category Category `json:"category"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding item category: %w", err)
	}

	switch head.Category {
	case CategoryGeneral:
		return decodeAs[General](data)
	case CategoryBook:
		return decodeAs[Book](data)
	case CategoryLaptop:
		return decodeAs[Laptop](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, head.Category)
	}
}

func decodeAs[T Item](data []byte) (Item, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding %s item: %w", v.Category(), err)
	}
	return v, nil
}

// PaginatedItemResponse is one page of the catalog as returned by the server.
type PaginatedItemResponse struct {
	Items  []Item `json:"items"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// UnmarshalJSON decodes the polymorphic item list.
func (p *PaginatedItemResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		Items  []json.RawMessage `json:"items"`
		Total  int               `json:"total"`
		Limit  int               `json:"limit"`
		Offset int               `json:"offset"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	items := make([]Item, 0, len(raw.Items))
	for i, msg := range raw.Items {
		item, err := DecodeItem(msg)
		if err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}

	p.Items = items
	p.Total = raw.Total
	p.Limit = raw.Limit
	p.Offset = raw.Offset
	return nil
}
