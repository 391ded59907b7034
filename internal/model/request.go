package model

import (
	"encoding/json"
	"fmt"
)

// ItemRequest is the body of a create or update call. The concrete type
// selects the category; on update the category must match the stored item.
type ItemRequest interface {
	Category() Category
	isItemRequest()
}

// GeneralRequest creates or updates a general item.
type GeneralRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=1024"`
}

// BookRequest creates or updates a book.
type BookRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Author      string `json:"author" validate:"required,max=255"`
	ISBN        string `json:"isbn" validate:"required,max=255"`
	Description string `json:"description" validate:"max=1024"`
}

// LaptopRequest creates or updates a laptop.
type LaptopRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	MACAddress  string `json:"macAddress" validate:"required,mac"`
	Description string `json:"description" validate:"max=1024"`
}

func (GeneralRequest) Category() Category { return CategoryGeneral }
func (BookRequest) Category() Category    { return CategoryBook }
func (LaptopRequest) Category() Category  { return CategoryLaptop }

func (GeneralRequest) isItemRequest() {}
func (BookRequest) isItemRequest()    {}
func (LaptopRequest) isItemRequest()  {}

// MarshalJSON writes the request with its category tag.
func (r GeneralRequest) MarshalJSON() ([]byte, error) {
	type plain GeneralRequest
	return json.Marshal(struct {
		Category Category `json:"category"`
		plain
	}{CategoryGeneral, plain(r)})
}

// MarshalJSON writes the request with its category tag.
func (r BookRequest) MarshalJSON() ([]byte, error) {
	type plain BookRequest
	return json.Marshal(struct {
		Category Category `json:"category"`
		plain
	}{CategoryBook, plain(r)})
}

// MarshalJSON writes the request with its category tag.
func (r LaptopRequest) MarshalJSON() ([]byte, error) {
	type plain LaptopRequest
	return json.Marshal(struct {
		Category Category `json:"category"`
		plain
	}{CategoryLaptop, plain(r)})
}

// DecodeItemRequest decodes a category-tagged request body.
func DecodeItemRequest(data []byte) (ItemRequest, error) {
	var head struct {
		Category Category `json:"category"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding request category: %w", err)
	}

	var (
		req ItemRequest
		err error
	)
	switch head.Category {
	case CategoryGeneral:
		var r GeneralRequest
		err = json.Unmarshal(data, &r)
		req = r
	case CategoryBook:
		var r BookRequest
		err = json.Unmarshal(data, &r)
		req = r
	case CategoryLaptop:
		var r LaptopRequest
		err = json.Unmarshal(data, &r)
		req = r
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, head.Category)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s request: %w", head.Category, err)
	}
	return req, nil
}

// RequestFor returns the update request that reproduces item as it is.
func RequestFor(item Item) (ItemRequest, error) {
	switch it := item.(type) {
	case General:
		return GeneralRequest{Name: it.Name, Description: it.Description}, nil
	case Book:
		return BookRequest{Name: it.Name, Author: it.Author, ISBN: it.ISBN, Description: it.Description}, nil
	case Laptop:
		return LaptopRequest{Name: it.Name, MACAddress: it.MACAddress, Description: it.Description}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCategory, item)
	}
}
