package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeItem_Variants(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		payload string
		check   func(t *testing.T, item Item)
	}{
		{
			name:    "general",
			payload: `{"category":"general","id":"` + id.String() + `","name":"Projector","description":"Epson","checkout":null}`,
			check: func(t *testing.T, item Item) {
				g, ok := item.(General)
				require.True(t, ok, "expected General, got %T", item)
				assert.Equal(t, id, g.ID)
				assert.Equal(t, "Projector", g.Name)
				assert.Nil(t, g.Checkout)
			},
		},
		{
			name:    "book",
			payload: `{"category":"book","id":"` + id.String() + `","name":"Go","author":"Donovan","isbn":"978-0134190440","description":"","checkout":null}`,
			check: func(t *testing.T, item Item) {
				b, ok := item.(Book)
				require.True(t, ok, "expected Book, got %T", item)
				assert.Equal(t, "Donovan", b.Author)
				assert.Equal(t, "978-0134190440", b.ISBN)
			},
		},
		{
			name:    "laptop",
			payload: `{"category":"laptop","id":"` + id.String() + `","name":"X1","macAddress":"00:11:22:33:44:55","description":"","checkout":null}`,
			check: func(t *testing.T, item Item) {
				l, ok := item.(Laptop)
				require.True(t, ok, "expected Laptop, got %T", item)
				assert.Equal(t, "00:11:22:33:44:55", l.MACAddress)
				assert.Equal(t, CategoryLaptop, l.Category())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := DecodeItem([]byte(tt.payload))
			require.NoError(t, err)
			tt.check(t, item)
		})
	}
}

func TestDecodeItem_UnknownCategory(t *testing.T) {
	_, err := DecodeItem([]byte(`{"category":"bicycle","name":"BMX"}`))
	require.ErrorIs(t, err, ErrUnknownCategory)

	_, err = DecodeItem([]byte(`{"name":"no category"}`))
	require.ErrorIs(t, err, ErrUnknownCategory)
}

func TestItemRoundTrip_DropsForeignFields(t *testing.T) {
	id := uuid.New()

	book, err := DecodeItem([]byte(`{"category":"book","id":"` + id.String() + `","name":"Go","author":"A","isbn":"1","macAddress":"00:11:22:33:44:55","description":""}`))
	require.NoError(t, err)

	data, err := json.Marshal(book)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "book", fields["category"])
	assert.NotContains(t, fields, "macAddress")
	assert.Contains(t, fields, "isbn")

	laptop, err := DecodeItem([]byte(`{"category":"laptop","id":"` + id.String() + `","name":"X1","macAddress":"00:11:22:33:44:55","isbn":"1","author":"A","description":""}`))
	require.NoError(t, err)

	data, err = json.Marshal(laptop)
	require.NoError(t, err)

	fields = map[string]any{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "laptop", fields["category"])
	assert.NotContains(t, fields, "isbn")
	assert.NotContains(t, fields, "author")
	assert.Contains(t, fields, "macAddress")
}

func TestItemCheckout(t *testing.T) {
	at := time.Date(2024, 4, 10, 13, 15, 0, 0, time.UTC)
	payload := `{"category":"general","id":"` + uuid.NewString() + `","name":"Camera","description":"",` +
		`"checkout":{"id":"` + uuid.NewString() + `","checkedOutBy":{"id":"` + uuid.NewString() + `","name":"Alice"},"checkedOutAt":"2024-04-10T13:15:00Z"}}`

	item, err := DecodeItem([]byte(payload))
	require.NoError(t, err)

	base := item.Base()
	require.NotNil(t, base.Checkout)
	assert.True(t, base.CheckedOut())
	assert.True(t, base.Checkout.Active())
	assert.Equal(t, "Alice", base.Checkout.CheckedOutBy.Name)
	assert.True(t, at.Equal(base.Checkout.CheckedOutAt))
}

func TestPaginatedItemResponse_Unmarshal(t *testing.T) {
	payload := `{"total":3,"limit":2,"offset":2,"items":[` +
		`{"category":"general","id":"` + uuid.NewString() + `","name":"A","description":"","checkout":null},` +
		`{"category":"book","id":"` + uuid.NewString() + `","name":"B","author":"x","isbn":"y","description":"","checkout":null}]}`

	var page PaginatedItemResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &page))

	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 2, page.Offset)
	require.Len(t, page.Items, 2)
	assert.IsType(t, General{}, page.Items[0])
	assert.IsType(t, Book{}, page.Items[1])

	bad := `{"total":1,"limit":10,"offset":0,"items":[{"category":"boat"}]}`
	require.ErrorIs(t, json.Unmarshal([]byte(bad), &page), ErrUnknownCategory)
}

func TestItemRequest_JSON(t *testing.T) {
	data, err := json.Marshal(LaptopRequest{Name: "X1", MACAddress: "00:11:22:33:44:55"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":"laptop","name":"X1","macAddress":"00:11:22:33:44:55","description":""}`, string(data))

	req, err := DecodeItemRequest(data)
	require.NoError(t, err)
	assert.Equal(t, LaptopRequest{Name: "X1", MACAddress: "00:11:22:33:44:55"}, req)

	_, err = DecodeItemRequest([]byte(`{"name":"missing category"}`))
	require.ErrorIs(t, err, ErrUnknownCategory)
}

func TestRequestFor(t *testing.T) {
	book := Book{ItemBase: ItemBase{ID: uuid.New(), Name: "Go", Description: "d"}, Author: "A", ISBN: "1"}

	req, err := RequestFor(book)
	require.NoError(t, err)
	assert.Equal(t, BookRequest{Name: "Go", Author: "A", ISBN: "1", Description: "d"}, req)
	assert.Equal(t, CategoryBook, req.Category())

	_, err = RequestFor(nil)
	require.ErrorIs(t, err, ErrUnknownCategory)
}

func TestCloneItem(t *testing.T) {
	returned := time.Date(2024, 4, 11, 9, 0, 0, 0, time.UTC)
	orig := Book{
		ItemBase: ItemBase{
			ID:   uuid.New(),
			Name: "Dune",
			Checkout: &Checkout{
				ID:           uuid.New(),
				CheckedOutBy: CheckoutUser{Name: "Ana"},
				ReturnedAt:   &returned,
			},
		},
		Author: "Frank Herbert",
	}

	clone := CloneItem(orig).(Book)
	assert.Equal(t, orig, clone)

	clone.Checkout.CheckedOutBy.Name = "Bor"
	*clone.Checkout.ReturnedAt = returned.Add(time.Hour)

	assert.Equal(t, "Ana", orig.Checkout.CheckedOutBy.Name)
	assert.True(t, returned.Equal(*orig.Checkout.ReturnedAt))
	assert.Nil(t, CloneItem(nil))
}
