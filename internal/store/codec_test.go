package store

import (
	"testing"

	"storefront/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCart_DropsMistypedEntries(t *testing.T) {
	raw := `{"cart":[
		{"id":"1","price":"10","quantity":1,"selectedSize":"m","selectedColor":"red"},
		{"id":"2","price":"10","quantity":"3","selectedSize":"m","selectedColor":"red"},
		{"id":{"nested":true},"price":"10","quantity":1}
	],"version":1}`

	cart, dropped, err := decodeCart(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	require.Len(t, cart, 1)
	assert.Equal(t, model.ProductID("1"), cart[0].ID)

	_, _, err = decodeCart(`{"cart":"oops"}`)
	assert.Error(t, err)
}

func TestEncodeCart_RoundTrip(t *testing.T) {
	raw, err := encodeCart(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cart":[],"version":1}`, raw)

	cart, dropped, err := decodeCart(raw)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Empty(t, cart)
}
