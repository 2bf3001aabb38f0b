package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/bakery-storefront/internal/model"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	products := c.List()
	require.NotEmpty(t, products)
	assert.Equal(t, "esp-001", products[0].ID)

	p, ok := c.Get("esp-001")
	require.True(t, ok)
	assert.Equal(t, int64(150), p.Price)
	assert.Equal(t, model.CategoryCoffee, p.Category)
	assert.Nil(t, p.Stock)

	med, ok := c.Get("med-001")
	require.True(t, ok)
	require.NotNil(t, med.Stock)
	assert.Equal(t, 120, *med.Stock)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestByCategory(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	empanadas := c.ByCategory(model.CategoryEmpanadas)
	require.Len(t, empanadas, 2)
	for _, p := range empanadas {
		assert.Equal(t, model.CategoryEmpanadas, p.Category)
	}
	assert.Empty(t, c.ByCategory("tea"))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing id", doc: "products:\n  - name: x\n    price: 1\n    category: coffee\n"},
		{name: "negative price", doc: "products:\n  - id: a\n    price: -1\n    category: coffee\n"},
		{name: "negative stock", doc: "products:\n  - id: a\n    price: 1\n    stock: -2\n    category: coffee\n"},
		{name: "unknown category", doc: "products:\n  - id: a\n    price: 1\n    category: tea\n"},
		{name: "duplicate id", doc: "products:\n  - id: a\n    price: 1\n    category: coffee\n  - id: a\n    price: 2\n    category: coffee\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}

	_, err := Parse([]byte("products: [\n"))
	assert.Error(t, err)
}

func TestList_ReturnsCopy(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	list := c.List()
	list[0].Price = 1

	p, _ := c.Get(list[0].ID)
	assert.NotEqual(t, int64(1), p.Price)
}
