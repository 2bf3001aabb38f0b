package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmeshcher/bakery-storefront/internal/model"
)

func TestDiscountAmount(t *testing.T) {
	tests := []struct {
		name     string
		code     *model.DiscountCode
		subtotal int64
		want     int64
	}{
		{name: "no code", code: nil, subtotal: 450, want: 0},
		{name: "ten percent", code: &model.DiscountCode{Type: model.DiscountPercentage, Value: 10}, subtotal: 450, want: 45},
		{name: "half rounds up", code: &model.DiscountCode{Type: model.DiscountPercentage, Value: 15}, subtotal: 30, want: 5},
		{name: "below half rounds down", code: &model.DiscountCode{Type: model.DiscountPercentage, Value: 10}, subtotal: 44, want: 4},
		{name: "full percentage", code: &model.DiscountCode{Type: model.DiscountPercentage, Value: 100}, subtotal: 999, want: 999},
		{name: "fixed below subtotal", code: &model.DiscountCode{Type: model.DiscountFixed, Value: 80}, subtotal: 450, want: 80},
		{name: "fixed clamped", code: &model.DiscountCode{Type: model.DiscountFixed, Value: 80}, subtotal: 50, want: 50},
		{name: "empty cart", code: &model.DiscountCode{Type: model.DiscountFixed, Value: 80}, subtotal: 0, want: 0},
		{name: "unknown type", code: &model.DiscountCode{Type: "bogo", Value: 1}, subtotal: 450, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DiscountAmount(tt.code, tt.subtotal))
		})
	}
}

func TestTotals_Consistent(t *testing.T) {
	c := newTestCart(Options{})
	_, _ = c.AddItem(espresso(), 2)
	_, _ = c.AddItem(medialuna(), 3)

	totals := c.Totals()
	assert.Equal(t, Totals{
		Subtotal:     570,
		Discount:     0,
		Total:        570,
		ItemCount:    5,
		PointsToEarn: 57,
	}, totals)
}

func TestEmptyCartTotals(t *testing.T) {
	c := newTestCart(Options{})

	assert.Zero(t, c.Subtotal())
	assert.Zero(t, c.Discount())
	assert.Zero(t, c.Total())
	assert.Zero(t, c.ItemCount())
	assert.Zero(t, c.PointsToEarn())
}

func TestView_IsConsistentCopy(t *testing.T) {
	c := newTestCart(Options{Directory: fixedDirectory{}})
	_, err := c.AddItem(espresso(), 3)
	if err != nil {
		t.Fatalf("AddItem error: %v", err)
	}
	if res := c.ApplyDiscountCode(context.Background(), "SAVE10"); !res.Applied {
		t.Fatalf("apply failed: %s", res.Message)
	}

	v := c.View()
	assert.Len(t, v.Lines, 1)
	assert.Equal(t, "SAVE10", v.Code.Code)
	assert.Equal(t, Totals{Subtotal: 450, Discount: 45, Total: 405, ItemCount: 3, PointsToEarn: 40}, v.Totals)

	v.Lines[0].Quantity = 99
	v.Code.Value = 100
	assert.Equal(t, 3, c.ItemCount())
	assert.Equal(t, int64(45), c.Discount())
}
