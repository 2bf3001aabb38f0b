package cart

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/bakery-storefront/internal/loyalty"
	"github.com/mmeshcher/bakery-storefront/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Totals содержит производные суммы корзины.
type Totals struct {
	Subtotal     int64 `json:"subtotal"`
	Discount     int64 `json:"discount"`
	Total        int64 `json:"total"`
	ItemCount    int   `json:"item_count"`
	PointsToEarn int64 `json:"points_to_earn"`
}

// Subtotal возвращает сумму price × quantity по всем позициям.
func (c *Cart) Subtotal() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return subtotalOf(c.lines)
}

// Discount возвращает размер скидки по применённому коду для текущей суммы корзины.
func (c *Cart) Discount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return DiscountAmount(c.discount, subtotalOf(c.lines))
}

// Total возвращает сумму к оплате без стоимости доставки.
func (c *Cart) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.totalsLocked().Total
}

// PointsToEarn возвращает баллы лояльности за заказ: одна единица за каждые 10 единиц
// суммы после скидки, без учёта доставки.
func (c *Cart) PointsToEarn() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.totalsLocked().PointsToEarn
}

// Totals возвращает согласованный набор сумм, посчитанный под одной блокировкой.
func (c *Cart) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.totalsLocked()
}

func (c *Cart) totalsLocked() Totals {
	subtotal := subtotalOf(c.lines)
	discount := DiscountAmount(c.discount, subtotal)
	total := subtotal - discount
	if total < 0 {
		total = 0
	}

	count := 0
	for _, l := range c.lines {
		count += l.Quantity
	}

	return Totals{
		Subtotal:     subtotal,
		Discount:     discount,
		Total:        total,
		ItemCount:    count,
		PointsToEarn: loyalty.PointsForAmount(total),
	}
}

func subtotalOf(lines []model.CartLine) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.Total()
	}
	return sum
}

// DiscountAmount считает скидку по коду dc для суммы subtotal.
// Процентная скидка округляется до целой единицы валюты, половина округляется вверх.
// Скидка никогда не превышает subtotal.
func DiscountAmount(dc *model.DiscountCode, subtotal int64) int64 {
	if dc == nil || subtotal <= 0 || dc.Value <= 0 {
		return 0
	}

	var amount int64
	switch dc.Type {
	case model.DiscountPercentage:
		amount = decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(dc.Value)).
			Div(hundred).
			Round(0).
			IntPart()
	case model.DiscountFixed:
		amount = dc.Value
	default:
		return 0
	}

	if amount > subtotal {
		amount = subtotal
	}
	return amount
}

// View описывает согласованное состояние корзины для отображения и оформления заказа.
type View struct {
	Lines []model.CartLine    `json:"lines"`
	Code  *model.DiscountCode `json:"discount_code,omitempty"`
	Totals
}

// View возвращает позиции, код скидки и суммы, прочитанные под одной блокировкой.
func (c *Cart) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Lines:  make([]model.CartLine, len(c.lines)),
		Totals: c.totalsLocked(),
	}
	for i, l := range c.lines {
		v.Lines[i] = l
		v.Lines[i].Product = cloneProduct(l.Product)
	}
	if c.discount != nil {
		dc := *c.discount
		v.Code = &dc
	}
	return v
}
