// Package model содержит доменные сущности витрины пекарни.
package model

import "time"

// Category описывает раздел каталога.
type Category string

const (
	CategoryCoffee    Category = "coffee"
	CategoryBakery    Category = "bakery"
	CategoryLunch     Category = "lunch"
	CategoryDesserts  Category = "desserts"
	CategoryDrinks    Category = "drinks"
	CategoryPizza     Category = "pizza"
	CategoryBurgers   Category = "burgers"
	CategoryEmpanadas Category = "empanadas"
	CategoryCakes     Category = "cakes"
)

// Categories перечисляет все известные разделы каталога в порядке отображения.
var Categories = []Category{
	CategoryCoffee,
	CategoryBakery,
	CategoryLunch,
	CategoryDesserts,
	CategoryDrinks,
	CategoryPizza,
	CategoryBurgers,
	CategoryEmpanadas,
	CategoryCakes,
}

// Valid сообщает, входит ли категория в перечень известных.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Product описывает товар каталога. Цена указана в целых единицах валюты.
type Product struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Price       int64    `json:"price" yaml:"price"`
	Category    Category `json:"category" yaml:"category"`
	Stock       *int     `json:"stock,omitempty" yaml:"stock"`
	Tags        []string `json:"tags,omitempty" yaml:"tags"`
}

// CartLine описывает позицию корзины. Product хранит снимок товара на момент добавления.
type CartLine struct {
	ID       string  `json:"id"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Total возвращает стоимость позиции.
func (l CartLine) Total() int64 {
	return l.Product.Price * int64(l.Quantity)
}

// DiscountType описывает способ расчёта скидки.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// DiscountCode описывает применённый к корзине код скидки.
type DiscountCode struct {
	Code  string       `json:"code"`
	Type  DiscountType `json:"type"`
	Value int64        `json:"value"`
}

// DiscountRule описывает код скидки вместе с условиями его действия.
type DiscountRule struct {
	DiscountCode
	Description    string
	MinOrderAmount int64
	UsageLimit     int
	UsedCount      int
	IsActive       bool
	StartsAt       time.Time
	ExpiresAt      time.Time
}

// FulfillmentMethod описывает способ получения заказа.
type FulfillmentMethod string

const (
	FulfillmentPickup   FulfillmentMethod = "pickup"
	FulfillmentDelivery FulfillmentMethod = "delivery"
)

// Fulfillment содержит данные покупателя и способ получения заказа.
type Fulfillment struct {
	Method       FulfillmentMethod `json:"method"`
	CustomerName string            `json:"customer_name"`
	Phone        string            `json:"phone"`
	Address      string            `json:"address,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	LoyaltyCard  string            `json:"loyalty_card,omitempty"`
}

// LoyaltyStatus описывает статус передачи баллов во внешнюю систему лояльности.
type LoyaltyStatus string

const (
	LoyaltyStatusNew       LoyaltyStatus = "NEW"
	LoyaltyStatusProcessed LoyaltyStatus = "PROCESSED"
	LoyaltyStatusInvalid   LoyaltyStatus = "INVALID"
	LoyaltyStatusSkipped   LoyaltyStatus = "SKIPPED"
)

// Order описывает оформленный заказ.
type Order struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"-"`
	Lines          []CartLine    `json:"lines"`
	Discount       *DiscountCode `json:"discount,omitempty"`
	Subtotal       int64         `json:"subtotal"`
	DiscountAmount int64         `json:"discount_amount"`
	Total          int64         `json:"total"`
	DeliveryFee    int64         `json:"delivery_fee"`
	GrandTotal     int64         `json:"grand_total"`
	Points         int64         `json:"points"`
	Fulfillment    Fulfillment   `json:"fulfillment"`
	LoyaltyStatus  LoyaltyStatus `json:"loyalty_status"`
	CreatedAt      time.Time     `json:"created_at"`
}

// LoyaltySummary содержит баланс баллов и уровень участника программы лояльности.
type LoyaltySummary struct {
	Card          string `json:"card"`
	Points        int64  `json:"points"`
	Level         string `json:"level"`
	NextLevel     string `json:"next_level,omitempty"`
	PointsToLevel int64  `json:"points_to_next_level,omitempty"`
}
