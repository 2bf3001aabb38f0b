// Package catering считает стоимость кейтеринга для мероприятий.
package catering

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTier возвращается для неизвестного пакета меню.
	ErrUnknownTier = errors.New("unknown catering tier")
	// ErrUnknownAddon возвращается для неизвестной дополнительной услуги.
	ErrUnknownAddon = errors.New("unknown catering addon")
	// ErrAttendeesOutOfRange возвращается, если число гостей вне допустимых пределов.
	ErrAttendeesOutOfRange = errors.New("attendees out of range")
)

const (
	MinAttendees = 10
	MaxAttendees = 500
)

// Tier описывает пакет меню с ценой на одного гостя.
type Tier struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PerPerson   int64  `json:"per_person"`
	Description string `json:"description"`
}

// Addon описывает дополнительную услугу: цена либо за гостя, либо фиксированная.
type Addon struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	PerPerson bool   `json:"per_person"`
}

// Tiers перечисляет доступные пакеты меню.
var Tiers = []Tier{
	{ID: "desayuno", Name: "Desayuno", PerPerson: 3500, Description: "Café, medialunas, jugo y fruta"},
	{ID: "almuerzo", Name: "Almuerzo", PerPerson: 6500, Description: "Sándwiches, ensaladas, bebidas y postre"},
	{ID: "premium", Name: "Premium", PerPerson: 9800, Description: "Menú de pasos con mesa dulce"},
}

// Addons перечисляет доступные дополнительные услуги.
var Addons = []Addon{
	{ID: "mesa-dulce", Name: "Mesa dulce", Price: 1500, PerPerson: true},
	{ID: "barista", Name: "Barista en el evento", Price: 45000},
	{ID: "vajilla", Name: "Vajilla y mantelería", Price: 800, PerPerson: true},
	{ID: "torta", Name: "Torta personalizada", Price: 28000},
}

// Request описывает запрос расчёта.
type Request struct {
	Tier      string   `json:"tier"`
	Attendees int      `json:"attendees"`
	Addons    []string `json:"addons"`
}

// AddonLine описывает стоимость одной дополнительной услуги в расчёте.
type AddonLine struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// Estimate содержит результат расчёта.
type Estimate struct {
	Tier       string      `json:"tier"`
	Attendees  int         `json:"attendees"`
	Base       int64       `json:"base"`
	Addons     []AddonLine `json:"addons"`
	AddonTotal int64       `json:"addon_total"`
	Total      int64       `json:"total"`
}

// Quote считает стоимость: цена пакета × число гостей + сумма дополнительных услуг.
// Повторно указанная услуга учитывается один раз.
func Quote(req Request) (Estimate, error) {
	tier, ok := findTier(req.Tier)
	if !ok {
		return Estimate{}, fmt.Errorf("%w: %q", ErrUnknownTier, req.Tier)
	}
	if req.Attendees < MinAttendees || req.Attendees > MaxAttendees {
		return Estimate{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrAttendeesOutOfRange, req.Attendees, MinAttendees, MaxAttendees)
	}

	est := Estimate{
		Tier:      tier.ID,
		Attendees: req.Attendees,
		Base:      tier.PerPerson * int64(req.Attendees),
		Addons:    []AddonLine{},
	}

	seen := make(map[string]struct{}, len(req.Addons))
	for _, id := range req.Addons {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		addon, ok := findAddon(id)
		if !ok {
			return Estimate{}, fmt.Errorf("%w: %q", ErrUnknownAddon, id)
		}

		amount := addon.Price
		if addon.PerPerson {
			amount *= int64(req.Attendees)
		}
		est.Addons = append(est.Addons, AddonLine{ID: addon.ID, Name: addon.Name, Amount: amount})
		est.AddonTotal += amount
	}

	est.Total = est.Base + est.AddonTotal
	return est, nil
}

func findTier(id string) (Tier, bool) {
	for _, t := range Tiers {
		if t.ID == id {
			return t, true
		}
	}
	return Tier{}, false
}

func findAddon(id string) (Addon, bool) {
	for _, a := range Addons {
		if a.ID == id {
			return a, true
		}
	}
	return Addon{}, false
}
