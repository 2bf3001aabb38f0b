package cart

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mmeshcher/bakery-storefront/internal/model"
)

// SnapshotVersion задаёт текущую версию схемы сохранённой корзины.
const SnapshotVersion = 1

// ErrSnapshotVersion возвращается для снимка другой версии схемы.
var ErrSnapshotVersion = errors.New("unsupported cart snapshot version")

// SnapshotLine описывает сохранённую позицию корзины.
type SnapshotLine struct {
	ID        string        `json:"id"`
	ProductID string        `json:"product_id"`
	Quantity  int           `json:"quantity"`
	Product   model.Product `json:"product"`
}

// Snapshot описывает сериализуемое состояние корзины.
type Snapshot struct {
	Version  int                 `json:"version"`
	Lines    []SnapshotLine      `json:"lines"`
	Discount *model.DiscountCode `json:"discount,omitempty"`
}

// Encode сериализует снимок в JSON.
func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot разбирает и проверяет сохранённый снимок.
func DecodeSnapshot(blob []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(blob, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode cart snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}

	seen := make(map[string]struct{}, len(s.Lines))
	for _, l := range s.Lines {
		if l.ID == "" || l.ProductID == "" || l.ProductID != l.Product.ID {
			return Snapshot{}, fmt.Errorf("decode cart snapshot: malformed line %q", l.ID)
		}
		if l.Quantity < 1 || l.Quantity > MaxLineQuantity || l.Product.Price < 0 || l.Product.Price > maxUnitPrice {
			return Snapshot{}, fmt.Errorf("decode cart snapshot: invalid line %q", l.ID)
		}
		if _, dup := seen[l.ProductID]; dup {
			return Snapshot{}, fmt.Errorf("decode cart snapshot: duplicate product %q", l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
	}

	if d := s.Discount; d != nil {
		switch {
		case d.Code == "":
			return Snapshot{}, errors.New("decode cart snapshot: empty discount code")
		case d.Type == model.DiscountPercentage && (d.Value < 0 || d.Value > 100):
			return Snapshot{}, errors.New("decode cart snapshot: percentage out of range")
		case d.Type == model.DiscountFixed && d.Value < 0:
			return Snapshot{}, errors.New("decode cart snapshot: negative fixed discount")
		case d.Type != model.DiscountPercentage && d.Type != model.DiscountFixed:
			return Snapshot{}, fmt.Errorf("decode cart snapshot: unknown discount type %q", d.Type)
		}
	}

	return s, nil
}

// Snapshot возвращает текущее состояние корзины в сериализуемом виде.
func (c *Cart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked()
}

func (c *Cart) snapshotLocked() Snapshot {
	s := Snapshot{
		Version: SnapshotVersion,
		Lines:   make([]SnapshotLine, 0, len(c.lines)),
	}
	for _, l := range c.lines {
		s.Lines = append(s.Lines, SnapshotLine{
			ID:        l.ID,
			ProductID: l.Product.ID,
			Quantity:  l.Quantity,
			Product:   cloneProduct(l.Product),
		})
	}
	if c.discount != nil {
		dc := *c.discount
		s.Discount = &dc
	}
	return s
}

func (c *Cart) restore(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = make([]model.CartLine, 0, len(s.Lines))
	for _, l := range s.Lines {
		c.lines = append(c.lines, model.CartLine{
			ID:       l.ID,
			Product:  l.Product,
			Quantity: l.Quantity,
		})
	}
	if s.Discount != nil {
		dc := *s.Discount
		c.discount = &dc
	}
}
