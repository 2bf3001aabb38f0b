package discount

import (
	"context"
	"sync"
	"time"

	"github.com/mmeshcher/bakery-storefront/internal/model"
)

// MemoryDirectory хранит справочник кодов скидок в памяти процесса.
type MemoryDirectory struct {
	mu    sync.RWMutex
	rules map[string]model.DiscountRule
	now   func() time.Time
}

// NewMemoryDirectory создаёт справочник из набора правил. Коды должны быть нормализованы.
func NewMemoryDirectory(rules []model.DiscountRule) *MemoryDirectory {
	d := &MemoryDirectory{
		rules: make(map[string]model.DiscountRule, len(rules)),
		now:   time.Now,
	}
	for _, r := range rules {
		d.rules[r.Code] = r
	}
	return d
}

// DefaultRules возвращает коды, действующие в витрине без подключённой БД.
func DefaultRules() []model.DiscountRule {
	return []model.DiscountRule{
		{
			DiscountCode: model.DiscountCode{Code: "SAVE10", Type: model.DiscountPercentage, Value: 10},
			Description:  "10% off any order",
			IsActive:     true,
		},
		{
			DiscountCode:   model.DiscountCode{Code: "BIENVENIDO15", Type: model.DiscountPercentage, Value: 15},
			Description:    "Welcome discount",
			MinOrderAmount: 3000,
			IsActive:       true,
		},
		{
			DiscountCode: model.DiscountCode{Code: "CAFE50", Type: model.DiscountFixed, Value: 50},
			Description:  "50 off your coffee",
			IsActive:     true,
		},
		{
			DiscountCode: model.DiscountCode{Code: "DULCE80", Type: model.DiscountFixed, Value: 80},
			Description:  "80 off desserts",
			IsActive:     true,
		},
	}
}

// Lookup ищет код и проверяет условия его действия.
func (d *MemoryDirectory) Lookup(ctx context.Context, code string, subtotal int64) (model.DiscountCode, error) {
	if err := ctx.Err(); err != nil {
		return model.DiscountCode{}, err
	}

	d.mu.RLock()
	rule, ok := d.rules[code]
	d.mu.RUnlock()

	if !ok {
		return model.DiscountCode{}, ErrCodeNotFound
	}
	return Evaluate(rule, d.now(), subtotal)
}

// Put добавляет или заменяет правило.
func (d *MemoryDirectory) Put(rule model.DiscountRule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rules[rule.Code] = rule
}
