package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/bakery-storefront/internal/model"
)

// ErrRuleNotFound возвращается RuleStore, если кода нет в хранилище.
var ErrRuleNotFound = errors.New("discount rule not found")

// RuleStore описывает хранилище правил кодов скидок.
type RuleStore interface {
	GetDiscountRule(ctx context.Context, code string) (*model.DiscountRule, error)
}

// StoreDirectory реализует справочник кодов скидок поверх RuleStore.
type StoreDirectory struct {
	store RuleStore
	now   func() time.Time
}

// NewStoreDirectory создаёт справочник поверх хранилища правил.
func NewStoreDirectory(store RuleStore) *StoreDirectory {
	return &StoreDirectory{
		store: store,
		now:   time.Now,
	}
}

// Lookup загружает правило и проверяет его. Сбой хранилища возвращается как ErrValidationUnavailable.
func (d *StoreDirectory) Lookup(ctx context.Context, code string, subtotal int64) (model.DiscountCode, error) {
	rule, err := d.store.GetDiscountRule(ctx, code)
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return model.DiscountCode{}, ErrCodeNotFound
		}
		return model.DiscountCode{}, fmt.Errorf("%w: %w", ErrValidationUnavailable, err)
	}
	return Evaluate(*rule, d.now(), subtotal)
}
