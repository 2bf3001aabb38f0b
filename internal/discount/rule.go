package discount

import (
	"time"

	"github.com/mmeshcher/bakery-storefront/internal/model"
)

// Evaluate проверяет условия действия кода на момент now для суммы subtotal.
func Evaluate(rule model.DiscountRule, now time.Time, subtotal int64) (model.DiscountCode, error) {
	if !rule.IsActive {
		return model.DiscountCode{}, ErrCodeNotFound
	}
	if !rule.StartsAt.IsZero() && now.Before(rule.StartsAt) {
		return model.DiscountCode{}, ErrCodeNotFound
	}
	if !rule.ExpiresAt.IsZero() && !now.Before(rule.ExpiresAt) {
		return model.DiscountCode{}, ErrCodeExpired
	}
	if rule.UsageLimit > 0 && rule.UsedCount >= rule.UsageLimit {
		return model.DiscountCode{}, ErrCodeNotFound
	}
	if subtotal < rule.MinOrderAmount {
		return model.DiscountCode{}, &MinimumNotMetError{Minimum: rule.MinOrderAmount}
	}

	switch rule.Type {
	case model.DiscountPercentage:
		if rule.Value < 0 || rule.Value > 100 {
			return model.DiscountCode{}, ErrCodeNotFound
		}
	case model.DiscountFixed:
		if rule.Value < 0 {
			return model.DiscountCode{}, ErrCodeNotFound
		}
	default:
		return model.DiscountCode{}, ErrCodeNotFound
	}

	return rule.DiscountCode, nil
}
