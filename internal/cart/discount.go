package cart

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/bakery-storefront/internal/discount"
	"github.com/mmeshcher/bakery-storefront/internal/model"
	"github.com/mmeshcher/bakery-storefront/internal/validation"
)

// Reason описывает причину отказа в применении кода скидки.
type Reason string

const (
	ReasonCodeNotFound          Reason = "CODE_NOT_FOUND"
	ReasonCodeExpired           Reason = "CODE_EXPIRED"
	ReasonMinimumNotMet         Reason = "MINIMUM_NOT_MET"
	ReasonValidationUnavailable Reason = "VALIDATION_UNAVAILABLE"
	// ReasonSuperseded означает, что пока код проверялся, покупатель применил другой код или удалил скидку.
	ReasonSuperseded Reason = "SUPERSEDED"
)

// DiscountResult описывает итог применения кода скидки.
type DiscountResult struct {
	Applied bool                `json:"applied"`
	Reason  Reason              `json:"reason,omitempty"`
	Message string              `json:"message"`
	Code    *model.DiscountCode `json:"code,omitempty"`
}

// ApplyDiscountCode проверяет код в справочнике и при успехе заменяет им текущий код скидки.
// При отказе ранее применённый код не меняется.
func (c *Cart) ApplyDiscountCode(ctx context.Context, raw string) DiscountResult {
	code := validation.NormalizeDiscountCode(raw)
	if !validation.IsValidDiscountCode(code) {
		return failure(ReasonCodeNotFound, "Enter a valid discount code")
	}

	c.mu.Lock()
	c.discountSeq++
	seq := c.discountSeq
	subtotal := subtotalOf(c.lines)
	directory := c.directory
	c.mu.Unlock()

	if directory == nil {
		return failure(ReasonValidationUnavailable, "Discount codes cannot be checked right now, try again later")
	}

	lookupCtx, cancel := context.WithTimeout(ctx, c.validationTimeout)
	defer cancel()

	dc, err := directory.Lookup(lookupCtx, code, subtotal)

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.discountSeq {
		c.logger.Debug("discount validation superseded", zap.String("code", code))
		return failure(ReasonSuperseded, "Discount code request was replaced by a newer one")
	}

	if err != nil {
		res := failureFor(code, err)
		if res.Reason == ReasonValidationUnavailable {
			c.logger.Warn("discount validation unavailable", zap.String("code", code), zap.Error(err))
		}
		return res
	}

	dc.Code = code
	c.discount = &dc
	c.persistLocked()

	applied := dc
	return DiscountResult{
		Applied: true,
		Message: confirmation(dc),
		Code:    &applied,
	}
}

// RemoveDiscountCode снимает код скидки. Незавершённая проверка кода после этого не применится.
func (c *Cart) RemoveDiscountCode() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.discountSeq++
	if c.discount == nil {
		return
	}
	c.discount = nil
	c.persistLocked()
}

// DiscountCode возвращает копию применённого кода скидки или nil.
func (c *Cart) DiscountCode() *model.DiscountCode {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.discount == nil {
		return nil
	}
	dc := *c.discount
	return &dc
}

func failure(reason Reason, message string) DiscountResult {
	return DiscountResult{Reason: reason, Message: message}
}

func failureFor(code string, err error) DiscountResult {
	var minErr *discount.MinimumNotMetError
	switch {
	case errors.As(err, &minErr):
		return failure(ReasonMinimumNotMet, fmt.Sprintf("Code %s requires a minimum order of %d", code, minErr.Minimum))
	case errors.Is(err, discount.ErrMinimumNotMet):
		return failure(ReasonMinimumNotMet, fmt.Sprintf("Your order does not reach the minimum for code %s", code))
	case errors.Is(err, discount.ErrCodeExpired):
		return failure(ReasonCodeExpired, fmt.Sprintf("Code %s has expired", code))
	case errors.Is(err, discount.ErrCodeNotFound):
		return failure(ReasonCodeNotFound, fmt.Sprintf("Code %s does not exist", code))
	default:
		// Таймаут, недоступность сервиса и прочие сбои не означают, что код неверный.
		return failure(ReasonValidationUnavailable, "Discount codes cannot be checked right now, try again later")
	}
}

func confirmation(dc model.DiscountCode) string {
	if dc.Type == model.DiscountPercentage {
		return fmt.Sprintf("Code %s applied: %d%% off", dc.Code, dc.Value)
	}
	return fmt.Sprintf("Code %s applied: %d off", dc.Code, dc.Value)
}
