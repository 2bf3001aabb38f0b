// Package discount содержит справочники кодов скидок и правила их действия.
package discount

import (
	"errors"
	"fmt"
)

var (
	// ErrCodeNotFound возвращается для неизвестного, отключённого или исчерпанного кода.
	ErrCodeNotFound = errors.New("discount code not found")
	// ErrCodeExpired возвращается для кода с истёкшим сроком действия.
	ErrCodeExpired = errors.New("discount code expired")
	// ErrMinimumNotMet возвращается, если сумма заказа меньше минимальной для кода.
	ErrMinimumNotMet = errors.New("order minimum not met")
	// ErrValidationUnavailable возвращается, если справочник недоступен и код проверить нельзя.
	ErrValidationUnavailable = errors.New("discount validation unavailable")
)

// MinimumNotMetError уточняет ErrMinimumNotMet минимальной суммой заказа.
type MinimumNotMetError struct {
	Minimum int64
}

func (e *MinimumNotMetError) Error() string {
	return fmt.Sprintf("%s: minimum %d", ErrMinimumNotMet, e.Minimum)
}

func (e *MinimumNotMetError) Unwrap() error {
	return ErrMinimumNotMet
}
