package validation

import (
	"strings"
	"unicode"
)

const (
	minDiscountCodeLength = 3
	maxDiscountCodeLength = 32
)

// NormalizeDiscountCode убирает пробелы по краям и переводит код скидки в верхний регистр.
func NormalizeDiscountCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// IsValidDiscountCode проверяет нормализованный код: латинские буквы, цифры, '-' и '_'.
func IsValidDiscountCode(code string) bool {
	if len(code) < minDiscountCodeLength || len(code) > maxDiscountCodeLength {
		return false
	}
	for _, r := range code {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// IsValidPhone допускает ведущий '+', пробелы и дефисы; цифр должно быть от 7 до 15.
func IsValidPhone(phone string) bool {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return false
	}

	digits := 0
	for i, r := range phone {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-':
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}
