// Package validation содержит функции валидации входных данных витрины.
package validation

const (
	minLoyaltyCardLength = 8
	maxLoyaltyCardLength = 19
)

// IsValidLoyaltyCard проверяет номер карты лояльности: от 8 до 19 цифр,
// контрольная цифра по алгоритму Луна.
func IsValidLoyaltyCard(number string) bool {
	n := len(number)
	if n < minLoyaltyCardLength || n > maxLoyaltyCardLength {
		return false
	}

	sum := 0
	for i := 0; i < n; i++ {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		// каждая вторая цифра справа удваивается
		if (n-i)%2 == 0 {
			d = d*2 - 9*(d/5)
		}
		sum += d
	}
	return sum%10 == 0
}
