package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// MaxAmountMinor é o teto aceito pelo gateway para um único intent.
const MaxAmountMinor int64 = 99_999_999

// maxAmountExponent limita o expoente vindo do cliente; acima disso qualquer
// comparação reescala o coeficiente para um big.Int gigante.
const maxAmountExponent = 18

// ParseCurrency valida um código ISO 4217 e devolve o código normalizado
// e a quantidade de casas decimais da moeda.
func ParseCurrency(code string) (string, int32, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", 0, Invalid("invalid currency %q", code)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", 0, Invalid("unsupported currency %q", code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return unit.String(), int32(scale), nil
}

// ToMinor converte o valor decimal da borda do sistema para unidades menores.
func ToMinor(amount decimal.Decimal, code string) (int64, string, error) {
	cur, scale, err := ParseCurrency(code)
	if err != nil {
		return 0, "", err
	}
	if !amount.IsPositive() {
		return 0, "", Invalid("amount must be positive")
	}
	if exp := amount.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return 0, "", Invalid("amount out of range")
	}
	minor := amount.Shift(scale)
	if !minor.IsInteger() {
		return 0, "", Invalid("amount has more than %d decimal places for %s", scale, cur)
	}
	if minor.GreaterThan(decimal.NewFromInt(MaxAmountMinor)) {
		return 0, "", Invalid("amount exceeds maximum")
	}
	return minor.IntPart(), cur, nil
}

// FromMinor faz a conversão inversa, só para exibição.
func FromMinor(minor int64, code string) decimal.Decimal {
	_, scale, err := ParseCurrency(code)
	if err != nil {
		scale = 2
	}
	return decimal.New(minor, -scale)
}

// DisplayAmount formata o valor com as casas decimais da moeda, ex: "50.00".
func DisplayAmount(minor int64, code string) string {
	_, scale, err := ParseCurrency(code)
	if err != nil {
		scale = 2
	}
	return decimal.New(minor, -scale).StringFixed(scale)
}
