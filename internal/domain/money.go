package domain

import "github.com/shopspring/decimal"

// Todos los importes monetarios se redondean a céntimos tras cada operación.
const centPlaces = 2

// Cents redondea un importe a céntimos.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(centPlaces)
}

// USD convierte un float a decimal redondeado a céntimos.
func USD(v float64) decimal.Decimal {
	return Cents(decimal.NewFromFloat(v))
}
