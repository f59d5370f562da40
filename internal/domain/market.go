package domain

import "time"

// Market representa un mercado binario tal como lo lista la venue.
type Market struct {
	ConditionID string
	Question    string    // enriquecido desde Gamma
	Slug        string    // enriquecido desde Gamma
	EndDate     time.Time // enriquecido desde Gamma
	Volume      float64   // volumen total en USDC, enriquecido desde Gamma
	Tokens      [2]Token
	Active      bool
	Closed      bool
}

// Token es uno de los dos lados del mercado (YES/NO).
type Token struct {
	TokenID string
	Outcome string // "Yes" | "No"
	Price   float64
	Winner  bool
}

// YesToken devuelve el token YES del mercado.
func (m Market) YesToken() Token {
	for _, t := range m.Tokens {
		if t.Outcome == "Yes" {
			return t
		}
	}
	return m.Tokens[0]
}

// NoToken devuelve el token NO del mercado.
func (m Market) NoToken() Token {
	for _, t := range m.Tokens {
		if t.Outcome == "No" {
			return t
		}
	}
	return m.Tokens[1]
}

// ResolvedSide devuelve el lado ganador si el mercado está cerrado y resuelto.
func (m Market) ResolvedSide() Side {
	if !m.Closed {
		return ""
	}
	switch {
	case m.YesToken().Winner:
		return SideYes
	case m.NoToken().Winner:
		return SideNo
	}
	return ""
}

// TruncateQuestion devuelve la pregunta del mercado truncada a maxLen runas.
// Si la pregunta está vacía usa los primeros caracteres del marketID como fallback.
func TruncateQuestion(question, marketID string, maxLen int) string {
	q := question
	if q == "" {
		if len(marketID) > 20 {
			q = marketID[:20] + "..."
		} else {
			q = marketID
		}
	}
	r := []rune(q)
	if len(r) <= maxLen {
		return q
	}
	if maxLen <= 3 {
		return string(r[:max(maxLen, 0)])
	}
	return string(r[:maxLen-3]) + "..."
}
