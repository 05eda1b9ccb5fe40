package dapicsync

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/grupovitrine/painel_backend/utils"
)

var accentReplacer = strings.NewReplacer(
	"á", "a", "à", "a", "ã", "a", "â", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "õ", "o", "ô", "o",
	"ú", "u",
	"ç", "c",
)

// NormalizePaymentMethod maps a free-text upstream payment description to
// the canonical vocabulary. Unknown descriptions pass through lowercased and
// trimmed so nothing is silently lost. The crediario check runs before
// credito because "crediario" contains "credi".
func NormalizePaymentMethod(raw string) string {
	s := accentReplacer.Replace(strings.ToLower(strings.TrimSpace(raw)))
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "pix"):
		return "pix"
	case strings.Contains(s, "dinheiro"):
		return "dinheiro"
	case strings.Contains(s, "crediario"):
		return "crediario"
	case strings.Contains(s, "deb"):
		return "debito"
	case strings.Contains(s, "cred"):
		return "credito"
	case strings.Contains(s, "boleto"):
		return "boleto"
	case strings.Contains(s, "transf"):
		return "transferencia"
	default:
		return s
	}
}

// ParseSaleDate accepts the two upstream shapes, ISO "2006-01-02" with an
// optional time suffix and Brazilian "02/01/2006". A value that matches
// neither falls back to today's date in Brazil; the caller logs the fallback
// so the record is kept instead of dropped.
func ParseSaleDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return utils.DateOnly(t), true
		}
		if t, err := time.Parse("02/01/2006", s[:10]); err == nil {
			return utils.DateOnly(t), true
		}
	}
	return utils.TodayBrazil(), false
}

// ParseCurrency parses an upstream monetary value. Brazilian formatting
// ("1.234,56") is detected by the comma; otherwise the plain decimal form is
// assumed. Unparseable values come back as zero with ok false.
func ParseCurrency(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}
