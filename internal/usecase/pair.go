package usecase

import "strings"

// NormalizePair uppercases and trims a pair and treats a /USD quote as /USDT.
func NormalizePair(pair string) string {
	p := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(pair), " ", ""))
	if strings.HasSuffix(p, "/USD") {
		p += "T"
	}
	return p
}

// BrokerSymbol strips the separator: BTC/USDT becomes BTCUSDT.
func BrokerSymbol(pair string) string {
	return strings.ReplaceAll(NormalizePair(pair), "/", "")
}

// SamePair compares pairs after normalization.
func SamePair(a, b string) bool {
	return NormalizePair(a) == NormalizePair(b)
}
