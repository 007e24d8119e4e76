package parsing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// numericNoise covers thousands separators, yen glyphs (a backslash renders as
// ¥ on receipt printers) and whitespace
var numericNoise = strings.NewReplacer(
	",", "",
	"，", "",
	"¥", "",
	"￥", "",
	"\\", "",
	" ", "",
	"　", "",
)

// ToInt coerces a receipt amount or quantity to an integer, truncating any
// fractional part. Tokens that are not numeric yield 0.
func ToInt(s string) int {
	clean := numericNoise.Replace(strings.TrimSpace(s))
	if clean == "" {
		return 0
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0
	}
	return int(d.IntPart())
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
