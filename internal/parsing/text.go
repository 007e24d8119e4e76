package parsing

import (
	"regexp"
	"strings"
)

const (
	// gap is the column padding between name and price; printers pad with
	// ASCII or ideographic spaces
	gap = `[\s\x{3000}]{2,}`
	// price allows an optional yen glyph (a backslash on some printers, escaped
	// as two in the payload) and up to six digits or comma-grouped thousands
	price = `(?:[¥￥]|\\{1,2})?(\d{1,3}(?:,\d{3})+|\d{1,6})`
	// promo marks reduced-tax or promotional items
	promo = `[※＊*]?`
)

var (
	printDoublePattern = regexp.MustCompile(`PrintDouble\('(.+?)` + gap + price + promo + `\s*',\s*\d+\)`)
	itemLinePattern    = regexp.MustCompile(`^(.+?)` + gap + price + promo + `[\s\x{3000}]*$`)
	discountPattern    = regexp.MustCompile(`(?:値引|割引|ﾜﾘﾋﾞｷ|ｸｰﾎﾟﾝ).*?[-ー−－](\d{1,3}(?:,\d{3})+|\d{1,6})`)
)

// controlMarkers identify printer commands that carry no priced item
var controlMarkers = []string{"PrintBitmap", "PrintBarCode"}

// nonProductTerms are totals, tax, payment and point lines that look priced
var nonProductTerms = []string{
	"合計", "小計", "お預り", "お釣", "税込", "税抜",
	"ポイント", "WAON", "ワオン", "現金", "クレジット",
	"お買上", "点数", "外税", "内税", "非課税",
}

func isControlLine(line string) bool {
	for _, marker := range controlMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

func isNonProduct(name string) bool {
	for _, term := range nonProductTerms {
		if strings.Contains(name, term) {
			return true
		}
	}
	return false
}

// parseLines extracts items from the printable receipt lines
func parseLines(lines []string) []Item {
	var items []Item

	accept := func(name, amount string) {
		name = strings.TrimSpace(name)
		p := ToInt(amount)
		if name == "" || p <= 0 || isNonProduct(name) {
			return
		}
		items = append(items, Item{Name: name, UnitPrice: p, Quantity: 1})
	}

	for _, line := range lines {
		if isControlLine(line) {
			continue
		}

		if m := printDoublePattern.FindStringSubmatch(line); m != nil {
			accept(m[1], m[2])
			continue
		}

		if m := itemLinePattern.FindStringSubmatch(line); m != nil {
			accept(m[1], m[2])
			continue
		}

		if m := discountPattern.FindStringSubmatch(line); m != nil && len(items) > 0 {
			items[len(items)-1].Discount = ToInt(m[1])
		}
	}
	return items
}
