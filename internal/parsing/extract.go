// Package parsing extracts purchased line items from fetched receipts.
//
// The structured transaction payload is preferred. The printable text lines
// are only parsed when the payload yields no items, never to supplement it.
package parsing

import (
	"strings"
	"time"

	"github.com/zombor/pantry/internal/receipt"
)

// datetimeLayouts are tried in order; layouts without a zone are read as local time
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"20060102150405",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02",
}

// Extract turns one receipt into its ordered line items
func Extract(detail *receipt.Detail, summary *receipt.Summary) ReceiptItems {
	out := ReceiptItems{
		ReceiptID:   detail.ReceiptID,
		StoreName:   strings.TrimSpace(summary.StoreName),
		PurchasedAt: ParseDatetime(summary.Datetime),
	}
	if out.ReceiptID == "" {
		out.ReceiptID = summary.ReceiptID
	}

	out.Items = parseStructured(detail.Raw)
	if len(out.Items) == 0 {
		out.Items = parseLines(detail.Lines)
	}
	if out.Items == nil {
		out.Items = []Item{}
	}
	return out
}

// ParseDatetime reads a receipt timestamp. It returns the zero time when no
// known layout matches.
func ParseDatetime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
