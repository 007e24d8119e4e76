package parsing

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
)

// transaction is the structured payload path down to the line items:
// results.DigitalReceipt.Transaction.RetailTransaction.LineItem[]
type transaction struct {
	Results struct {
		DigitalReceipt struct {
			Transaction struct {
				RetailTransaction struct {
					LineItem lineItems `json:"LineItem"`
				} `json:"RetailTransaction"`
			} `json:"Transaction"`
		} `json:"DigitalReceipt"`
	} `json:"results"`
}

type lineItem struct {
	Sale *sale `json:"Sale"`
}

type sale struct {
	ItemDescription *Tagged   `json:"ItemDescription"`
	ExtendedAmount  *Tagged   `json:"ExtendedAmount"`
	Quantity        *Tagged   `json:"Quantity"`
	Discount        *discount `json:"Discount"`
	ItemID          *Tagged   `json:"ItemID"`
}

type discount struct {
	Amount *Tagged
}

func (d *discount) UnmarshalJSON(b []byte) error {
	var v struct {
		Amount *Tagged `json:"Amount"`
	}
	if err := json.Unmarshal(b, &v); err == nil {
		d.Amount = v.Amount
	}
	return nil
}

// lineItems decodes a list or a single object, dropping entries that do not
// decode instead of failing the whole payload
type lineItems []lineItem

func (l *lineItems) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var raws []json.RawMessage
	switch {
	case len(b) == 0:
		return nil
	case b[0] == '[':
		if err := json.Unmarshal(b, &raws); err != nil {
			return err
		}
	case b[0] == '{':
		raws = []json.RawMessage{b}
	default:
		return nil
	}

	items := make(lineItems, 0, len(raws))
	for _, raw := range raws {
		var item lineItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	*l = items
	return nil
}

// parseStructured reads line items from the machine-readable payload. A
// missing or malformed payload yields no items.
func parseStructured(raw json.RawMessage) []Item {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var txn transaction
	if err := json.Unmarshal(raw, &txn); err != nil {
		slog.Debug("Structured payload unusable", "error", err)
		return nil
	}

	var items []Item
	for _, li := range txn.Results.DigitalReceipt.Transaction.RetailTransaction.LineItem {
		s := li.Sale
		if s == nil {
			continue
		}

		name, _ := s.ItemDescription.StringValue()
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		item := Item{
			Name:     name,
			Quantity: 1,
		}

		if amount, ok := s.ExtendedAmount.Text(); ok {
			item.UnitPrice = max(ToInt(amount), 0)
		}
		if qty, ok := s.Quantity.Text(); ok {
			if q := ToInt(qty); q >= 1 {
				item.Quantity = q
			}
		}
		if s.Discount != nil {
			if amount, ok := s.Discount.Amount.Text(); ok {
				item.Discount = abs(ToInt(amount))
			}
		}
		if id, ok := s.ItemID.Text(); ok {
			item.Barcode = strings.TrimSpace(id)
		}

		items = append(items, item)
	}
	return items
}
