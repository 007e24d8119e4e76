package receipt

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// detailPayload mirrors the parts of the detail response needed to build a Detail.
// The line items are decoded by the parsing package from Detail.Raw.
type detailPayload struct {
	Results struct {
		DigitalReceipt struct {
			ReceiptID   string `json:"ReceiptID"`
			Transaction struct {
				ReceiptImage struct {
					ReceiptLine []string `json:"ReceiptLine"`
				} `json:"ReceiptImage"`
				RetailTransaction struct {
					LineItem oneOrMany `json:"LineItem"`
				} `json:"RetailTransaction"`
			} `json:"Transaction"`
		} `json:"DigitalReceipt"`
	} `json:"results"`
}

type advertising struct {
	Advertising struct {
		AdvertisingID string `json:"AdvertisingID"`
		ImageData     string `json:"ImageData"`
	} `json:"Advertising"`
}

// oneOrMany accepts either a JSON array or a single object
type oneOrMany []json.RawMessage

func (o *oneOrMany) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*o = items
		return nil
	}
	*o = oneOrMany{json.RawMessage(b)}
	return nil
}

// DecodeDetail builds a Detail from a raw detail response. Only syntactically
// invalid JSON is an error; an unexpected shape yields a Detail without lines
// so that the extractor can still try the structured payload.
func DecodeDetail(receiptID string, payload []byte) (*Detail, error) {
	if !json.Valid(payload) {
		return nil, fmt.Errorf("invalid detail payload for receipt %s", receiptID)
	}

	detail := &Detail{
		ReceiptID: receiptID,
		Lines:     []string{},
		Images:    map[string][]byte{},
		Raw:       json.RawMessage(payload),
	}

	var p detailPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		slog.Warn("Unexpected detail payload shape", "receipt_id", receiptID, "error", err)
		return detail, nil
	}

	dr := p.Results.DigitalReceipt
	if dr.ReceiptID != "" {
		detail.ReceiptID = dr.ReceiptID
	}
	if dr.Transaction.ReceiptImage.ReceiptLine != nil {
		detail.Lines = dr.Transaction.ReceiptImage.ReceiptLine
	}

	for _, raw := range dr.Transaction.RetailTransaction.LineItem {
		var ad advertising
		if err := json.Unmarshal(raw, &ad); err != nil {
			continue
		}
		if ad.Advertising.ImageData == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(ad.Advertising.ImageData)
		if err != nil {
			slog.Warn("Skipping undecodable receipt image",
				"receipt_id", detail.ReceiptID,
				"image", ad.Advertising.AdvertisingID,
				"error", err,
			)
			continue
		}
		detail.Images[ad.Advertising.AdvertisingID] = data
	}

	return detail, nil
}

// ReadBundle decodes one exported receipt bundle
func ReadBundle(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	if b.Summary.ReceiptID == "" {
		return nil, fmt.Errorf("bundle has no receipt id")
	}
	if len(b.Payload) == 0 {
		b.Payload = json.RawMessage("{}")
	}
	return &b, nil
}

// Detail decodes the bundle's payload
func (b *Bundle) Detail() (*Detail, error) {
	return DecodeDetail(b.Summary.ReceiptID, b.Payload)
}
