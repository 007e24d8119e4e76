package receipt

import "encoding/json"

// Summary is one entry of the receipt listing returned by the receipt service
type Summary struct {
	ReceiptID     string  `json:"receipt_id"`
	StoreName     string  `json:"store_name"`
	StoreCode     string  `json:"store_code"`
	Datetime      string  `json:"datetime"` // ISO-ish, e.g. 2026-02-12T12:26:13
	Total         *string `json:"total,omitempty"`
	WorkstationID *string `json:"workstation_id,omitempty"`
}

// Detail holds the printable lines, embedded images and raw payload of one receipt
type Detail struct {
	ReceiptID string            `json:"receipt_id"`
	Lines     []string          `json:"lines"`
	Images    map[string][]byte `json:"images,omitempty"` // AdvertisingID -> BMP bytes
	Raw       json.RawMessage   `json:"raw,omitempty"`
}

// Bundle is an exported receipt: its listing entry plus the raw detail response
type Bundle struct {
	Summary Summary         `json:"summary"`
	Payload json.RawMessage `json:"payload"`
}
