package pantry

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/zombor/pantry/internal/receipt"
)

// maxBundleSize caps uploaded receipt bundles; embedded logos make them large
const maxBundleSize = 10 << 20

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// jsonError writes an error response as {"error": message}
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// writeJSON writes v with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleStock returns the in-stock products
func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	stock, err := s.service.Stock()
	if err != nil {
		slog.Error("Error listing stock", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stock)
}

// handleExpiring returns in-stock units expiring within ?days= (default 3)
func (s *Server) handleExpiring(w http.ResponseWriter, r *http.Request) {
	days := 3
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			jsonError(w, "days must be a non-negative integer", http.StatusBadRequest)
			return
		}
		days = n
	}

	rows, err := s.service.Expiring(days)
	if err != nil {
		slog.Error("Error listing expiring units", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	type expiringRow struct {
		Name          string `json:"name"`
		Category      string `json:"category"`
		StorageClass  string `json:"storage_class"`
		PurchasedAt   string `json:"purchased_at"`
		ExpiresAt     string `json:"expires_at"`
		DaysRemaining int    `json:"days_remaining"`
		State         string `json:"state"`
	}
	response := make([]expiringRow, 0, len(rows))
	for _, row := range rows {
		response = append(response, expiringRow{
			Name:          row.Name,
			Category:      row.Category,
			StorageClass:  string(row.StorageClass),
			PurchasedAt:   row.PurchasedAt.Format("2006-01-02"),
			ExpiresAt:     row.ExpiresAt.Format("2006-01-02"),
			DaysRemaining: row.DaysRemaining,
			State:         string(row.State()),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// handleConsume marks units of a product as consumed
func (s *Server) handleConsume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}

	consumed, err := s.service.Consume(req.Name, req.Count)
	if err != nil {
		slog.Error("Error consuming product", "name", req.Name, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":     req.Name,
		"consumed": consumed,
	})
}

// handleExpire marks stale units as expired
func (s *Server) handleExpire(w http.ResponseWriter, r *http.Request) {
	expired, err := s.service.ExpireStale()
	if err != nil {
		slog.Error("Error expiring units", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": expired})
}

// handleImportReceipt imports a receipt bundle posted as JSON
func (s *Server) handleImportReceipt(w http.ResponseWriter, r *http.Request) {
	bundle, err := receipt.ReadBundle(http.MaxBytesReader(w, r.Body, maxBundleSize))
	if err != nil {
		slog.Error("Error reading receipt bundle", "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.service.ImportBundle(r.Context(), bundle)
	if err != nil {
		slog.Error("Error importing receipt", "receipt_id", bundle.Summary.ReceiptID, "error", err)
		jsonError(w, "Error importing receipt", http.StatusInternalServerError)
		return
	}

	code := http.StatusOK
	if result.Status == StatusImported {
		code = http.StatusCreated
	}
	writeJSON(w, code, result)
}

// handleImage serves an exported receipt image
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if path == "" || strings.Contains(path, "..") {
		jsonError(w, "invalid image path", http.StatusBadRequest)
		return
	}

	data, err := s.service.Image(path)
	if errors.Is(err, ErrNoImageStore) {
		jsonError(w, "image storage not configured", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Debug("Image not found", "path", path, "error", err)
		jsonError(w, "image not found", http.StatusNotFound)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
