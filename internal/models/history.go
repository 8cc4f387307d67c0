package models

import (
	"time"
)

// HistoryItem is a single browsing-history entry as submitted by the client.
// VisitTime is epoch seconds with a fractional part.
type HistoryItem struct {
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Domain      string  `json:"domain"`
	Summary     string  `json:"summary"`
	Content     string  `json:"content"`
	VisitTime   float64 `json:"visitTime"`
}

// Validate reports whether the item is well formed. Malformed items are
// skipped during ingestion rather than failing the whole batch.
func (h *HistoryItem) Validate() error {
	if h.URL == "" {
		return &FieldError{Field: "url", Reason: "must not be empty"}
	}
	if h.Category == "" {
		return &FieldError{Field: "category", Reason: "must not be empty"}
	}
	if h.VisitTime <= 0 {
		return &FieldError{Field: "visitTime", Reason: "must be a positive epoch timestamp"}
	}
	return nil
}

// FieldError describes a single malformed field on a history item
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// HistoryRecord is the persisted form of a history item
type HistoryRecord struct {
	Address         string    `json:"address"`
	CreateTimestamp time.Time `json:"create_timestamp"`
	Title           string    `json:"title"`
	Category        string    `json:"category"`
	Subcategory     string    `json:"subcategory"`
	URL             string    `json:"url"`
	Domain          string    `json:"domain"`
	Summary         string    `json:"summary"`
	VisitTime       float64   `json:"visitTime"`
}

// NewHistoryRecord builds the persisted record for a validated item
func NewHistoryRecord(address string, item HistoryItem) *HistoryRecord {
	return &HistoryRecord{
		Address:         address,
		CreateTimestamp: time.Now().UTC(),
		Title:           item.Title,
		Category:        item.Category,
		Subcategory:     item.Subcategory,
		URL:             item.URL,
		Domain:          item.Domain,
		Summary:         item.Summary,
		VisitTime:       item.VisitTime,
	}
}
