package extraction

import (
	"errors"
	"fmt"
)

// ErrUndecodableInput is returned when no text could be recognized in a
// document, as opposed to text that yielded no fields.
var ErrUndecodableInput = errors.New("undecodable input")

// Category is a spending category assigned to a line item
type Category string

const (
	FoodAndDining     Category = "Food & Dining"
	Transportation    Category = "Transportation"
	Shopping          Category = "Shopping"
	Healthcare        Category = "Healthcare"
	Entertainment     Category = "Entertainment"
	Utilities         Category = "Utilities"
	OfficeAndBusiness Category = "Office & Business"
	Travel            Category = "Travel"
	Other             Category = "Other"
)

// Categories lists every category in priority order, Other last.
var Categories = []Category{
	FoodAndDining,
	Transportation,
	Shopping,
	Healthcare,
	Entertainment,
	Utilities,
	OfficeAndBusiness,
	Travel,
	Other,
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Item is a single priced line parsed from receipt text
type Item struct {
	Name       string    `json:"name"`
	Quantity   float64   `json:"quantity"`
	UnitPrice  float64   `json:"unit_price"`
	TotalPrice float64   `json:"total_price"`
	Category   *Category `json:"category"`
}

// Record is the structured result of running the pipeline over one document
type Record struct {
	RawText      string   `json:"raw_text"`
	MerchantName *string  `json:"merchant_name"`
	TotalAmount  *float64 `json:"total_amount"`
	PurchaseDate *string  `json:"purchase_date"`
	Items        []Item   `json:"items"`
}

// TextResult is the outcome of recognizing text in a document. It either
// carries extracted text or the reason recognition failed.
type TextResult struct {
	text    string
	failure error
}

// Extracted wraps successfully recognized text
func Extracted(text string) TextResult {
	return TextResult{text: text}
}

// Failed records a recognition failure
func Failed(reason error) TextResult {
	if reason == nil {
		reason = errors.New("text recognition failed")
	}
	return TextResult{failure: reason}
}

// Text returns the recognized text, or an error wrapping ErrUndecodableInput
// when recognition failed.
func (r TextResult) Text() (string, error) {
	if r.failure != nil {
		return "", fmt.Errorf("%w: %w", ErrUndecodableInput, r.failure)
	}
	return r.text, nil
}

// OK reports whether text was recognized
func (r TextResult) OK() bool {
	return r.failure == nil
}
