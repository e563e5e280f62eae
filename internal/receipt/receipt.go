package receipt

import (
	"log/slog"
	"strings"
	"time"

	"github.com/zombor/scantrack/internal/extraction"
)

// Receipt is a scanned document with the fields extracted from it
type Receipt struct {
	ID           string     `json:"id"`
	Filename     string     `json:"filename"`  // Name the file was uploaded with
	FilePath     string     `json:"file_path"` // Storage key of the uploaded file
	ContentType  string     `json:"content_type"`
	MerchantName *string    `json:"merchant_name"`
	TotalAmount  *int64     `json:"total_amount"`  // Amount in cents
	PurchaseDate *string    `json:"purchase_date"` // Date as printed on the receipt
	PurchasedOn  *time.Time `json:"purchased_on,omitempty"`
	RawText      string     `json:"raw_text"`
	Items        []Item     `json:"items"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Item is a stored line item
type Item struct {
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   int64   `json:"unit_price"`  // Price in cents
	TotalPrice  int64   `json:"total_price"` // Price in cents
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Update holds the editable fields of a receipt. Nil fields are left as-is;
// a non-nil Items replaces every item.
type Update struct {
	MerchantName *string `json:"merchant_name"`
	TotalAmount  *int64  `json:"total_amount"`
	PurchaseDate *string `json:"purchase_date"`
	Items        *[]Item `json:"items"`
}

// purchaseDateLayouts are the printed date shapes that can be turned into a
// calendar date. Single-digit layouts also accept zero-padded input.
var purchaseDateLayouts = []string{
	"1/2/2006",
	"1-2-2006",
	"2006-1-2",
	"2 January 2006",
	"2 Jan 2006",
}

// parsePurchaseDate converts a printed date into a calendar date, or nil
// when it does not match a known layout.
func parsePurchaseDate(printed *string) *time.Time {
	if printed == nil {
		return nil
	}
	value := strings.Join(strings.Fields(*printed), " ")
	for _, layout := range purchaseDateLayouts {
		if d, err := time.Parse(layout, value); err == nil {
			return &d
		}
	}
	return nil
}

// itemsFromRecord converts extracted items to stored items. Items whose
// price cannot be held in cents, such as a barcode read as a price, are dropped.
func itemsFromRecord(items []extraction.Item) []Item {
	stored := make([]Item, 0, len(items))
	for _, item := range items {
		unit, unitOK := toCents(item.UnitPrice)
		total, totalOK := toCents(item.TotalPrice)
		if !unitOK || !totalOK {
			slog.Warn("Dropping item with out of range price", "item", item.Name, "price", item.TotalPrice)
			continue
		}
		category := ""
		if item.Category != nil {
			category = string(*item.Category)
		}
		stored = append(stored, Item{
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  unit,
			TotalPrice: total,
			Category:   category,
		})
	}
	return stored
}

// apply copies the set fields of u onto r
func (u Update) apply(r *Receipt) {
	if u.MerchantName != nil {
		r.MerchantName = u.MerchantName
	}
	if u.TotalAmount != nil {
		r.TotalAmount = u.TotalAmount
	}
	if u.PurchaseDate != nil {
		r.PurchaseDate = u.PurchaseDate
		r.PurchasedOn = parsePurchaseDate(u.PurchaseDate)
	}
	if u.Items != nil {
		r.Items = append([]Item{}, (*u.Items)...)
	}
}
