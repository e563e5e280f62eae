package receipt

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
)

// ExportFormat is a file format receipts can be exported as
type ExportFormat string

const (
	ExportCSV   ExportFormat = "csv"
	ExportJSON  ExportFormat = "json"
	ExportExcel ExportFormat = "xlsx"
)

const exportFormatVersion = "1.0"

// ParseExportFormat accepts csv, json, xlsx or excel
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return ExportCSV, nil
	case "json":
		return ExportJSON, nil
	case "xlsx", "excel":
		return ExportExcel, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedExportFormat, s)
}

// ContentType returns the MIME type of the format
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportJSON:
		return "application/json"
	case ExportExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Filename returns the download name for an export made at t
func (f ExportFormat) Filename(t time.Time) string {
	return fmt.Sprintf("receipts_export_%s.%s", t.Format("20060102_150405"), string(f))
}

// exportDateLayout is the day format accepted for export bounds
const exportDateLayout = "2006-01-02"

// ExportRange limits an export to receipts created within its bounds,
// inclusive. A nil bound is open.
type ExportRange struct {
	Start *time.Time
	End   *time.Time
}

// ParseExportRange reads optional start and end bounds, each either a day
// (2006-01-02, UTC) or an RFC 3339 timestamp. A day given as the end covers
// the whole day.
func ParseExportRange(start, end string) (ExportRange, error) {
	var r ExportRange
	var err error
	if r.Start, err = parseExportBound(start, false); err != nil {
		return ExportRange{}, fmt.Errorf("%w: start: %w", ErrInvalidExportRange, err)
	}
	if r.End, err = parseExportBound(end, true); err != nil {
		return ExportRange{}, fmt.Errorf("%w: end: %w", ErrInvalidExportRange, err)
	}
	if r.Start != nil && r.End != nil && r.Start.After(*r.End) {
		return ExportRange{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidExportRange, start, end)
	}
	return r, nil
}

func parseExportBound(value string, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(exportDateLayout, value); err == nil {
		if endOfDay {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("%q is neither a date nor an RFC 3339 time", value)
	}
	return &t, nil
}

// Contains reports whether t falls within the range
func (r ExportRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// Export writes the receipts created within window, newest first, to w
func (s *Service) Export(w io.Writer, format ExportFormat, window ExportRange) error {
	all, err := s.allReceipts()
	if err != nil {
		return err
	}
	receipts := make([]*Receipt, 0, len(all))
	for _, r := range all {
		if window.Contains(r.CreatedAt) {
			receipts = append(receipts, r)
		}
	}

	switch format {
	case ExportCSV:
		return WriteCSV(w, receipts)
	case ExportJSON:
		return WriteJSON(w, receipts, s.timeSource.Now(), window)
	case ExportExcel:
		return WriteExcel(w, receipts)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedExportFormat, format)
}

// csvRow is one exported line item. Receipts without items export a single
// row with the item columns empty.
type csvRow struct {
	ReceiptID      string `csv:"receipt_id"`
	Filename       string `csv:"filename"`
	MerchantName   string `csv:"merchant_name"`
	TotalAmount    string `csv:"total_amount"`
	PurchaseDate   string `csv:"purchase_date"`
	CreatedAt      string `csv:"created_at"`
	ItemName       string `csv:"item_name"`
	ItemQuantity   string `csv:"item_quantity"`
	ItemUnitPrice  string `csv:"item_unit_price"`
	ItemTotalPrice string `csv:"item_total_price"`
	ItemCategory   string `csv:"item_category"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func amountString(cents *int64) string {
	if cents == nil {
		return ""
	}
	return dollars(*cents)
}

func quantityString(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// WriteCSV writes receipts as CSV with one row per item
func WriteCSV(w io.Writer, receipts []*Receipt) error {
	rows := make([]csvRow, 0, len(receipts))
	for _, r := range receipts {
		base := csvRow{
			ReceiptID:    r.ID,
			Filename:     r.Filename,
			MerchantName: deref(r.MerchantName),
			TotalAmount:  amountString(r.TotalAmount),
			PurchaseDate: deref(r.PurchaseDate),
			CreatedAt:    r.CreatedAt.Format(time.RFC3339),
		}
		if len(r.Items) == 0 {
			rows = append(rows, base)
			continue
		}
		for _, item := range r.Items {
			row := base
			row.ItemName = item.Name
			row.ItemQuantity = quantityString(item.Quantity)
			row.ItemUnitPrice = dollars(item.UnitPrice)
			row.ItemTotalPrice = dollars(item.TotalPrice)
			row.ItemCategory = item.Category
			rows = append(rows, row)
		}
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

type exportInfo struct {
	ExportedAt    time.Time  `json:"exported_at"`
	TotalReceipts int        `json:"total_receipts"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	FormatVersion string     `json:"format_version"`
}

type jsonExport struct {
	ExportInfo exportInfo `json:"export_info"`
	Receipts   []*Receipt `json:"receipts"`
}

// WriteJSON writes receipts as an indented JSON document. window is
// recorded in the export info; receipts are not filtered here.
func WriteJSON(w io.Writer, receipts []*Receipt, exportedAt time.Time, window ExportRange) error {
	doc := jsonExport{
		ExportInfo: exportInfo{
			ExportedAt:    exportedAt,
			TotalReceipts: len(receipts),
			StartDate:     window.Start,
			EndDate:       window.End,
			FormatVersion: exportFormatVersion,
		},
		Receipts: receipts,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("writing json: %w", err)
	}
	return nil
}

// Excel sheet names
const (
	receiptsSheet = "Receipts"
	itemsSheet    = "Items"
	summarySheet  = "Summary"
)

// WriteExcel writes receipts as a workbook with Receipts, Items and Summary sheets
func WriteExcel(w io.Writer, receipts []*Receipt) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", receiptsSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	for _, name := range []string{itemsSheet, summarySheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", name, err)
		}
	}

	sheet := sheetWriter{f: f}

	sheet.row(receiptsSheet, 1, "ID", "Filename", "Merchant", "Total Amount", "Purchase Date", "Items", "Created At")
	sheet.row(itemsSheet, 1, "Receipt ID", "Merchant", "Item", "Quantity", "Unit Price", "Total Price", "Category")

	var (
		grandTotal int64
		itemRow    = 2
		byCategory = map[string]*CategoryStat{}
	)
	for i, r := range receipts {
		var total any
		if r.TotalAmount != nil {
			grandTotal += *r.TotalAmount
			total = float64(*r.TotalAmount) / 100
		}
		sheet.row(receiptsSheet, i+2,
			r.ID, r.Filename, deref(r.MerchantName), total, deref(r.PurchaseDate), len(r.Items), r.CreatedAt.Format(time.RFC3339))

		for _, item := range r.Items {
			sheet.row(itemsSheet, itemRow,
				r.ID, deref(r.MerchantName), item.Name, item.Quantity,
				float64(item.UnitPrice)/100, float64(item.TotalPrice)/100, item.Category)
			itemRow++

			if item.Category == "" {
				continue
			}
			stat, ok := byCategory[item.Category]
			if !ok {
				stat = &CategoryStat{Category: item.Category}
				byCategory[item.Category] = stat
			}
			stat.ItemCount++
			stat.TotalAmount += item.TotalPrice
		}
	}

	sheet.row(summarySheet, 1, "Metric", "Value")
	sheet.row(summarySheet, 2, "Total Receipts", len(receipts))
	sheet.row(summarySheet, 3, "Total Amount", display(grandTotal))
	sheet.row(summarySheet, 4, "Average per Receipt", display(averageCents(grandTotal, len(receipts))))
	sheet.row(summarySheet, 6, "Category", "Items", "Total", "Average")

	categories := make([]string, 0, len(byCategory))
	for name := range byCategory {
		categories = append(categories, name)
	}
	sort.Strings(categories)
	for i, name := range categories {
		stat := byCategory[name]
		sheet.row(summarySheet, i+7,
			name, stat.ItemCount, display(stat.TotalAmount), display(averageCents(stat.TotalAmount, stat.ItemCount)))
	}

	if sheet.err != nil {
		return fmt.Errorf("writing workbook rows: %w", sheet.err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// sheetWriter writes rows and keeps the first error
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (s *sheetWriter) row(sheet string, row int, values ...any) {
	if s.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetSheetRow(sheet, cell, &values)
}
