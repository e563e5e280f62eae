package extraction

import (
	"golang.org/x/sync/errgroup"
)

// Pipeline turns raw receipt text into a categorized Record
type Pipeline struct {
	engine *Engine
}

// NewPipeline creates a Pipeline that classifies items with engine
func NewPipeline(engine *Engine) *Pipeline {
	return &Pipeline{engine: engine}
}

// Process extracts fields and items from raw text and categorizes the items.
// Missing fields are left nil; it never fails.
func (p *Pipeline) Process(raw string) *Record {
	record := &Record{RawText: raw}
	var items []Item

	// Extractors share no state; each writes its own field.
	var g errgroup.Group
	g.Go(func() error {
		record.MerchantName = ExtractMerchantName(raw)
		return nil
	})
	g.Go(func() error {
		record.TotalAmount = ExtractTotalAmount(raw)
		return nil
	})
	g.Go(func() error {
		record.PurchaseDate = ExtractPurchaseDate(raw)
		return nil
	})
	g.Go(func() error {
		items = ExtractItems(raw)
		return nil
	})
	_ = g.Wait()

	merchant := ""
	if record.MerchantName != nil {
		merchant = *record.MerchantName
	}
	record.Items = p.engine.ClassifyReceipt(items, merchant)

	return record
}

// ProcessResult runs Process over recognized text. A failed recognition
// returns an error wrapping ErrUndecodableInput instead of an empty record.
func (p *Pipeline) ProcessResult(result TextResult) (*Record, error) {
	text, err := result.Text()
	if err != nil {
		return nil, err
	}
	return p.Process(text), nil
}
