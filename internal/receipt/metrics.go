package receipt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts receipt processing outcomes. A nil *Metrics records nothing.
type Metrics struct {
	receipts  *prometheus.CounterVec
	items     *prometheus.CounterVec
	fields    *prometheus.CounterVec
	itemCount prometheus.Histogram
}

// NewMetrics registers the receipt metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		receipts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scantrack",
			Name:      "receipts_processed_total",
			Help:      "Receipts processed, by outcome.",
		}, []string{"status"}),
		items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scantrack",
			Name:      "items_categorized_total",
			Help:      "Line items extracted, by assigned category.",
		}, []string{"category"}),
		fields: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scantrack",
			Name:      "fields_missing_total",
			Help:      "Receipts saved without a value for a header field.",
		}, []string{"field"}),
		itemCount: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scantrack",
			Name:      "receipt_items",
			Help:      "Number of line items per processed receipt.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
	}
}

func (m *Metrics) receiptFailed() {
	if m == nil {
		return
	}
	m.receipts.WithLabelValues("failed").Inc()
}

func (m *Metrics) receiptProcessed(r *Receipt) {
	if m == nil {
		return
	}
	m.receipts.WithLabelValues("success").Inc()
	m.itemCount.Observe(float64(len(r.Items)))
	for _, item := range r.Items {
		m.items.WithLabelValues(item.Category).Inc()
	}
	if r.MerchantName == nil {
		m.fields.WithLabelValues("merchant_name").Inc()
	}
	if r.TotalAmount == nil {
		m.fields.WithLabelValues("total_amount").Inc()
	}
	if r.PurchaseDate == nil {
		m.fields.WithLabelValues("purchase_date").Inc()
	}
}
