package receipt

import (
	"sort"
	"time"
)

const (
	defaultAnalyticsMonths = 12
	recentReceiptCount     = 10
	monthKeyLayout         = "2006-01"
)

// MonthlyTotal is the amount spent in one calendar month
type MonthlyTotal struct {
	Month string `json:"month"` // YYYY-MM
	Total int64  `json:"total"` // Cents
}

// CategoryTotal is the amount spent on items in one category
type CategoryTotal struct {
	Category string `json:"category"`
	Total    int64  `json:"total"` // Cents
}

// ExpenseSummary aggregates spending over an analytics window
type ExpenseSummary struct {
	TotalExpenses     int64           `json:"total_expenses"` // Cents
	ReceiptCount      int             `json:"receipt_count"`
	MonthlyExpenses   []MonthlyTotal  `json:"monthly_expenses"`
	CategoryBreakdown []CategoryTotal `json:"category_breakdown"`
	RecentReceipts    []*Receipt      `json:"recent_receipts"`
}

// CategoryStat describes the items of one category
type CategoryStat struct {
	Category      string `json:"category"`
	ItemCount     int    `json:"item_count"`
	TotalAmount   int64  `json:"total_amount"`   // Cents
	AverageAmount int64  `json:"average_amount"` // Cents, rounded
}

// MonthlyTrend is spending per category for one month
type MonthlyTrend struct {
	Month      string           `json:"month"`
	Categories map[string]int64 `json:"categories"` // Cents by category
}

// windowReceipts returns receipts created within the last months*30 days,
// newest first
func (s *Service) windowReceipts(months int) ([]*Receipt, error) {
	if months <= 0 {
		months = defaultAnalyticsMonths
	}
	since := s.timeSource.Now().AddDate(0, 0, -30*months)

	receipts, err := s.allReceipts()
	if err != nil {
		return nil, err
	}

	windowed := make([]*Receipt, 0, len(receipts))
	for _, r := range receipts {
		if !r.CreatedAt.Before(since) {
			windowed = append(windowed, r)
		}
	}
	return windowed, nil
}

// ExpenseSummary totals spending over the last months*30 days
func (s *Service) ExpenseSummary(months int) (*ExpenseSummary, error) {
	receipts, err := s.windowReceipts(months)
	if err != nil {
		return nil, err
	}

	summary := &ExpenseSummary{
		ReceiptCount:      len(receipts),
		MonthlyExpenses:   []MonthlyTotal{},
		CategoryBreakdown: []CategoryTotal{},
	}

	monthly := map[string]int64{}
	byCategory := map[string]int64{}
	for _, r := range receipts {
		if r.TotalAmount != nil {
			summary.TotalExpenses += *r.TotalAmount
			monthly[monthOf(r.CreatedAt)] += *r.TotalAmount
		}
		for _, item := range r.Items {
			if item.Category != "" {
				byCategory[item.Category] += item.TotalPrice
			}
		}
	}

	for month, total := range monthly {
		summary.MonthlyExpenses = append(summary.MonthlyExpenses, MonthlyTotal{Month: month, Total: total})
	}
	sort.Slice(summary.MonthlyExpenses, func(i, j int) bool {
		return summary.MonthlyExpenses[i].Month < summary.MonthlyExpenses[j].Month
	})

	for category, total := range byCategory {
		summary.CategoryBreakdown = append(summary.CategoryBreakdown, CategoryTotal{Category: category, Total: total})
	}
	sort.Slice(summary.CategoryBreakdown, func(i, j int) bool {
		a, b := summary.CategoryBreakdown[i], summary.CategoryBreakdown[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Category < b.Category
	})

	recent := receipts
	if len(recent) > recentReceiptCount {
		recent = recent[:recentReceiptCount]
	}
	summary.RecentReceipts = recent

	return summary, nil
}

// CategoryStats summarizes items per category over the last months*30 days,
// largest total first
func (s *Service) CategoryStats(months int) ([]CategoryStat, error) {
	receipts, err := s.windowReceipts(months)
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	stats := []CategoryStat{}
	for _, r := range receipts {
		for _, item := range r.Items {
			if item.Category == "" {
				continue
			}
			i, ok := index[item.Category]
			if !ok {
				i = len(stats)
				index[item.Category] = i
				stats = append(stats, CategoryStat{Category: item.Category})
			}
			stats[i].ItemCount++
			stats[i].TotalAmount += item.TotalPrice
		}
	}

	for i := range stats {
		stats[i].AverageAmount = averageCents(stats[i].TotalAmount, stats[i].ItemCount)
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].TotalAmount != stats[j].TotalAmount {
			return stats[i].TotalAmount > stats[j].TotalAmount
		}
		return stats[i].Category < stats[j].Category
	})
	return stats, nil
}

// MonthlyTrends breaks item spending down by month and category over the
// last months*30 days, oldest month first
func (s *Service) MonthlyTrends(months int) ([]MonthlyTrend, error) {
	receipts, err := s.windowReceipts(months)
	if err != nil {
		return nil, err
	}

	byMonth := map[string]map[string]int64{}
	for _, r := range receipts {
		month := monthOf(r.CreatedAt)
		for _, item := range r.Items {
			if item.Category == "" {
				continue
			}
			if byMonth[month] == nil {
				byMonth[month] = map[string]int64{}
			}
			byMonth[month][item.Category] += item.TotalPrice
		}
	}

	trends := make([]MonthlyTrend, 0, len(byMonth))
	for month, categories := range byMonth {
		trends = append(trends, MonthlyTrend{Month: month, Categories: categories})
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Month < trends[j].Month })
	return trends, nil
}

func monthOf(t time.Time) string {
	return t.Format(monthKeyLayout)
}
