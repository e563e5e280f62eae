package extraction

import (
	"regexp"
	"strconv"
	"strings"
)

// merchantScanLines is how many leading lines are considered for the merchant name
const merchantScanLines = 5

var (
	digitsOnly = regexp.MustCompile(`^\d+$`)

	// Label patterns are tried in order. The upper-case variants are
	// redundant under (?i) but keep the precedence list explicit.
	totalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)total[:\s]*\$?(\d+\.?\d*)`),
		regexp.MustCompile(`(?i)TOTAL[:\s]*\$?(\d+\.?\d*)`),
		regexp.MustCompile(`(?i)amount[:\s]*\$?(\d+\.?\d*)`),
		regexp.MustCompile(`(?i)AMOUNT[:\s]*\$?(\d+\.?\d*)`),
	}

	currencyAmount = regexp.MustCompile(`\$(\d+\.?\d*)`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`),
		regexp.MustCompile(`\d{1,2}-\d{1,2}-\d{4}`),
		regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}`),
		regexp.MustCompile(`\d{1,2}\s+\w+\s+\d{4}`),
	}
)

// ExtractMerchantName returns the first of the leading lines that is neither
// blank nor purely numeric.
func ExtractMerchantName(text string) *string {
	lines := strings.Split(text, "\n")
	if len(lines) > merchantScanLines {
		lines = lines[:merchantScanLines]
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && !digitsOnly.MatchString(line) {
			return &line
		}
	}
	return nil
}

// ExtractTotalAmount finds the total using labeled patterns first, preferring
// the last labeled occurrence since subtotals usually come before the final
// total. Falls back to the last dollar amount in the text.
func ExtractTotalAmount(text string) *float64 {
	for _, pattern := range totalPatterns {
		matches := pattern.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		if amount, ok := lastParsable(matches); ok {
			return &amount
		}
	}

	if amount, ok := lastParsable(currencyAmount.FindAllStringSubmatch(text, -1)); ok {
		return &amount
	}
	return nil
}

// lastParsable walks submatches from the end and returns the first capture
// that parses as a number.
func lastParsable(matches [][]string) (float64, bool) {
	for i := len(matches) - 1; i >= 0; i-- {
		amount, err := strconv.ParseFloat(matches[i][1], 64)
		if err != nil {
			continue
		}
		return amount, true
	}
	return 0, false
}

// ExtractPurchaseDate returns the first match of the first date shape found
// in text. The substring is returned as-is; it is not validated as a date.
func ExtractPurchaseDate(text string) *string {
	for _, pattern := range datePatterns {
		if match := pattern.FindString(text); match != "" {
			return &match
		}
	}
	return nil
}
