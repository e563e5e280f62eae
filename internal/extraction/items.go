package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// minItemLineLength is the length a trimmed line must exceed to be considered
const minItemLineLength = 5

var linePrice = regexp.MustCompile(`\$?(\d+\.?\d*)`)

// ExtractItems scans text line by line for "name price" pairs. The first
// number on a line is its price and everything before it is the name.
// Quantity is always 1 and the unit price equals the line price.
func ExtractItems(text string) []Item {
	items := make([]Item, 0)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) <= minItemLineLength {
			continue
		}

		loc := linePrice.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}

		price, err := strconv.ParseFloat(line[loc[2]:loc[3]], 64)
		if err != nil {
			continue
		}

		name := strings.TrimSpace(line[:loc[0]])
		if name == "" || price <= 0 {
			continue
		}

		items = append(items, Item{
			Name:       name,
			Quantity:   1.0,
			UnitPrice:  price,
			TotalPrice: price,
		})
	}

	return items
}
