package extraction

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CategoryRule is the configuration for one category: keywords matched as
// case-insensitive substrings, and regex patterns matched against the
// lowercased item name when no keyword hits. Patterns must therefore be
// written in lower case (or use (?i)); NewEngine rejects upper-case literals.
type CategoryRule struct {
	Category Category `yaml:"category"`
	Keywords []string `yaml:"keywords"`
	Patterns []string `yaml:"patterns"`
}

// rulesFile is the on-disk layout of a rule table
type rulesFile struct {
	Rules []CategoryRule `yaml:"rules"`
}

// LoadRules reads an ordered rule table from a YAML file. Rule order in the
// file is the classification priority order.
func LoadRules(path string) ([]CategoryRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes a YAML rule table
func ParseRules(data []byte) ([]CategoryRule, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshaling rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rules file contains no rules")
	}
	return file.Rules, nil
}

// DefaultRules returns the built-in rule table
func DefaultRules() []CategoryRule {
	return []CategoryRule{
		{
			Category: FoodAndDining,
			Keywords: []string{
				"restaurant", "cafe", "coffee", "food", "dining", "pizza", "burger",
				"sandwich", "salad", "soup", "pasta", "chinese", "mexican", "italian",
				"fast food", "deli", "bakery", "grocery", "supermarket", "market",
			},
			Patterns: []string{
				`\b(burger|pizza|sandwich|salad|soup|pasta|rice|bread|meat|chicken|beef|fish)\b`,
				`\b(coffee|tea|juice|soda|water|beer|wine|alcohol)\b`,
				`\b(fruit|vegetable|apple|banana|orange|tomato|onion|potato)\b`,
			},
		},
		{
			Category: Transportation,
			Keywords: []string{
				"gas", "fuel", "gasoline", "petrol", "uber", "lyft", "taxi", "bus",
				"train", "metro", "subway", "parking", "toll", "highway", "airport",
			},
			Patterns: []string{
				`\b(gas|fuel|petrol|diesel|uber|lyft|taxi|bus|train|metro)\b`,
				`\b(parking|toll|highway|road|bridge|tunnel)\b`,
			},
		},
		{
			Category: Shopping,
			Keywords: []string{
				"store", "shop", "retail", "clothing", "apparel", "shoes", "electronics",
				"amazon", "walmart", "target", "costco", "mall", "department",
			},
			Patterns: []string{
				`\b(shirt|pants|dress|shoes|hat|jacket|clothing|apparel)\b`,
				`\b(phone|computer|laptop|tablet|electronics|gadget)\b`,
				`\b(book|magazine|newspaper|stationery|pen|pencil)\b`,
			},
		},
		{
			Category: Healthcare,
			Keywords: []string{
				"pharmacy", "drug", "medicine", "medical", "doctor", "hospital",
				"clinic", "health", "prescription", "cvs", "walgreens",
			},
			Patterns: []string{
				`\b(medicine|drug|prescription|vitamin|supplement|bandage)\b`,
				`\b(doctor|medical|health|pharmacy|clinic|hospital)\b`,
			},
		},
		{
			Category: Entertainment,
			Keywords: []string{
				"movie", "cinema", "theater", "netflix", "spotify", "music", "game",
				"entertainment", "sports", "gym", "fitness", "club", "bar",
			},
			Patterns: []string{
				`\b(movie|cinema|theater|netflix|spotify|music|game|gaming)\b`,
				`\b(sports|gym|fitness|club|bar|party|concert)\b`,
			},
		},
		{
			Category: Utilities,
			Keywords: []string{
				"electric", "water", "gas", "internet", "phone", "cable", "utility",
				"power", "heating", "cooling",
			},
			Patterns: []string{
				`\b(electric|water|gas|internet|phone|cable|utility|power)\b`,
				`\b(heating|cooling|air conditioning|ac|heater)\b`,
			},
		},
		{
			Category: OfficeAndBusiness,
			Keywords: []string{
				"office", "supplies", "stationery", "business", "meeting", "conference",
				"printing", "copy", "fax",
			},
			Patterns: []string{
				`\b(office|supplies|stationery|pen|pencil|paper|printer|ink)\b`,
				`\b(meeting|conference|business|professional|work)\b`,
			},
		},
		{
			Category: Travel,
			Keywords: []string{
				"hotel", "flight", "airline", "travel", "vacation", "trip", "booking",
				"reservation", "airbnb",
			},
			Patterns: []string{
				`\b(hotel|flight|airline|travel|vacation|trip|booking)\b`,
				`\b(reservation|airbnb|hostel|motel|luggage|suitcase)\b`,
			},
		},
	}
}
