package extraction

import (
	"fmt"
	"regexp"
	"regexp/syntax"
	"strings"
	"unicode"

	"github.com/cloudflare/ahocorasick"
)

// patternRule is a category with its compiled fallback patterns
type patternRule struct {
	category Category
	patterns []*regexp.Regexp
}

// Engine assigns categories to item names using an ordered rule table.
// It is immutable once built and safe for concurrent use.
//
// Classification runs in two tiers. The keyword tier looks for any rule
// keyword as a substring of the item name joined with the merchant name; the
// earliest keyword in declaration order (category order, then keyword order)
// wins. The pattern tier only runs when no keyword matched and tests each
// category's regexes against the item name alone. Anything left over is Other.
type Engine struct {
	matcher *ahocorasick.Matcher
	// keywordCategory maps a matcher dictionary index to its category.
	// Dictionary entries are unique and ordered by first declaration, so the
	// lowest index hit is the first declared keyword present in the text.
	keywordCategory []Category
	patternRules    []patternRule
}

// NewEngine compiles a rule table. Rule order is classification priority.
func NewEngine(rules []CategoryRule) (*Engine, error) {
	e := &Engine{}

	seen := make(map[string]struct{})
	dictionary := make([]string, 0)

	for i, rule := range rules {
		if !rule.Category.Valid() {
			return nil, fmt.Errorf("rule %d: unknown category %q", i, rule.Category)
		}

		for _, keyword := range rule.Keywords {
			keyword = strings.ToLower(keyword)
			if strings.TrimSpace(keyword) == "" {
				return nil, fmt.Errorf("rule %d (%s): empty keyword", i, rule.Category)
			}
			// A keyword repeated under a later category can never win
			if _, ok := seen[keyword]; ok {
				continue
			}
			seen[keyword] = struct{}{}
			dictionary = append(dictionary, keyword)
			e.keywordCategory = append(e.keywordCategory, rule.Category)
		}

		compiled := patternRule{category: rule.Category}
		for _, pattern := range rule.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %d (%s): compiling pattern %q: %w", i, rule.Category, pattern, err)
			}
			if parsed, err := syntax.Parse(pattern, syntax.Perl); err == nil && hasUpperLiteral(parsed) {
				return nil, fmt.Errorf("rule %d (%s): pattern %q has upper-case letters but is matched against lower-case text", i, rule.Category, pattern)
			}
			compiled.patterns = append(compiled.patterns, re)
		}
		e.patternRules = append(e.patternRules, compiled)
	}

	if len(dictionary) > 0 {
		e.matcher = ahocorasick.NewStringMatcher(dictionary)
	}

	return e, nil
}

// MustNewEngine is like NewEngine but panics if the rules do not compile.
// It is intended for static rule tables such as DefaultRules.
func MustNewEngine(rules []CategoryRule) *Engine {
	e, err := NewEngine(rules)
	if err != nil {
		panic(err)
	}
	return e
}

// Classify returns the category for an item. merchantName may be empty.
func (e *Engine) Classify(itemName, merchantName string) Category {
	if category, ok := e.matchKeyword(strings.ToLower(itemName + " " + merchantName)); ok {
		return category
	}

	name := strings.ToLower(itemName)
	for _, rule := range e.patternRules {
		for _, re := range rule.patterns {
			if re.MatchString(name) {
				return rule.category
			}
		}
	}

	return Other
}

func (e *Engine) matchKeyword(text string) (Category, bool) {
	if e.matcher == nil {
		return "", false
	}

	hits := e.matcher.MatchThreadSafe([]byte(text))
	if len(hits) == 0 {
		return "", false
	}

	first := hits[0]
	for _, idx := range hits[1:] {
		if idx < first {
			first = idx
		}
	}
	return e.keywordCategory[first], true
}

// ClassifyReceipt returns a copy of items with every category set, in the
// same order.
func (e *Engine) ClassifyReceipt(items []Item, merchantName string) []Item {
	classified := make([]Item, len(items))
	for i, item := range items {
		category := e.Classify(item.Name, merchantName)
		item.Category = &category
		classified[i] = item
	}
	return classified
}

// hasUpperLiteral reports whether re contains a case-sensitive upper-case
// literal, which can never match a lowercased item name
func hasUpperLiteral(re *syntax.Regexp) bool {
	if re.Op == syntax.OpLiteral && re.Flags&syntax.FoldCase == 0 {
		for _, r := range re.Rune {
			if unicode.IsUpper(r) {
				return true
			}
		}
	}
	for _, sub := range re.Sub {
		if hasUpperLiteral(sub) {
			return true
		}
	}
	return false
}
