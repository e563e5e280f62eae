package extraction

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Engine", func() {
	var engine *Engine

	BeforeEach(func() {
		engine = MustNewEngine(DefaultRules())
	})

	Describe("Classify", func() {
		DescribeTable("default rules",
			func(item, merchant string, expected Category) {
				Expect(engine.Classify(item, merchant)).To(Equal(expected))
			},
			Entry("keyword in item", "Coffee", "", FoodAndDining),
			Entry("keyword in longer name", "Pizza Slice", "", FoodAndDining),
			Entry("transport keyword", "Uber Ride", "", Transportation),
			Entry("healthcare keyword", "Prescription", "", Healthcare),
			Entry("entertainment keyword", "Netflix", "", Entertainment),
			Entry("utility keyword", "Electric Bill", "", Utilities),
			Entry("travel keyword", "Hotel", "", Travel),
			Entry("keyword only in merchant", "Item", "Walgreens", Healthcare),
			Entry("pattern tier", "Chicken Wings", "", FoodAndDining),
			Entry("pattern tier healthcare", "Bandage", "", Healthcare),
			Entry("pattern tier travel", "Luggage", "", Travel),
			Entry("unknown item", "Random Item", "", Other),
			Entry("unknown item without merchant hint", "Miscellaneous", "", Other),
		)

		When("classifying gas bought at a gas station", func() {
			It("returns Transportation every time", func() {
				for i := 0; i < 10; i++ {
					Expect(engine.Classify("Gas", "Shell Gas Station")).To(Equal(Transportation))
				}
			})
		})

		When("a keyword is declared under two categories", func() {
			It("uses the earlier category", func() {
				// "gas" is listed under both Transportation and Utilities
				Expect(engine.Classify("gas", "")).To(Equal(Transportation))
			})
		})

		When("only the merchant would match a pattern", func() {
			It("does not use the merchant in the pattern tier", func() {
				Expect(engine.Classify("Widget", "Diesel Depot")).To(Equal(Other))
				Expect(engine.Classify("Diesel", "")).To(Equal(Transportation))
			})
		})

		When("called concurrently", func() {
			It("returns the same category from every goroutine", func() {
				var wg sync.WaitGroup
				results := make([]Category, 32)
				for i := range results {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						results[i] = engine.Classify("Gas", "Shell Gas Station")
					}(i)
				}
				wg.Wait()
				for _, category := range results {
					Expect(category).To(Equal(Transportation))
				}
			})
		})
	})

	Describe("category order", func() {
		var (
			shoppingFirst   *Engine
			healthcareFirst *Engine
		)

		BeforeEach(func() {
			shopping := CategoryRule{Category: Shopping, Keywords: []string{"widget"}}
			healthcare := CategoryRule{Category: Healthcare, Keywords: []string{"gizmo"}}
			shoppingFirst = MustNewEngine([]CategoryRule{shopping, healthcare})
			healthcareFirst = MustNewEngine([]CategoryRule{healthcare, shopping})
		})

		It("picks the category declared first when both keyword sets match", func() {
			Expect(shoppingFirst.Classify("widget gizmo", "")).To(Equal(Shopping))
			Expect(healthcareFirst.Classify("widget gizmo", "")).To(Equal(Healthcare))
		})

		It("ignores where the keywords appear in the text", func() {
			Expect(shoppingFirst.Classify("gizmo widget", "")).To(Equal(Shopping))
			Expect(healthcareFirst.Classify("gizmo widget", "")).To(Equal(Healthcare))
		})

		It("matches keywords case-insensitively", func() {
			Expect(healthcareFirst.Classify("WIDGET", "")).To(Equal(Shopping))
		})

		It("falls back to Other when nothing matches", func() {
			Expect(shoppingFirst.Classify("sprocket", "")).To(Equal(Other))
		})
	})

	Describe("pattern order", func() {
		It("checks patterns in category order", func() {
			e := MustNewEngine([]CategoryRule{
				{Category: Travel, Patterns: []string{`^sprocket`}},
				{Category: Shopping, Patterns: []string{`sprocket`}},
			})
			Expect(e.Classify("Sprocket Set", "")).To(Equal(Travel))
			Expect(e.Classify("Big Sprocket", "")).To(Equal(Shopping))
		})
	})

	Describe("ClassifyReceipt", func() {
		var (
			items      []Item
			classified []Item
		)

		BeforeEach(func() {
			items = []Item{
				{Name: "Random Item", Quantity: 1, UnitPrice: 1, TotalPrice: 1},
				{Name: "Luggage", Quantity: 1, UnitPrice: 80, TotalPrice: 80},
				{Name: "Coffee", Quantity: 1, UnitPrice: 3.5, TotalPrice: 3.5},
			}
		})

		JustBeforeEach(func() {
			classified = engine.ClassifyReceipt(items, "")
		})

		It("categorizes every item in order", func() {
			Expect(classified).To(HaveLen(3))
			Expect(*classified[0].Category).To(Equal(Other))
			Expect(*classified[1].Category).To(Equal(Travel))
			Expect(*classified[2].Category).To(Equal(FoodAndDining))
		})

		It("keeps prices and names", func() {
			Expect(classified[1].Name).To(Equal("Luggage"))
			Expect(classified[1].TotalPrice).To(Equal(80.0))
		})

		It("does not modify the input", func() {
			for _, item := range items {
				Expect(item.Category).To(BeNil())
			}
		})
	})

	Describe("NewEngine", func() {
		It("rejects unknown categories", func() {
			_, err := NewEngine([]CategoryRule{{Category: "Pets", Keywords: []string{"dog"}}})
			Expect(err).To(MatchError(ContainSubstring("unknown category")))
		})

		It("rejects empty keywords", func() {
			_, err := NewEngine([]CategoryRule{{Category: Travel, Keywords: []string{" "}}})
			Expect(err).To(MatchError(ContainSubstring("empty keyword")))
		})

		It("rejects patterns that do not compile", func() {
			_, err := NewEngine([]CategoryRule{{Category: Travel, Patterns: []string{`(`}}})
			Expect(err).To(MatchError(ContainSubstring("compiling pattern")))
		})

		It("rejects patterns with upper-case letters", func() {
			_, err := NewEngine([]CategoryRule{{Category: Travel, Patterns: []string{`\bHotel\b`}}})
			Expect(err).To(MatchError(ContainSubstring("upper-case")))
		})

		It("accepts case-insensitive and escape-class patterns", func() {
			e, err := NewEngine([]CategoryRule{{Category: Travel, Patterns: []string{`(?i)HOTEL`, `\d+ nights\S*`}}})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Classify("Grand Hotel", "")).To(Equal(Travel))
			Expect(e.Classify("3 Nights", "")).To(Equal(Travel))
		})

		It("accepts an empty table", func() {
			e, err := NewEngine(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Classify("Coffee", "Starbucks")).To(Equal(Other))
		})
	})
})
