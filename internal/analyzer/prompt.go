package analyzer

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Thresholds are the EUR price limits behind the three scoring tiers.
type Thresholds struct {
	// Exceptional (90-100): designer brand under DesignerMax, or anything under AnyMax.
	ExceptionalDesignerMax float64 `yaml:"exceptional_designer_max"`
	ExceptionalAnyMax      float64 `yaml:"exceptional_any_max"`
	// Great (70-89): quality brand under BrandMax, or a good item under AnyMax.
	GreatBrandMax float64 `yaml:"great_brand_max"`
	GreatAnyMax   float64 `yaml:"great_any_max"`
}

// DefaultThresholds are the limits the service shipped with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ExceptionalDesignerMax: 20,
		ExceptionalAnyMax:      5,
		GreatBrandMax:          30,
		GreatAnyMax:            10,
	}
}

// DefaultBrands are quoted in the prompt as examples of sought-after brands.
var DefaultBrands = []string{"Nike", "Adidas", "Gucci", "Zara", "H&M"}

// PromptConfig feeds BuildSystemPrompt.
type PromptConfig struct {
	Thresholds     Thresholds
	Brands         []string
	ReasonLanguage string
}

// BuildSystemPrompt renders the deal-hunting instructions for one country.
func BuildSystemPrompt(cfg PromptConfig, country string) string {
	t := cfg.Thresholds
	brands := cfg.Brands
	if len(brands) == 0 {
		brands = DefaultBrands
	}
	language := cfg.ReasonLanguage
	if language == "" {
		language = "Italian"
	}

	var b strings.Builder
	b.WriteString("You are an expert at finding amazing deals on second-hand marketplaces.\n\n")
	fmt.Fprintf(&b, "Identify the TOP BEST DEALS from this Vinted %s catalog.\n\n", country)

	b.WriteString("A GREAT DEAL is:\n")
	fmt.Fprintf(&b, "- Premium/designer brands (%s) at very low prices (under €%s)\n", strings.Join(brands, ", "), euros(t.GreatBrandMax))
	b.WriteString("- Items in excellent or new condition priced significantly below typical market value\n")
	fmt.Fprintf(&b, "- High-quality items at prices under €%s\n", euros(t.GreatAnyMax))
	b.WriteString("- Popular items with strong demand at bargain prices\n\n")

	b.WriteString("For each deal:\n")
	fmt.Fprintf(&b, "1. Extract: title, price (as number), condition, brand (if mentioned, otherwise null), url (full absolute link), country (set to %q)\n", country)
	b.WriteString("2. Calculate deal_score (0-100):\n")
	fmt.Fprintf(&b, "   - 90-100: Exceptional (designer under €%s or amazing under €%s)\n", euros(t.ExceptionalDesignerMax), euros(t.ExceptionalAnyMax))
	fmt.Fprintf(&b, "   - 70-89: Great (quality brand under €%s or good under €%s)\n", euros(t.GreatBrandMax), euros(t.GreatAnyMax))
	b.WriteString("   - 50-69: Good (decent savings)\n")
	fmt.Fprintf(&b, "3. Explain WHY it's a good deal (1 sentence in %s) in deal_reason\n\n", language)

	b.WriteString("Return top deals only, as a JSON object of the form:\n")
	b.WriteString(`{"deals": [{"title": "...", "price": 0.0, "condition": "...", "brand": null, "url": "https://...", "country": "...", "deal_score": 0, "deal_reason": "..."}]}`)
	b.WriteString("\nRespond with the JSON object only.")

	return b.String()
}

// BuildUserPrompt wraps the (already truncated) catalog text.
func BuildUserPrompt(catalog string) string {
	return "Analyze this catalog and extract top deals:\n\n" + catalog
}

// Truncate returns at most maxChars characters of s without splitting a rune.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}

	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}

// euros formats a threshold without a trailing ".00" for whole amounts.
func euros(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
