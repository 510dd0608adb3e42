package extraction

// Category is the canonical label family an extracted span belongs to.
type Category string

const (
	CategoryGene    Category = "GENE"
	CategoryDisease Category = "DISEASE"
	CategoryVariant Category = "VARIANT"
	CategoryOther   Category = "OTHER"
)

// RawEntity is one labeled span as returned by the extraction service.
type RawEntity struct {
	SpanText string  `json:"span_text"`
	Label    string  `json:"label"`
	Score    float64 `json:"score"`
}

// Entity is a normalized, deduplicated labeled span.
type Entity struct {
	Text     string   `json:"text"`
	Category Category `json:"category"`
	Score    float64  `json:"score"`
}
