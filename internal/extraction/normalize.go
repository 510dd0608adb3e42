package extraction

import "strings"

// Categorize maps a service label to a canonical family by substring match.
// Composite labels such as "GENE/PROTEIN" or "DISEASE/PHENOTYPE" resolve to
// the first matching family; anything unrecognized is OTHER.
func Categorize(label string) Category {
	upper := strings.ToUpper(label)
	switch {
	case strings.Contains(upper, "GENE"):
		return CategoryGene
	case strings.Contains(upper, "DISEASE"), strings.Contains(upper, "PHENOTYPE"):
		return CategoryDisease
	case strings.Contains(upper, "VARIANT"):
		return CategoryVariant
	default:
		return CategoryOther
	}
}

// Normalize categorizes raw spans and merges duplicates. Two spans are
// duplicates when their case-folded, whitespace-trimmed text and category
// match; the merged entity keeps the maximum observed score. Output order
// follows first appearance.
func Normalize(raw []RawEntity) []Entity {
	type key struct {
		text     string
		category Category
	}

	index := make(map[key]int, len(raw))
	entities := make([]Entity, 0, len(raw))

	for _, r := range raw {
		text := strings.TrimSpace(r.SpanText)
		if text == "" {
			continue
		}
		cat := Categorize(r.Label)
		k := key{text: strings.ToLower(text), category: cat}

		if i, ok := index[k]; ok {
			if r.Score > entities[i].Score {
				entities[i].Score = r.Score
			}
			continue
		}

		index[k] = len(entities)
		entities = append(entities, Entity{Text: text, Category: cat, Score: r.Score})
	}
	return entities
}
