package compressor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/meditwin-platform/meditwin/internal/biomarkers"
	"github.com/meditwin-platform/meditwin/internal/extraction"
	"github.com/meditwin-platform/meditwin/internal/memory"
)

// Item is one key/value entry of a compressed context. Items are ordered;
// the language-model prompt consumes them verbatim.
type Item struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Context is the token-bounded, priority-truncated patient state handed to
// the inference adapter. It is persisted next to the analysis result so a
// run can be reproduced later.
type Context struct {
	Items  []Item `json:"items"`
	Tokens int    `json:"tokens"`
}

// Render flattens the context into the prompt-ready "key: value" form.
func (c Context) Render() string {
	lines := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, item.Key+": "+item.Value)
	}
	return strings.Join(lines, "\n")
}

// BuildInput carries everything the builder may draw from.
type BuildInput struct {
	Profile         memory.PatientProfile
	Summary         memory.MemorySummary
	Biomarkers      *biomarkers.Snapshot
	Turns           []memory.ConversationTurn
	Entities        []extraction.Entity
	SimilarFindings []string
}

// Builder assembles compressed contexts under a token budget.
type Builder struct {
	budget      int
	recentTurns int
}

func NewBuilder(tokenBudget, recentTurns int) *Builder {
	return &Builder{budget: tokenBudget, recentTurns: recentTurns}
}

// Build emits items in fixed priority order (profile fields, treatment
// plans, summary digest, biomarkers, recent turns, extracted entities,
// similar past findings) and drops whole items once the budget is spent.
// Items are never clipped mid-token; one that does not fit is skipped
// entirely.
func (b *Builder) Build(in BuildInput) Context {
	ctx := Context{}

	for _, item := range b.candidates(in) {
		cost := EstimateTokens(item.Key + ": " + item.Value)
		if ctx.Tokens+cost > b.budget {
			continue
		}
		ctx.Items = append(ctx.Items, item)
		ctx.Tokens += cost
	}
	return ctx
}

func (b *Builder) candidates(in BuildInput) []Item {
	var items []Item

	// Tier 1: explicit profile fields
	if in.Profile.Age > 0 {
		items = append(items, Item{Key: "age", Value: fmt.Sprintf("%d", in.Profile.Age)})
	}
	if in.Profile.Gender != "" {
		items = append(items, Item{Key: "gender", Value: in.Profile.Gender})
	}
	if len(in.Profile.Conditions) > 0 {
		items = append(items, Item{Key: "conditions", Value: strings.Join(in.Profile.Conditions, ", ")})
	}
	if len(in.Profile.Medications) > 0 {
		items = append(items, Item{Key: "medications", Value: strings.Join(in.Profile.Medications, ", ")})
	}
	if len(in.Profile.Allergies) > 0 {
		items = append(items, Item{Key: "allergies", Value: strings.Join(in.Profile.Allergies, ", ")})
	}

	// Tier 2: active treatment plans
	if len(in.Profile.TreatmentPlans) > 0 {
		items = append(items, Item{Key: "treatment_plans", Value: strings.Join(in.Profile.TreatmentPlans, ", ")})
	}

	// Tier 3: compacted summary of past conversations
	if len(in.Summary.HealthGoals) > 0 {
		items = append(items, Item{Key: "health_goals", Value: strings.Join(in.Summary.HealthGoals, ", ")})
	}
	if len(in.Summary.Preferences) > 0 {
		keys := make([]string, 0, len(in.Summary.Preferences))
		for k := range in.Summary.Preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			items = append(items, Item{Key: "preference." + k, Value: in.Summary.Preferences[k]})
		}
	}
	if len(in.Summary.Topics) > 0 {
		items = append(items, Item{Key: "recent_topics", Value: strings.Join(in.Summary.Topics, ", ")})
	}

	// Tier 4: latest biomarker snapshot, one item per metric in stable order
	if in.Biomarkers != nil && len(in.Biomarkers.Metrics) > 0 {
		names := make([]string, 0, len(in.Biomarkers.Metrics))
		for name := range in.Biomarkers.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			items = append(items, Item{
				Key:   "biomarker." + name,
				Value: strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", in.Biomarkers.Metrics[name]), "0"), "."),
			})
		}
	}

	// Tier 5: most recent N conversation turns, oldest first
	turns := in.Turns
	if len(turns) > b.recentTurns {
		turns = turns[len(turns)-b.recentTurns:]
	}
	for i, turn := range turns {
		items = append(items, Item{
			Key:   fmt.Sprintf("turn_%d_%s", i+1, turn.Role),
			Value: turn.Text,
		})
	}

	// Tier 6: entities from the current document, most recent last
	for _, e := range in.Entities {
		items = append(items, Item{
			Key:   "entity." + strings.ToLower(string(e.Category)),
			Value: e.Text,
		})
	}

	// Tier 7: similar prior findings (lowest priority)
	for i, finding := range in.SimilarFindings {
		items = append(items, Item{
			Key:   fmt.Sprintf("prior_finding_%d", i+1),
			Value: finding,
		})
	}

	return items
}
