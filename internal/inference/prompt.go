package inference

import (
	"strings"

	"github.com/meditwin-platform/meditwin/internal/compressor"
)

// BuildPrompt embeds the compressed patient context and instructs the model
// to reply with the section markers the parser knows how to locate.
func BuildPrompt(ctx compressor.Context, query string) string {
	var b strings.Builder

	b.WriteString("You are a clinical analysis assistant for a patient digital twin.\n")
	b.WriteString("Patient context:\n")
	b.WriteString(ctx.Render())
	b.WriteString("\n\nQuery: ")
	b.WriteString(query)
	b.WriteString("\n\nReply using exactly these sections:\n")
	b.WriteString("ANALYSIS: <primary assessment of the patient's situation>\n")
	b.WriteString("INFERENCES: <what the context implies beyond the stated facts>\n")
	b.WriteString("RECOMMENDATIONS: <advisory next steps, not a diagnosis>\n")
	b.WriteString("CONFIDENCE: <a percentage, e.g. 80%>\n")
	b.WriteString("SEVERITY: <one of critical, concerning, moderate, good, excellent>\n")
	b.WriteString("PRIORITY: <one of urgent, high priority, medium, low priority>\n")

	return b.String()
}
