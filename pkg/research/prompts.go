package research

import (
	"strings"

	"github.com/quarryhq/quarry/pkg/retrieval"
)

const baseAnswerInstructions = `You are a research assistant answering questions using only the provided context passages. Be precise and cite specific facts back to their source.`

const noDocumentsInstructions = `No context passages were found for this query. Say so plainly and answer only from general knowledge, noting the answer is not grounded in the user's indexed content.`

const citationInstructions = `Every factual sentence must carry an inline citation in the exact form [citation:<source_id>], with <source_id> copied verbatim from a passage's source id below. Use [citation:1], [citation:2] for multiple citations on one sentence. Never invent a source id, never use a markdown link, a footnote, or a parenthesized reference instead of this exact bracket form.`

// buildSystemPrompt composes the three layers the Q&A and section-writing
// nodes share: base instructions always, citation instructions when the
// space has citations enabled, then the space's free-form custom
// instructions if set. hasDocuments picks the grounded-vs-ungrounded base
// layer.
func buildSystemPrompt(hasDocuments, citationsEnabled bool, customInstructions, language string) string {
	var sb strings.Builder
	if hasDocuments {
		sb.WriteString(baseAnswerInstructions)
	} else {
		sb.WriteString(noDocumentsInstructions)
	}
	if citationsEnabled && hasDocuments {
		sb.WriteString("\n\n")
		sb.WriteString(citationInstructions)
	}
	if customInstructions != "" {
		sb.WriteString("\n\n")
		sb.WriteString(customInstructions)
	}
	if language != "" {
		sb.WriteString("\n\nRespond in ")
		sb.WriteString(language)
		sb.WriteString(", regardless of the language of the question or the source material.")
	}
	return sb.String()
}

// formatContext renders packed chunks as a numbered passage list for the
// user-message half of the prompt, one block per chunk with its source id
// called out for the model to copy into citations.
func formatContext(chunks []retrieval.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Source: ")
		sb.WriteString(c.SourceID)
		if c.Title != "" {
			sb.WriteString(" (")
			sb.WriteString(c.Title)
			sb.WriteString(")")
		}
		sb.WriteString("\n")
		sb.WriteString(c.Text)
	}
	return sb.String()
}
