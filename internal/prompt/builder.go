// Package prompt formats the query, slots and retrieved rules into the text
// sent to the answer generator.
package prompt

import (
	"fmt"
	"strings"

	"taxrag/internal/domain"
	"taxrag/internal/slots"
)

const preamble = "You are a highly knowledgeable smart tax assistant. Provide clear, structured, bullet-pointed guidance based on the user's input and applicable tax rules."

var instructions = []string{
	"Provide a step-by-step answer in bullet points.",
	"Include actionable advice, calculations, applicable forms, deadlines, and references.",
	"Use a professional and easy-to-follow format.",
	"Base your response strictly on the identified slots and retrieved rules.",
}

const rowFormat = "%-20s | %-15s | %-35s | %-20s | %-25s | %-20s\n"

// Build returns the prompt for query. The output depends only on its inputs.
func Build(query string, s slots.Slots, results []domain.SearchResult) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "User Query: %s\n\n", query)

	b.WriteString("Identified Slots:\n")
	for _, f := range s.Fields() {
		fmt.Fprintf(&b, "- %s: %s\n", f.Name, f.Value)
	}

	b.WriteString("\nRelevant Tax Rules (structured table):\n")
	fmt.Fprintf(&b, rowFormat, "Asset Type", "Holding Period", "Tax Treatment", "Rate Rules", "Forms", "Deadline")
	b.WriteString(strings.Repeat("-", 140))
	b.WriteString("\n")
	for _, r := range results {
		rule := r.Rule
		fmt.Fprintf(&b, rowFormat,
			rule.AssetType, rule.HoldingPeriod, rule.TaxTreatment, rule.RateRules,
			strings.Join(rule.Forms, ", "), rule.Deadline)
	}

	b.WriteString("\nInstructions for response:\n")
	for _, line := range instructions {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	return b.String()
}
