// Package chunker splits a line of user input into individual queries.
package chunker

import (
	"regexp"
	"strings"
)

// QueryChunker splits input on a separator and drops empty pieces.
type QueryChunker struct {
	splitter *regexp.Regexp
}

// NewQueryChunker returns a chunker that splits on semicolons.
func NewQueryChunker() *QueryChunker {
	return &QueryChunker{splitter: regexp.MustCompile(`\s*;\s*`)}
}

// Chunk returns the trimmed, non-empty queries in input order.
func (c *QueryChunker) Chunk(input string) []string {
	parts := c.splitter.Split(input, -1)
	queries := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			queries = append(queries, p)
		}
	}
	return queries
}
