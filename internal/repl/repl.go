// Package repl implements the interactive line-oriented front end.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"

	"taxrag/internal/chunker"
	"taxrag/internal/service"
)

// Prompt is printed before each input line.
const Prompt = "\nEnter your tax query (or type 'exit'): "

// Asker answers a single query.
type Asker interface {
	Run(ctx context.Context, query string) (*service.Answer, error)
}

var (
	bannerColor = color.New(color.FgCyan, color.Bold)
	queryColor  = color.New(color.FgYellow)
	answerColor = color.New(color.FgGreen)
)

type options struct {
	logger  *slog.Logger
	chunker *chunker.QueryChunker
}

// Option configures Run.
type Option func(*options)

// WithLogger sets the logger used for per-query failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Run reads queries from in until "exit" or EOF. A line may hold several
// queries separated by ';'. A failing query is logged and the loop moves on.
func Run(ctx context.Context, in io.Reader, out io.Writer, asker Asker, opts ...Option) error {
	o := options{logger: slog.Default(), chunker: chunker.NewQueryChunker()}
	for _, opt := range opts {
		opt(&o)
	}

	bannerColor.Fprintln(out, "=== Smart Tax Assistant ===")
	fmt.Fprintln(out, "You can enter multiple queries separated by ';' (semicolon).")
	fmt.Fprintln(out, "Or type 'exit' to quit.")

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, Prompt)
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if strings.EqualFold(line, "exit") {
			return nil
		}

		for i, q := range o.chunker.Chunk(line) {
			queryColor.Fprintf(out, "\n--- Query %d ---\n", i+1)
			a, err := asker.Run(ctx, q)
			if err != nil {
				o.logger.Error("Error processing query", "query", q, "error", err)
				continue
			}
			answerColor.Fprintln(out, "\n--- Assistant Response ---")
			fmt.Fprintln(out, a.Text())
		}
	}
}
