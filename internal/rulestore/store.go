// Package rulestore loads the precomputed knowledge base: rule metadata plus
// one embedding vector per rule, stored in parallel files.
package rulestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"taxrag/internal/domain"
)

// ErrNotFound is returned when the vector or metadata file does not exist.
// It matches os.ErrNotExist as well.
var ErrNotFound = errors.New("rulestore: file not found")

// Store is an immutable, loaded-once collection of rules and their vectors.
// Vectors and rules are aligned by index; when their counts differ only the
// first Len() entries are addressable.
type Store struct {
	vectors   [][]float64
	rules     []domain.Rule
	dimension int
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *loadOptions) {
		o.logger = logger
	}
}

// Load reads the vector file and the metadata file. A count mismatch between
// the two is logged as a warning and the store is still returned.
func Load(vectorPath, metadataPath string, opts ...Option) (*Store, error) {
	o := loadOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	vf, err := open(vectorPath)
	if err != nil {
		o.logger.Error("Cannot open embeddings file", "path", vectorPath, "error", err)
		return nil, err
	}
	defer vf.Close()
	info, err := vf.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat vectors %s: %w", vectorPath, err)
	}
	vectors, err := decodeVectors(vf, FormatFor(vectorPath), info.Size())
	if err != nil {
		return nil, fmt.Errorf("load vectors %s: %w", vectorPath, err)
	}
	o.logger.Info("Loaded embeddings", "path", vectorPath, "rows", len(vectors))

	mf, err := open(metadataPath)
	if err != nil {
		o.logger.Error("Cannot open metadata file", "path", metadataPath, "error", err)
		return nil, err
	}
	defer mf.Close()
	var rules []domain.Rule
	if err := json.NewDecoder(mf).Decode(&rules); err != nil {
		return nil, fmt.Errorf("load metadata %s: %w", metadataPath, err)
	}
	o.logger.Info("Loaded metadata", "path", metadataPath, "rules", len(rules))

	s := New(vectors, rules)
	if len(vectors) != len(rules) {
		o.logger.Warn("Embeddings length does not match metadata length",
			"embeddings", len(vectors), "metadata", len(rules), "usable", s.Len())
	}
	return s, nil
}

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return f, err
}

// New builds a store from in-memory data. The slices are not copied and must
// not be modified afterwards.
func New(vectors [][]float64, rules []domain.Rule) *Store {
	s := &Store{vectors: vectors, rules: rules}
	if len(vectors) > 0 {
		s.dimension = len(vectors[0])
	}
	return s
}

// Len returns the number of addressable entries: the shorter of the vector
// and metadata collections.
func (s *Store) Len() int {
	return min(len(s.vectors), len(s.rules))
}

// Dimension returns the vector length, or 0 for an empty store.
func (s *Store) Dimension() int { return s.dimension }

// Vector returns the i-th vector. It panics if i is out of [0, Len()).
func (s *Store) Vector(i int) []float64 {
	s.check(i)
	return s.vectors[i]
}

// Rule returns the i-th rule. It panics if i is out of [0, Len()).
func (s *Store) Rule(i int) domain.Rule {
	s.check(i)
	return s.rules[i]
}

// Rules returns the addressable rules in store order.
func (s *Store) Rules() []domain.Rule {
	return append([]domain.Rule(nil), s.rules[:s.Len()]...)
}

func (s *Store) check(i int) {
	if i < 0 || i >= s.Len() {
		panic(fmt.Sprintf("rulestore: index %d out of range [0, %d)", i, s.Len()))
	}
}

// Save writes vectors and rules to their files, creating directories as
// needed. The vector format follows the vector file extension.
func Save(vectorPath, metadataPath string, vectors [][]float64, rules []domain.Rule) error {
	if err := writeFile(vectorPath, func(f *os.File) error {
		return encodeVectors(f, FormatFor(vectorPath), vectors)
	}); err != nil {
		return fmt.Errorf("save vectors: %w", err)
	}
	if rules == nil {
		rules = []domain.Rule{}
	}
	if err := writeFile(metadataPath, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(rules)
	}); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
