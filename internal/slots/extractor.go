// Package slots parses free-text tax queries into a fixed set of typed fields.
package slots

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Unknown is the sentinel for a slot that was not recognized.
const Unknown = "unknown"

// CompanyType classifies the company whose shares were sold.
type CompanyType string

const (
	CompanyNonListed CompanyType = "non-listed"
	CompanyListed    CompanyType = "listed"
	CompanySME       CompanyType = "SME"
	CompanyUnknown   CompanyType = Unknown
)

// Asset type vocabulary. Values match the asset_type field of knowledge base rules.
const (
	AssetUnlistedStock = "Unlisted Stock"
	AssetListedStock   = "Listed Stock"
	AssetSMEShares     = "SME Shares"
	AssetInheritance   = "Inheritance"
	AssetGiftedShares  = "Gifted Shares"
)

// Transaction year labels for relative phrases.
const (
	YearPrevious = "previous year"
	YearCurrent  = "current year"
)

// Slots holds the fields extracted from a single query.
type Slots struct {
	SharePercentage *int        `json:"share_percentage"`
	CompanyType     CompanyType `json:"company_type"`
	AssetType       string      `json:"asset_type"`
	HoldingPeriod   string      `json:"holding_period"`
	TransactionYear string      `json:"transaction_year"`
	Country         string      `json:"country"`
}

// Empty returns a Slots value with every field at its default.
func Empty() Slots {
	return Slots{
		CompanyType:     CompanyUnknown,
		AssetType:       Unknown,
		HoldingPeriod:   Unknown,
		TransactionYear: Unknown,
		Country:         Unknown,
	}
}

// Field is a named slot value rendered as text.
type Field struct {
	Name  string
	Value string
}

// Fields returns the slots in their canonical order.
func (s Slots) Fields() []Field {
	share := Unknown
	if s.SharePercentage != nil {
		share = strconv.Itoa(*s.SharePercentage)
	}
	return []Field{
		{Name: "share_percentage", Value: share},
		{Name: "company_type", Value: string(s.CompanyType)},
		{Name: "asset_type", Value: s.AssetType},
		{Name: "holding_period", Value: s.HoldingPeriod},
		{Name: "transaction_year", Value: s.TransactionYear},
		{Name: "country", Value: s.Country},
	}
}

func (s Slots) String() string {
	parts := make([]string, 0, 6)
	for _, f := range s.Fields() {
		parts = append(parts, fmt.Sprintf("%s=%s", f.Name, f.Value))
	}
	return strings.Join(parts, " ")
}

// ClassificationRule maps a pattern to the company and asset type it implies.
// An empty CompanyType leaves the company slot untouched.
type ClassificationRule struct {
	Name        string
	Pattern     *regexp.Regexp
	CompanyType CompanyType
	AssetType   string
}

// YearRule maps a pattern to a transaction year. An empty Label means the
// first capture group is used.
type YearRule struct {
	Pattern *regexp.Regexp
	Label   string
}

var (
	percentPattern = regexp.MustCompile(`(\d+)\s*%`)

	// non-listed must precede listed: "\blist(ed)?\b" also matches inside "non-listed".
	defaultClassification = []ClassificationRule{
		{Name: "non-listed", Pattern: regexp.MustCompile(`(?i)\bnon[-\s]?listed\b`), CompanyType: CompanyNonListed, AssetType: AssetUnlistedStock},
		{Name: "listed", Pattern: regexp.MustCompile(`(?i)\blist(ed)?\b`), CompanyType: CompanyListed, AssetType: AssetListedStock},
		{Name: "sme", Pattern: regexp.MustCompile(`(?i)\bSME\b`), CompanyType: CompanySME, AssetType: AssetSMEShares},
		{Name: "inherited", Pattern: regexp.MustCompile(`(?i)\binherited\b`), AssetType: AssetInheritance},
		{Name: "gifted", Pattern: regexp.MustCompile(`(?i)\bgift(ed)?\b`), AssetType: AssetGiftedShares},
	}

	defaultHoldingPeriods = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)\s*years?`),
		regexp.MustCompile(`(?i)(\d+)\s*months?`),
		regexp.MustCompile(`(?i)less than (\d+)\s*years?`),
		regexp.MustCompile(`(?i)over (\d+)\s*years?`),
		regexp.MustCompile(`(?i)more than (\d+)\s*years?`),
	}

	defaultYears = []YearRule{
		// Unanchored: "within 2020" and "in 20221" still yield a year.
		{Pattern: regexp.MustCompile(`(?i)in (\d{4})`)},
		{Pattern: regexp.MustCompile(`(?i)last year`), Label: YearPrevious},
		{Pattern: regexp.MustCompile(`(?i)this year`), Label: YearCurrent},
	}

	defaultCountry = regexp.MustCompile(`(?i)\b(Korea|South Korea|USA|United States|Japan|China)\b`)
)

// ClassificationRules returns a copy of the default company/asset precedence
// chain in evaluation order.
func ClassificationRules() []ClassificationRule {
	return append([]ClassificationRule(nil), defaultClassification...)
}

// Extractor applies ordered pattern rules to free text.
type Extractor struct {
	classification []ClassificationRule
	holdingPeriods []*regexp.Regexp
	years          []YearRule
	country        *regexp.Regexp
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithClassificationRules replaces the company/asset precedence chain.
func WithClassificationRules(rules []ClassificationRule) Option {
	return func(e *Extractor) {
		e.classification = append([]ClassificationRule(nil), rules...)
	}
}

// NewExtractor creates an extractor with the default rule tables.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		classification: defaultClassification,
		holdingPeriods: defaultHoldingPeriods,
		years:          defaultYears,
		country:        defaultCountry,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract populates whatever slots it recognizes and leaves the rest at their
// defaults. It never fails.
func (e *Extractor) Extract(text string) Slots {
	s := Empty()

	if m := percentPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			s.SharePercentage = &n
		}
	}

	for _, rule := range e.classification {
		if !rule.Pattern.MatchString(text) {
			continue
		}
		if rule.CompanyType != "" {
			s.CompanyType = rule.CompanyType
		}
		if rule.AssetType != "" {
			s.AssetType = rule.AssetType
		}
		break
	}

	for _, p := range e.holdingPeriods {
		if m := p.FindString(text); m != "" {
			s.HoldingPeriod = m
			break
		}
	}

	for _, rule := range e.years {
		m := rule.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if rule.Label != "" {
			s.TransactionYear = rule.Label
		} else if len(m) > 1 {
			s.TransactionYear = m[1]
		}
		break
	}

	if m := e.country.FindString(text); m != "" {
		s.Country = m
	}
	return s
}

var defaultExtractor = NewExtractor()

// Extract runs the default extractor.
func Extract(text string) Slots {
	return defaultExtractor.Extract(text)
}
