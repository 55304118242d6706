package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_NonListedLastYear(t *testing.T) {
	s := Extract("I sold 6% shares of a non-listed company last year")

	require.NotNil(t, s.SharePercentage)
	assert.Equal(t, 6, *s.SharePercentage)
	assert.Equal(t, CompanyNonListed, s.CompanyType)
	assert.Equal(t, AssetUnlistedStock, s.AssetType)
	assert.Equal(t, Unknown, s.HoldingPeriod)
	assert.Equal(t, YearPrevious, s.TransactionYear)
	assert.Equal(t, Unknown, s.Country)
}

func TestExtract_AmbiguousInputLeavesDefaults(t *testing.T) {
	s := Extract("I sold some shares")

	assert.Equal(t, Empty(), s)
	assert.Nil(t, s.SharePercentage)
}

func TestExtract_SharePercentage(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"sold 5% of it", 5},
		{"about 12 % stake", 12},
		{"0% left", 0},
		{"first 3% then 40%", 3},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			s := Extract(tt.text)
			require.NotNil(t, s.SharePercentage)
			assert.Equal(t, tt.want, *s.SharePercentage)
		})
	}
}

func TestExtract_PercentageOverflowIsIgnored(t *testing.T) {
	s := Extract("99999999999999999999999% of shares")
	assert.Nil(t, s.SharePercentage)
}

func TestExtract_ClassificationPrecedence(t *testing.T) {
	tests := []struct {
		text        string
		wantCompany CompanyType
		wantAsset   string
	}{
		{"a non-listed company", CompanyNonListed, AssetUnlistedStock},
		{"a NON LISTED company", CompanyNonListed, AssetUnlistedStock},
		{"a nonlisted company", CompanyNonListed, AssetUnlistedStock},
		{"non-listed and listed shares", CompanyNonListed, AssetUnlistedStock},
		{"a listed company", CompanyListed, AssetListedStock},
		{"listed SME shares", CompanyListed, AssetListedStock},
		{"10% SME shares", CompanySME, AssetSMEShares},
		{"I inherited shares", CompanyUnknown, AssetInheritance},
		{"I gifted 3% stock", CompanyUnknown, AssetGiftedShares},
		{"a gift from my aunt", CompanyUnknown, AssetGiftedShares},
		{"my smear campaign", CompanyUnknown, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			s := Extract(tt.text)
			assert.Equal(t, tt.wantCompany, s.CompanyType)
			assert.Equal(t, tt.wantAsset, s.AssetType)
		})
	}
}

func TestClassificationRules_Order(t *testing.T) {
	rules := ClassificationRules()
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"non-listed", "listed", "sme", "inherited", "gifted"}, names)

	// Every input matching the non-listed rule also matches listed; order is what decides.
	assert.True(t, rules[1].Pattern.MatchString("non-listed"))

	rules[0] = ClassificationRule{}
	assert.Equal(t, "non-listed", ClassificationRules()[0].Name)
}

func TestExtract_CustomClassificationRules(t *testing.T) {
	rules := ClassificationRules()
	rules[0], rules[1] = rules[1], rules[0]
	e := NewExtractor(WithClassificationRules(rules))

	s := e.Extract("non-listed company")
	assert.Equal(t, CompanyListed, s.CompanyType)
}

func TestExtract_HoldingPeriod(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"held for 3 years", "3 years"},
		{"held for 1 year", "1 year"},
		{"held 18 months", "18 months"},
		{"held 2years", "2years"},
		{"held less than 2 Years", "2 Years"},
		{"held for a while", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text).HoldingPeriod)
		})
	}
}

func TestExtract_TransactionYear(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"I sold 10% SME shares in 2022 in Korea.", "2022"},
		{"sold last year", YearPrevious},
		{"sold This Year", YearCurrent},
		{"sold in 2021 not last year", "2021"},
		{"sold 2021 shares", Unknown},
		{"sold within 2020", "2020"},
		{"sold in 20221 units", "2022"},
		{"sold in  2021", Unknown},
		{"sold at least year", YearPrevious},
		{"sold shares", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text).TransactionYear)
		})
	}
}

func TestExtract_CountryVerbatim(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"shares in Korea", "Korea"},
		{"shares in south korea", "south korea"},
		{"a United States firm", "United States"},
		{"USA and Japan", "USA"},
		{"in Koreatown", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text).Country)
		})
	}
}

func TestSlots_Fields(t *testing.T) {
	s := Extract("I sold 6% shares of a non-listed company last year")
	fields := s.Fields()
	require.Len(t, fields, 6)
	assert.Equal(t, Field{Name: "share_percentage", Value: "6"}, fields[0])
	assert.Equal(t, Field{Name: "transaction_year", Value: YearPrevious}, fields[4])

	assert.Equal(t, Unknown, Empty().Fields()[0].Value)
}
