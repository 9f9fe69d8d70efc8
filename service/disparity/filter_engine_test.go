package disparity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fairness-audit-service/service/ingestion"
)

func filterFixture() []ingestion.CanonicalCase {
	return []ingestion.CanonicalCase{
		newCase("Black", withYear(2012), withPlace("Narcotics", "Chicago")),
		newCase("White", withYear(2015), withPlace("Theft", "Evanston")),
		newCase("Hispanic", withYear(2018), withPlace("Narcotics", "Evanston")),
		newCase("Asian", withYear(2021), withPlace("Battery", "Chicago")),
	}
}

func TestApplyFilter(t *testing.T) {
	records := filterFixture()

	tests := []struct {
		name     string
		spec     FilterSpec
		expected []string
	}{
		{
			name:     "年份区间",
			spec:     FilterSpec{Years: YearRange{Min: 2014, Max: 2018}},
			expected: []string{"White", "Hispanic"},
		},
		{
			name:     "罪名类别",
			spec:     FilterSpec{Years: YearRange{Min: 2010, Max: 2024}, Offense: "Narcotics", City: AllValue},
			expected: []string{"Black", "Hispanic"},
		},
		{
			name:     "城市",
			spec:     FilterSpec{Years: YearRange{Min: 2010, Max: 2024}, City: "Evanston"},
			expected: []string{"White", "Hispanic"},
		},
		{
			name:     "组合条件",
			spec:     FilterSpec{Years: YearRange{Min: 2016, Max: 2024}, Offense: "Narcotics", City: "Evanston"},
			expected: []string{"Hispanic"},
		},
		{
			name:     "无匹配",
			spec:     FilterSpec{Years: YearRange{Min: 2000, Max: 2005}},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ApplyFilter(records, tt.spec)
			assert.LessOrEqual(t, len(result), len(records))

			races := make([]string, 0, len(result))
			for _, c := range result {
				assert.True(t, tt.spec.Matches(c))
				races = append(races, c.Race)
			}
			assert.Equal(t, tt.expected, races)
		})
	}
}

func TestApplyFilter_FullExtentIsIdentity(t *testing.T) {
	records := filterFixture()

	result := ApplyFilter(records, FullExtent(records))

	assert.Equal(t, records, result)
}

func TestApplyFilter_DoesNotMutateInput(t *testing.T) {
	records := filterFixture()
	snapshot := append([]ingestion.CanonicalCase(nil), records...)

	result := ApplyFilter(records, FilterSpec{Years: YearRange{Min: 2018, Max: 2018}})
	if len(result) > 0 {
		result[0].Race = "Changed"
	}

	assert.Equal(t, snapshot, records)
}

func TestYearBounds(t *testing.T) {
	assert.Equal(t, YearRange{Min: 2012, Max: 2021}, YearBounds(filterFixture()))
	assert.Equal(t, DefaultYearRange, YearBounds(nil))
}

func TestCategories(t *testing.T) {
	options := Categories(filterFixture())

	assert.Equal(t, []string{"Battery", "Narcotics", "Theft"}, options.Offenses)
	assert.Equal(t, []string{"Chicago", "Evanston"}, options.Cities)
}

func TestFilterSpec_Resolve(t *testing.T) {
	records := filterFixture()

	resolved := FilterSpec{}.Resolve(records)
	assert.Equal(t, FullExtent(records), resolved)

	partial := FilterSpec{Years: YearRange{Min: 2015}}.Resolve(records)
	assert.Equal(t, YearRange{Min: 2015, Max: 2021}, partial.Years)
	assert.Equal(t, FullExtent(records).Key(), FilterSpec{}.Resolve(records).Key())
}
