package ingestion

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// caseRow 测试用的单行案件数据，按 DefaultSchema 主命名顺序输出
type caseRow struct {
	caseID, date, offense, disposition, sentenceType, term, unit, age, race, gender, city, judge, duration string
}

func (c caseRow) cells() []string {
	return []string{c.caseID, c.caseID + "-p", c.date, c.offense, c.disposition, c.sentenceType,
		c.term, c.unit, c.age, c.race, c.gender, c.city, c.judge, c.duration}
}

func validRow(id string) caseRow {
	return caseRow{
		caseID:       id,
		date:         "3/15/2018 12:00:00 AM",
		offense:      "Narcotics",
		disposition:  "Plea Of Guilty",
		sentenceType: "Prison",
		term:         "2",
		unit:         "Year(s)",
		age:          "30",
		race:         "Black",
		gender:       "Male",
		city:         "chicago",
		judge:        "john smith",
		duration:     "100",
	}
}

func buildCSV(rows ...caseRow) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(primaryHeaders(), ","))
	sb.WriteString("\n")
	for _, r := range rows {
		sb.WriteString(strings.Join(r.cells(), ","))
		sb.WriteString("\n")
	}
	return sb.String()
}

func loadRows(t *testing.T, rows ...caseRow) *Result {
	t.Helper()
	result, err := Load(strings.NewReader(buildCSV(rows...)), LoadOptions{})
	require.NoError(t, err)
	return result
}

func TestLoad_BasicRecord(t *testing.T) {
	result := loadRows(t, validRow("c1"))

	require.Len(t, result.Records, 1)
	rec := result.Records[0]
	assert.Equal(t, "c1", rec.CaseID)
	assert.Equal(t, "c1-p", rec.ParticipantID)
	assert.Equal(t, 2018, rec.ReceivedYear())
	assert.Equal(t, "Black", rec.Race)
	assert.Equal(t, "Male", rec.Gender)
	assert.Equal(t, 30, rec.AgeAtIncident)
	assert.Equal(t, "Chicago", rec.IncidentCity)
	assert.Equal(t, "John Smith", rec.SentencingJudge)
	assert.Equal(t, 100, rec.CaseDurationDays)
	require.NotNil(t, rec.SentenceInYears)
	assert.InDelta(t, 2.0, *rec.SentenceInYears, 1e-9)
	assert.False(t, rec.IsLifeSentence())
	assert.Equal(t, 1, result.Stats.AcceptedRows)
}

func TestLoad_AgeMedianImputation(t *testing.T) {
	ages := []string{"20", "22", "24", "26", "150"}
	rows := make([]caseRow, 0, len(ages))
	for i, age := range ages {
		r := validRow(string(rune('a' + i)))
		r.age = age
		rows = append(rows, r)
	}

	result := loadRows(t, rows...)

	assert.Equal(t, 23.0, result.MedianAge)
	require.Len(t, result.Records, 5)
	assert.Equal(t, 23, result.Records[4].AgeAtIncident)
	assert.Equal(t, 1, result.Stats.ImputedAges)
}

func TestLoad_AgeBounds(t *testing.T) {
	tests := []struct {
		name     string
		age      string
		expected int
	}{
		{name: "小数年龄截断", age: "25.9", expected: 25},
		{name: "零岁无效", age: "0", expected: 30},
		{name: "负数无效", age: "-3", expected: 30},
		{name: "120岁无效", age: "120", expected: 30},
		{name: "非数字无效", age: "abc", expected: 30},
		{name: "N/A无效", age: "N/A", expected: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anchor := validRow("anchor")
			subject := validRow("subject")
			subject.age = tt.age

			result := loadRows(t, anchor, subject)
			require.Len(t, result.Records, 2)
			assert.Equal(t, tt.expected, result.Records[1].AgeAtIncident)
		})
	}
}

func TestLoad_DurationImputation(t *testing.T) {
	rows := []caseRow{validRow("a"), validRow("b"), validRow("c")}
	rows[0].duration = "10"
	rows[1].duration = "30"
	rows[2].duration = "-5"

	result := loadRows(t, rows...)

	assert.Equal(t, 20.0, result.MedianDuration)
	assert.Equal(t, 20, result.Records[2].CaseDurationDays)
	assert.Equal(t, 1, result.Stats.ImputedDurations)
}

func TestLoad_FallbackMedians(t *testing.T) {
	r := validRow("a")
	r.age = "N/A"
	r.duration = ""

	result := loadRows(t, r)

	assert.Equal(t, FallbackMedianAge, result.MedianAge)
	assert.Equal(t, FallbackMedianDuration, result.MedianDuration)
	assert.Equal(t, 30, result.Records[0].AgeAtIncident)
	assert.Equal(t, 365, result.Records[0].CaseDurationDays)
}

func TestLoad_DropsUnknownDemographics(t *testing.T) {
	unknownRace := validRow("r")
	unknownRace.race = "N/A"
	unknownGender := validRow("g")
	unknownGender.gender = "Unknown"
	emptyRace := validRow("e")
	emptyRace.race = ""

	result := loadRows(t, validRow("ok"), unknownRace, unknownGender, emptyRace)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "ok", result.Records[0].CaseID)
	assert.Equal(t, 3, result.Stats.DroppedUnknownDemographic)
	for _, rec := range result.Records {
		assert.NotEqual(t, UnknownValue, rec.Race)
		assert.NotEqual(t, UnknownValue, rec.Gender)
	}
}

func TestLoad_DropsInvalidDates(t *testing.T) {
	bad := validRow("bad")
	bad.date = "not a date"

	result := loadRows(t, validRow("ok"), bad)

	require.Len(t, result.Records, 1)
	assert.Equal(t, 1, result.Stats.DroppedInvalidDate)
	assert.Equal(t, 2, result.Stats.RawRows)
}

func TestLoad_RaceNormalization(t *testing.T) {
	r := validRow("h")
	r.race = "Hispanic-American"
	w := validRow("w")
	w.race = "white [Hispanic or Latino]"

	result := loadRows(t, r, w)

	assert.Equal(t, "Hispanic", result.Records[0].Race)
	assert.Equal(t, "Hispanic", result.Records[1].Race)
}

func TestLoad_NADefaults(t *testing.T) {
	r := validRow("na")
	r.city = "N/A"
	r.judge = ""
	r.offense = "n/a"
	r.term = "N/A"
	r.unit = "N/A"

	result := loadRows(t, r)
	rec := result.Records[0]

	assert.Equal(t, UnknownValue, rec.IncidentCity)
	assert.Equal(t, UnknownValue, rec.SentencingJudge)
	assert.Equal(t, UnknownValue, rec.OffenseCategory)
	assert.Equal(t, "", rec.CommitmentTerm)
	assert.Equal(t, "", rec.CommitmentUnit)
	assert.Nil(t, rec.SentenceInYears)
}

func TestLoad_LifeSentence(t *testing.T) {
	r := validRow("life")
	r.term = "Natural Life"

	result := loadRows(t, r)

	assert.True(t, result.Records[0].IsLifeSentence())
}

func TestLoad_AlternateHeadersWithSemicolon(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(strings.Join(alternateHeaders(), ";"))
	sb.WriteString("\n")
	sb.WriteString(strings.Join(validRow("alt").cells(), ";"))
	sb.WriteString("\n")

	result, err := Load(strings.NewReader(sb.String()), LoadOptions{})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "alt", result.Records[0].CaseID)
	assert.Equal(t, "date_received", result.Mapping.Headers[FieldReceivedDate])
}

func TestLoad_Errors(t *testing.T) {
	t.Run("空输入", func(t *testing.T) {
		_, err := Load(strings.NewReader("   \n"), LoadOptions{})
		var emptyErr *EmptyInputError
		assert.True(t, errors.As(err, &emptyErr))
	})

	t.Run("只有表头", func(t *testing.T) {
		_, err := Load(strings.NewReader(buildCSV()), LoadOptions{})
		var emptyErr *EmptyInputError
		assert.True(t, errors.As(err, &emptyErr))
	})

	t.Run("缺少必需字段", func(t *testing.T) {
		_, err := Load(strings.NewReader("CASE_ID,RACE\n1,Black\n"), LoadOptions{})
		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr))
		assert.Contains(t, schemaErr.Missing, FieldReceivedDate)
	})

	t.Run("全部行被过滤", func(t *testing.T) {
		r := validRow("x")
		r.race = "Unknown"
		_, err := Load(strings.NewReader(buildCSV(r)), LoadOptions{})
		var noValid *NoValidRecordsError
		require.True(t, errors.As(err, &noValid))
		assert.Equal(t, 1, noValid.RawRows)
	})
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		year  int
		ok    bool
	}{
		{name: "带时间的美式日期", input: "1/2/2015 3:04:05 PM", year: 2015, ok: true},
		{name: "美式日期", input: "12/31/2019", year: 2019, ok: true},
		{name: "ISO日期", input: "2021-06-01", year: 2021, ok: true},
		{name: "RFC3339", input: "2020-02-03T04:05:06Z", year: 2020, ok: true},
		{name: "空值", input: "", ok: false},
		{name: "N/A", input: "N/A", ok: false},
		{name: "无效文本", input: "yesterday", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, ok := ParseDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.year, parsed.Year())
			}
		})
	}
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 23.0, Median([]float64{26, 20, 24, 22}))
	assert.Equal(t, 5.0, Median([]float64{9, 1, 5}))
	assert.True(t, Median(nil) != Median(nil), "空集合返回 NaN")
	assert.Equal(t, 7.0, MedianOr(nil, 7))
}
