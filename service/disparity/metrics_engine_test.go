package disparity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairness-audit-service/service/ingestion"
)

func TestCompute_SentencingRatio(t *testing.T) {
	records := []ingestion.CanonicalCase{
		newCase("Black", withSentence(3)),
		newCase("Black", withSentence(5)),
		newCase("White", withSentence(1)),
		newCase("White", withSentence(1)),
	}

	m := Compute(records, DimensionRace, DefaultThresholds())

	assert.InDelta(t, 4.0, m.Sentencing.Ratio, 1e-9)
	assert.True(t, m.Sentencing.Flagged)
	assert.Equal(t, "Black", m.Sentencing.MaxGroup)
	assert.Equal(t, "White", m.Sentencing.MinGroup)
	assert.False(t, m.Representation.Flagged)
	assert.False(t, m.Disposition.Flagged)
	assert.False(t, m.Duration.Flagged)
	assert.Equal(t, 0.0, m.Scores.Sentencing)
	assert.Equal(t, 75.0, m.Scores.Composite)
}

func TestCompute_SingleGroup(t *testing.T) {
	records := []ingestion.CanonicalCase{
		newCase("Black", withSentence(3)),
		newCase("Black", withSentence(10), withDisposition("Nolle Prosecution")),
	}

	m := Compute(records, DimensionRace, DefaultThresholds())

	assert.Equal(t, 1.0, m.Sentencing.Ratio)
	assert.False(t, m.Sentencing.Flagged)
	assert.Equal(t, 0.0, m.Disposition.Spread)
	assert.Equal(t, 0.0, m.Duration.Spread)
	assert.False(t, m.Representation.Flagged)
	assert.Equal(t, 100.0, m.Scores.Composite)
}

func TestCompute_EmptySet(t *testing.T) {
	m := Compute(nil, "", DefaultThresholds())

	assert.Equal(t, DimensionRace, m.Dimension)
	assert.Empty(t, m.Groups)
	assert.Equal(t, 1.0, m.Sentencing.Ratio)
	assert.Equal(t, 100.0, m.Scores.Composite)
	assert.False(t, math.IsNaN(m.Scores.Composite))
}

func TestCompute_SentencingExcludesLifeAndUnknown(t *testing.T) {
	records := []ingestion.CanonicalCase{
		newCase("Black", withSentence(2)),
		newCase("Black", withSentence(ingestion.LifeSentenceSentinel)),
		newCase("White", withSentence(2)),
		newCase("White"),
	}

	m := Compute(records, DimensionRace, DefaultThresholds())

	black, ok := m.Group("Black")
	require.True(t, ok)
	assert.Equal(t, 2.0, black.MeanSentenceYears)
	assert.Equal(t, 1, black.LifeSentences)
	assert.Equal(t, 1, black.SentencedCount)
	assert.Equal(t, 1.0, m.Sentencing.Ratio)
}

func TestCompute_ZeroMeanGroupsIgnoredInRatio(t *testing.T) {
	records := []ingestion.CanonicalCase{
		newCase("Black", withSentence(0)),
		newCase("White", withSentence(2)),
	}

	m := Compute(records, DimensionRace, DefaultThresholds())

	assert.Equal(t, 1.0, m.Sentencing.Ratio)
	assert.False(t, math.IsInf(m.Sentencing.Ratio, 0))
}

func TestCompute_Representation(t *testing.T) {
	var records []ingestion.CanonicalCase
	for i := 0; i < 7; i++ {
		records = append(records, newCase("Black"))
	}
	for i := 0; i < 3; i++ {
		records = append(records, newCase("White"))
	}

	m := Compute(records, DimensionRace, DefaultThresholds())

	assert.InDelta(t, 70.0, m.Groups[0].SharePct, 1e-9)
	assert.True(t, m.Representation.Flagged)
	assert.Equal(t, []string{"Black"}, m.Representation.OutOfBand)
	assert.InDelta(t, 10.0, m.Representation.DeviationPP, 1e-9)
	assert.Equal(t, 60.0, m.Representation.Bound)
	assert.InDelta(t, 80.0, m.Scores.Representation, 1e-9)
}

func TestCompute_RepresentationBelowBand(t *testing.T) {
	var records []ingestion.CanonicalCase
	for i := 0; i < 11; i++ {
		records = append(records, newCase("Black"))
	}
	for i := 0; i < 8; i++ {
		records = append(records, newCase("White"))
	}
	records = append(records, newCase("Asian"))

	m := Compute(records, DimensionRace, DefaultThresholds())

	assert.Equal(t, []string{"Asian"}, m.Representation.OutOfBand)
	assert.InDelta(t, 5.0, m.Representation.DeviationPP, 1e-9)
	assert.Equal(t, 10.0, m.Representation.Bound)
}

func TestCompute_DispositionAndDuration(t *testing.T) {
	records := []ingestion.CanonicalCase{
		newCase("Black", withDisposition("Plea Of Guilty"), withDuration(300)),
		newCase("Black", withDisposition("Finding Guilty"), withDuration(300)),
		newCase("White", withDisposition("FINDING NOT GUILTY"), withDuration(100)),
		newCase("White", withDisposition("Nolle Prosecution"), withDuration(100)),
	}

	m := Compute(records, DimensionRace, DefaultThresholds())

	black, _ := m.Group("Black")
	white, _ := m.Group("White")
	assert.Equal(t, 100.0, black.OutcomeRatePct)
	assert.Equal(t, 0.0, white.OutcomeRatePct)
	assert.Equal(t, 50.0, white.DismissalRatePct)

	assert.Equal(t, 100.0, m.Disposition.Spread)
	assert.True(t, m.Disposition.Flagged)
	assert.Equal(t, 0.0, m.Scores.Disposition)

	assert.Equal(t, 200.0, m.Duration.Spread)
	assert.True(t, m.Duration.Flagged)
	assert.InDelta(t, 100-200.0/3, m.Scores.Duration, 1e-9)
}

func TestCompute_CustomOutcomeKeywords(t *testing.T) {
	records := []ingestion.CanonicalCase{
		newCase("Black", withDisposition("Nolle Prosecution")),
		newCase("White", withDisposition("Plea Of Guilty")),
	}

	m := Compute(records, DimensionRace, DefaultThresholds(), WithOutcomeKeywords("Nolle"), WithExclusionKeywords())

	black, _ := m.Group("Black")
	white, _ := m.Group("White")
	assert.Equal(t, 100.0, black.OutcomeRatePct)
	assert.Equal(t, 0.0, white.OutcomeRatePct)
}

func TestCompute_Dimensions(t *testing.T) {
	records := []ingestion.CanonicalCase{
		newCase("Black", withAge(19), withGender("Female")),
		newCase("White", withAge(33)),
		newCase("White", withAge(41)),
	}

	t.Run("性别", func(t *testing.T) {
		m := Compute(records, DimensionGender, DefaultThresholds())
		require.Len(t, m.Groups, 2)
		assert.Equal(t, "Male", m.Groups[0].Group)
	})

	t.Run("年龄段", func(t *testing.T) {
		m := Compute(records, DimensionAgeGroup, DefaultThresholds())
		names := []string{}
		for _, g := range m.Groups {
			names = append(names, g.Group)
		}
		assert.ElementsMatch(t, []string{AgeGroupUnder25, AgeGroup25To40, AgeGroupOver40}, names)
	})

	t.Run("交叉维度", func(t *testing.T) {
		m := Compute(records, DimensionIntersection, DefaultThresholds())
		_, ok := m.Group("Black / Female / <25")
		assert.True(t, ok)
	})
}

func TestAgeGroup(t *testing.T) {
	assert.Equal(t, AgeGroupUnder25, AgeGroup(24))
	assert.Equal(t, AgeGroup25To40, AgeGroup(25))
	assert.Equal(t, AgeGroup25To40, AgeGroup(40))
	assert.Equal(t, AgeGroupOver40, AgeGroup(41))
}

func TestParseDimension(t *testing.T) {
	d, err := ParseDimension("")
	require.NoError(t, err)
	assert.Equal(t, DimensionRace, d)

	d, err = ParseDimension(" Age_Group ")
	require.NoError(t, err)
	assert.Equal(t, DimensionAgeGroup, d)

	_, err = ParseDimension("judge")
	assert.Error(t, err)
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())

	bad := DefaultThresholds()
	bad.RepresentationMinPct = 70
	bad.SentencingRatio = 0.5
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sentencing_ratio")
}

func TestComputeIntersectional(t *testing.T) {
	records := []ingestion.CanonicalCase{
		newCase("White", withAge(45), withSentence(2), withDuration(50)),
		newCase("Black", withAge(30), withSentence(4), withDuration(200)),
		newCase("Black", withAge(20), withDisposition("Nolle Prosecution")),
		newCase("Black", withAge(22), withSentence(ingestion.LifeSentenceSentinel)),
		newCase("Black", withAge(35), withSentence(2), withDuration(100)),
	}

	rows := ComputeIntersectional(records)

	require.Len(t, rows, 3)
	assert.Equal(t, IntersectionalRow{Race: "Black", Gender: "Male", AgeGroup: AgeGroupUnder25, Count: 2,
		OutcomeRatePct: 50, MeanSentenceYears: 0, MeanDurationDays: 100}, rows[0])
	assert.Equal(t, "25-40", rows[1].AgeGroup)
	assert.Equal(t, 3.0, rows[1].MeanSentenceYears)
	assert.Equal(t, 150.0, rows[1].MeanDurationDays)
	assert.Equal(t, "White", rows[2].Race)
}
