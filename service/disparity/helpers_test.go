package disparity

import (
	"time"

	"fairness-audit-service/service/ingestion"
)

func years(v float64) *float64 {
	return &v
}

type caseOpt func(*ingestion.CanonicalCase)

func withSentence(v float64) caseOpt {
	return func(c *ingestion.CanonicalCase) { c.SentenceInYears = years(v) }
}

func withDisposition(d string) caseOpt {
	return func(c *ingestion.CanonicalCase) { c.ChargeDisposition = d }
}

func withDuration(days int) caseOpt {
	return func(c *ingestion.CanonicalCase) { c.CaseDurationDays = days }
}

func withYear(year int) caseOpt {
	return func(c *ingestion.CanonicalCase) { c.ReceivedDate = time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC) }
}

func withAge(age int) caseOpt {
	return func(c *ingestion.CanonicalCase) { c.AgeAtIncident = age }
}

func withGender(g string) caseOpt {
	return func(c *ingestion.CanonicalCase) { c.Gender = g }
}

func withPlace(offense, city string) caseOpt {
	return func(c *ingestion.CanonicalCase) {
		c.OffenseCategory = offense
		c.IncidentCity = city
	}
}

func newCase(race string, opts ...caseOpt) ingestion.CanonicalCase {
	c := ingestion.CanonicalCase{
		CaseID:            race,
		ReceivedDate:      time.Date(2018, 3, 15, 0, 0, 0, 0, time.UTC),
		Race:              race,
		Gender:            "Male",
		AgeAtIncident:     30,
		OffenseCategory:   "Narcotics",
		ChargeDisposition: "Plea Of Guilty",
		SentenceType:      "Prison",
		IncidentCity:      "Chicago",
		SentencingJudge:   "Unknown",
		CaseDurationDays:  100,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
