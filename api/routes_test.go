package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairness-audit-service/api/middleware"
	"fairness-audit-service/service/alerting"
	"fairness-audit-service/service/audit"
	"fairness-audit-service/service/config"
	"fairness-audit-service/service/disparity"
	"fairness-audit-service/service/event"
	"fairness-audit-service/service/models"
	"fairness-audit-service/service/monitoring"
	"fairness-audit-service/testutil"
)

func noEnv(string) (string, bool) { return "", false }

func newTestRouter(t *testing.T, authSpec string) (http.Handler, Dependencies) {
	t.Helper()
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	thresholds := config.NewThresholdManager(tdb.DB, config.WithLookupEnv(noEnv), config.WithEnvironment("test"))
	require.NoError(t, thresholds.Load())

	events := event.NewEventService(tdb.DB)
	t.Cleanup(events.Stop)

	alerts := alerting.NewAlertManager(tdb.DB)
	metrics := monitoring.NewMetricsCollector()
	svc := audit.NewService(thresholds,
		audit.WithDB(tdb.DB),
		audit.WithDispatcher(alerts),
		audit.WithEventPublisher(events),
		audit.WithMetrics(metrics),
	)
	thresholds.AddChangeNotifier(config.ThresholdChangeFunc(func(_, _ disparity.Thresholds, _ []config.ConfigChange) {
		svc.HandleThresholdsChanged(context.Background())
	}))

	deps := Dependencies{
		Audit:      svc,
		Thresholds: thresholds,
		Alerts:     alerts,
		Events:     events,
		Metrics:    metrics,
		Auth:       middleware.NewTokenAuthMiddleware(authSpec),
	}
	r := chi.NewRouter()
	Register(r, deps)
	return r, deps
}

func upload(t *testing.T, h http.Handler, body string) {
	t.Helper()
	rec := testutil.PerformRequest(h, http.MethodPost, "/datasets/upload?name=cases.csv", strings.NewReader(body), "Content-Type", "text/csv")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

type reportData struct {
	RecordCount int `json:"record_count"`
	Metrics     struct {
		Dimension  string `json:"dimension"`
		Sentencing struct {
			Ratio   float64 `json:"ratio"`
			Flagged bool    `json:"flagged"`
		} `json:"sentencing"`
	} `json:"metrics"`
	Findings []alerting.Finding `json:"findings"`
}

func TestHealthAndReady(t *testing.T) {
	h, _ := newTestRouter(t, "")

	rec := testutil.PerformRequest(h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fairness-audit-service")

	rec = testutil.PerformRequest(h, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ready map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, false, ready["dataset_loaded"])
}

func TestEndpointsWithoutDataset(t *testing.T) {
	h, _ := newTestRouter(t, "")

	for _, path := range []string{"/disparity/report", "/datasets/current", "/datasets/current/records", "/export/records", "/assistant/summary"} {
		rec := testutil.PerformRequest(h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestUploadAndReport(t *testing.T) {
	h, _ := newTestRouter(t, "")

	rec := testutil.PerformRequest(h, http.MethodPost, "/datasets/upload?name=cases.csv&preview=1",
		strings.NewReader(testutil.DisparityCSV()), "Content-Type", "text/csv")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var uploaded struct {
		Dataset struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"dataset"`
		Output struct {
			Records []json.RawMessage `json:"records"`
			Error   *string           `json:"error"`
		} `json:"output"`
	}
	testutil.DecodeData(t, rec, &uploaded)
	assert.NotEmpty(t, uploaded.Dataset.ID)
	assert.Equal(t, "cases.csv", uploaded.Dataset.Name)
	assert.Len(t, uploaded.Output.Records, 1)
	assert.Nil(t, uploaded.Output.Error)

	rec = testutil.PerformRequest(h, http.MethodGet, "/disparity/report", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report reportData
	testutil.DecodeData(t, rec, &report)
	assert.Equal(t, 4, report.RecordCount)
	assert.Equal(t, "race", report.Metrics.Dimension)
	assert.InDelta(t, 4.0, report.Metrics.Sentencing.Ratio, 1e-9)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, alerting.RuleSentencing, report.Findings[0].Rule)
	assert.Equal(t, alerting.SeverityCritical, report.Findings[0].Severity)

	rec = testutil.PerformRequest(h, http.MethodGet, "/disparity/report?dimension=gender", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	testutil.DecodeData(t, rec, &report)
	assert.Equal(t, "gender", report.Metrics.Dimension)
	assert.Empty(t, report.Findings)

	rec = testutil.PerformRequest(h, http.MethodGet, "/disparity/report?dimension=religion", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = testutil.PerformRequest(h, http.MethodGet, "/disparity/report?year_min=2020&year_max=2010", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = testutil.PerformRequest(h, http.MethodGet, "/disparity/report?year_min=2020&year_max=2024", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	testutil.DecodeData(t, rec, &report)
	assert.Equal(t, 0, report.RecordCount)
	assert.Empty(t, report.Findings)
}

func TestUploadFailureKeepsCurrentDataset(t *testing.T) {
	h, deps := newTestRouter(t, "")
	upload(t, h, testutil.DisparityCSV())
	before := deps.Audit.Current()

	rec := testutil.PerformRequest(h, http.MethodPost, "/datasets/upload", strings.NewReader("foo,bar\n1,2\n"), "Content-Type", "text/csv")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var failed struct {
		Output struct {
			Records []json.RawMessage `json:"records"`
			Error   *string           `json:"error"`
		} `json:"output"`
	}
	testutil.DecodeData(t, rec, &failed)
	require.NotNil(t, failed.Output.Error)
	assert.NotEmpty(t, *failed.Output.Error)
	assert.Empty(t, failed.Output.Records)
	assert.Same(t, before, deps.Audit.Current())

	rec = testutil.PerformRequest(h, http.MethodGet, "/datasets/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var loads []models.DatasetLoad
	testutil.DecodeData(t, rec, &loads)
	require.Len(t, loads, 2)
	statuses := []string{loads[0].Status, loads[1].Status}
	assert.ElementsMatch(t, []string{models.LoadStatusSuccess, models.LoadStatusFailed}, statuses)
}

func TestRecordsPaginationAndCurrent(t *testing.T) {
	h, _ := newTestRouter(t, "")
	upload(t, h, testutil.DisparityCSV())

	rec := testutil.PerformRequest(h, http.MethodGet, "/datasets/current/records?page=2&size=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Records []json.RawMessage `json:"records"`
		Total   int               `json:"total"`
	}
	testutil.DecodeData(t, rec, &page)
	assert.Equal(t, 4, page.Total)
	assert.Len(t, page.Records, 1)

	rec = testutil.PerformRequest(h, http.MethodGet, "/datasets/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var current struct {
		RecordCount int `json:"record_count"`
		Bounds      struct {
			Min int `json:"min"`
			Max int `json:"max"`
		} `json:"bounds"`
	}
	testutil.DecodeData(t, rec, &current)
	assert.Equal(t, 4, current.RecordCount)
	assert.Equal(t, 2018, current.Bounds.Min)
	assert.Equal(t, 2018, current.Bounds.Max)
}

func TestIntersectionalExportAndSummary(t *testing.T) {
	h, _ := newTestRouter(t, "")
	upload(t, h, testutil.DisparityCSV())

	rec := testutil.PerformRequest(h, http.MethodGet, "/disparity/intersectional", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []disparity.IntersectionalRow
	testutil.DecodeData(t, rec, &rows)
	assert.Len(t, rows, 2)

	rec = testutil.PerformRequest(h, http.MethodGet, "/export/records", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "case_id,"))

	rec = testutil.PerformRequest(h, http.MethodGet, "/export/groups?delimiter=semicolon", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "group;count;"))
	assert.Contains(t, rec.Body.String(), "Black;2;")

	rec = testutil.PerformRequest(h, http.MethodGet, "/export/intersectional?delimiter=colon", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = testutil.PerformRequest(h, http.MethodGet, "/assistant/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "Total cases: 4")
}

func TestThresholdUpdateReaudits(t *testing.T) {
	h, _ := newTestRouter(t, "")
	upload(t, h, testutil.DisparityCSV())

	rec := testutil.PerformJSONRequest(h, http.MethodPut, "/config/thresholds", map[string]interface{}{"sentencing_ratio": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated struct {
		Version    int                  `json:"version"`
		Thresholds disparity.Thresholds `json:"thresholds"`
	}
	testutil.DecodeData(t, rec, &updated)
	assert.Equal(t, 1, updated.Version)
	assert.Equal(t, 5.0, updated.Thresholds.SentencingRatio)

	rec = testutil.PerformRequest(h, http.MethodGet, "/disparity/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report reportData
	testutil.DecodeData(t, rec, &report)
	assert.False(t, report.Metrics.Sentencing.Flagged)
	assert.Empty(t, report.Findings)

	rec = testutil.PerformJSONRequest(h, http.MethodPut, "/config/thresholds", map[string]interface{}{"unknown": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = testutil.PerformJSONRequest(h, http.MethodPut, "/config/thresholds", map[string]interface{}{"sentencing_ratio": 0.5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = testutil.PerformRequest(h, http.MethodGet, "/config/thresholds/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []config.ThresholdVersion
	testutil.DecodeData(t, rec, &history)
	assert.Len(t, history, 2)

	rec = testutil.PerformRequest(h, http.MethodGet, "/events/history?event_type="+models.EventThresholds, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Equal(t, int64(1), events.Total)
}

func TestFindingsHistory(t *testing.T) {
	h, deps := newTestRouter(t, "")
	upload(t, h, testutil.DisparityCSV())

	rec := testutil.PerformRequest(h, http.MethodGet, "/disparity/findings?dataset_id="+deps.Audit.Current().ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var findings []models.AuditFinding
	testutil.DecodeData(t, rec, &findings)
	require.Len(t, findings, 1)
	assert.Equal(t, string(alerting.RuleSentencing), findings[0].Rule)

	rec = testutil.PerformRequest(h, http.MethodGet, "/config/channels", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteEndpointsRequireToken(t *testing.T) {
	h, _ := newTestRouter(t, "ops:s3cret")

	rec := testutil.PerformRequest(h, http.MethodPost, "/datasets/upload", strings.NewReader(testutil.DisparityCSV()), "Content-Type", "text/csv")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = testutil.PerformRequest(h, http.MethodPost, "/datasets/upload", strings.NewReader(testutil.DisparityCSV()),
		"Content-Type", "text/csv", "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = testutil.PerformRequest(h, http.MethodGet, "/disparity/report", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
