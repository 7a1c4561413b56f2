package integration_tests

import (
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saisiddhant-g/ayurnxt-backend/pkg/model"
)

// seedSession stores a finished session directly, backdated so cooldowns do
// not interfere with the assertions.
func seedSession(t *testing.T, backend *testBackend, userID string, end time.Time, painBefore, painAfter int) model.TherapySession {
	t.Helper()

	after := painAfter
	session := model.TherapySession{
		ID:              uuid.New().String(),
		PlasterID:       "AYR-M8K2J5-X7Q9",
		BodyArea:        "knee",
		Mode:            model.ModeMildPain,
		Condition:       model.ConditionExternalPain,
		StartTime:       end.Add(-30 * time.Minute),
		EndTime:         end,
		DurationMinutes: 30,
		Status:          model.SessionCompleted,
		PainBefore:      painBefore,
		PainAfter:       &after,
	}
	require.NoError(t, backend.repo.AppendSession(context.Background(), userID, session))
	return session
}

// TestComplianceEndpointsIntegration exercises the compliance analytics
// endpoints over a seeded history.
func TestComplianceEndpointsIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := setupTestDatabase(t, ctx)
	defer cleanup()

	backend := buildTestBackend(t, db, testDurationScale)
	userID := uuid.New().String()

	now := time.Now().UTC()
	seedSession(t, backend, userID, now.AddDate(0, 0, -3), 7, 5)
	seedSession(t, backend, userID, now.AddDate(0, 0, -2), 6, 4)
	seedSession(t, backend, userID, now.AddDate(0, 0, -1), 5, 3)

	t.Run("Metrics", func(t *testing.T) {
		code, body := getJSON(t, backend.router, "/api/v1/compliance/"+userID+"/metrics")
		require.Equal(t, 200, code)
		assert.Equal(t, float64(3), body["total_sessions"])
		assert.Equal(t, float64(3), body["completed_sessions"])
		assert.Equal(t, float64(100), body["compliance_score"])
		assert.Equal(t, "improving", body["pain_trend"])
	})

	t.Run("Overview", func(t *testing.T) {
		code, body := getJSON(t, backend.router, "/api/v1/compliance/"+userID+"/overview")
		require.Equal(t, 200, code)
		assert.Equal(t, false, body["in_cooldown"], "Day-old sessions are past every cooldown")
		assert.Empty(t, body["consultation_notice"])
	})

	t.Run("History with since filter", func(t *testing.T) {
		code, body := getJSON(t, backend.router, "/api/v1/compliance/"+userID+"/history")
		require.Equal(t, 200, code)
		assert.Equal(t, float64(3), body["count"])

		since := now.AddDate(0, 0, -2).Add(-time.Hour).Format(time.RFC3339)
		code, body = getJSON(t, backend.router, "/api/v1/compliance/"+userID+"/history?since="+since)
		require.Equal(t, 200, code)
		assert.Equal(t, float64(2), body["count"])
	})

	t.Run("CSV export", func(t *testing.T) {
		resp := getRaw(t, backend.router, "/api/v1/compliance/"+userID+"/history/export")
		require.Equal(t, 200, resp.Code)
		assert.Equal(t, "text/csv", resp.Header().Get("Content-Type"))
		assert.Contains(t, resp.Header().Get("Content-Disposition"), "attachment")

		records, err := csv.NewReader(resp.Body).ReadAll()
		require.NoError(t, err)
		assert.Len(t, records, 4, "Header row plus three sessions")
	})

	t.Run("Empty history", func(t *testing.T) {
		code, body := getJSON(t, backend.router, "/api/v1/compliance/"+uuid.New().String()+"/metrics")
		require.Equal(t, 200, code)
		assert.Equal(t, float64(0), body["total_sessions"])
	})
}

// TestReportGenerationIntegration generates a PDF report over a seeded
// history, lists it and downloads the rendered file.
func TestReportGenerationIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := setupTestDatabase(t, ctx)
	defer cleanup()

	backend := buildTestBackend(t, db, testDurationScale)
	userID := uuid.New().String()

	now := time.Now().UTC()
	seedSession(t, backend, userID, now.AddDate(0, 0, -5), 7, 4)
	seedSession(t, backend, userID, now.AddDate(0, 0, -2), 6, 3)

	start := now.AddDate(0, 0, -7).Format("2006-01-02")
	end := now.Format("2006-01-02")

	t.Log("Generating report")
	code, body := postJSON(t, backend.router, "/api/v1/reports/generate", map[string]any{
		"user_id":    userID,
		"user_name":  "Asha Pillai",
		"start_date": start,
		"end_date":   end,
	})
	require.Equal(t, 200, code)
	reportID, _ := body["report_id"].(string)
	require.NotEmpty(t, reportID, "Response should carry the new report id")

	t.Log("PDF landed in blob storage")
	blobs := backend.blob.ListBlobs()
	require.Len(t, blobs, 1)

	t.Log("Listing reports")
	rec := getRaw(t, backend.router, "/api/v1/reports/"+userID)
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), reportID)

	t.Log("Downloading the report")
	rec = getRaw(t, backend.router, "/api/v1/reports/"+userID+"/"+reportID+"/download")
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Greater(t, rec.Body.Len(), 4)
	assert.Equal(t, "%PDF", rec.Body.String()[:4], "Download should be a PDF file")

	t.Log("Unknown report id is a clean failure")
	rec = getRaw(t, backend.router, "/api/v1/reports/"+userID+"/"+uuid.New().String()+"/download")
	assert.NotEqual(t, 200, rec.Code)
}
