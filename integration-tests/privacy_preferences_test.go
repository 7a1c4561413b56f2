package integration_tests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPreferencesIntegration round-trips user preferences over HTTP
func TestPreferencesIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := setupTestDatabase(t, ctx)
	defer cleanup()

	backend := buildTestBackend(t, db, testDurationScale)
	userID := uuid.New().String()

	t.Log("Defaults before anything is saved")
	code, body := getJSON(t, backend.router, "/api/v1/users/"+userID+"/preferences")
	require.Equal(t, 200, code)
	assert.Equal(t, false, body["dark_mode"])

	t.Log("Saving preferences")
	code, body = putJSON(t, backend.router, "/api/v1/users/"+userID+"/preferences", map[string]any{
		"dark_mode":      true,
		"reminder_hours": []int{9, 21},
		"locale":         "en-IN",
	})
	require.Equal(t, 200, code)

	code, body = getJSON(t, backend.router, "/api/v1/users/"+userID+"/preferences")
	require.Equal(t, 200, code)
	assert.Equal(t, true, body["dark_mode"])
	assert.Equal(t, "en-IN", body["locale"])
}

// TestPrivacyIntegration exercises data export and the right to be forgotten
func TestPrivacyIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := setupTestDatabase(t, ctx)
	defer cleanup()

	backend := buildTestBackend(t, db, testDurationScale)
	userID := uuid.New().String()

	seeded := seedSession(t, backend, userID, time.Now().UTC().AddDate(0, 0, -1), 7, 4)
	code, _ := putJSON(t, backend.router, "/api/v1/users/"+userID+"/preferences", map[string]any{
		"dark_mode": true,
	})
	require.Equal(t, 200, code)

	// A stored report so erasure has a blob to clean up
	code, _ = postJSON(t, backend.router, "/api/v1/reports/generate", map[string]any{
		"user_id":    userID,
		"start_date": time.Now().UTC().AddDate(0, 0, -7).Format("2006-01-02"),
		"end_date":   time.Now().UTC().Format("2006-01-02"),
	})
	require.Equal(t, 200, code)
	require.Len(t, backend.blob.ListBlobs(), 1)

	t.Run("Export contains everything stored", func(t *testing.T) {
		rec := getRaw(t, backend.router, "/api/v1/users/"+userID+"/export")
		require.Equal(t, 200, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

		var export struct {
			Sessions []struct {
				ID string `json:"id"`
			} `json:"sessions"`
			Preferences struct {
				DarkMode bool `json:"dark_mode"`
			} `json:"preferences"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &export))
		require.Len(t, export.Sessions, 1)
		assert.Equal(t, seeded.ID, export.Sessions[0].ID)
		assert.True(t, export.Preferences.DarkMode)
	})

	t.Run("Deletion erases the user", func(t *testing.T) {
		code, body := deleteJSON(t, backend.router, "/api/v1/users/"+userID+"/data")
		require.Equal(t, 200, code)
		assert.Equal(t, userID, body["user_id"])

		code, body = getJSON(t, backend.router, "/api/v1/compliance/"+userID+"/metrics")
		require.Equal(t, 200, code)
		assert.Equal(t, float64(0), body["total_sessions"], "History should be gone")

		code, body = getJSON(t, backend.router, "/api/v1/users/"+userID+"/preferences")
		require.Equal(t, 200, code)
		assert.Equal(t, false, body["dark_mode"], "Preferences should be back to defaults")

		code, body = getJSON(t, backend.router, "/api/v1/therapy/status/"+userID)
		require.Equal(t, 200, code)
		assert.Equal(t, "IDLE", body["phase"], "No workflow should survive the wipe")

		assert.Empty(t, backend.blob.ListBlobs(), "Report blobs should be gone")
	})
}
