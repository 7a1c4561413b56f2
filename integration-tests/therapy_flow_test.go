package integration_tests

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDurationScale compresses a 30 minute session into 3 seconds so the
// full workflow can run inside a test.
const testDurationScale = 600

// TestTherapyFlowIntegration drives the complete supervised therapy workflow
// end to end over HTTP: scan, setup, live session, sensation check, pain
// logging and the compliance review loop.
func TestTherapyFlowIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := setupTestDatabase(t, ctx)
	defer cleanup()

	backend := buildTestBackend(t, db, testDurationScale)
	userID := uuid.New().String()

	t.Run("Complete therapy session", func(t *testing.T) {
		t.Log("Step 1: Begin plaster scan")
		code, body := postJSON(t, backend.router, "/api/v1/therapy/scan/begin", map[string]any{
			"user_id": userID,
		})
		require.Equal(t, 200, code)
		assert.Equal(t, "QR_SCAN", body["phase"])

		t.Log("Step 2: Complete scan without a plaster id, one is generated")
		code, body = postJSON(t, backend.router, "/api/v1/therapy/scan/complete", map[string]any{
			"user_id": userID,
		})
		require.Equal(t, 200, code)
		assert.Equal(t, "SETUP", body["phase"])
		plasterID, _ := body["plaster_id"].(string)
		require.NotEmpty(t, plasterID, "Generated plaster id should not be empty")
		assert.Regexp(t, `^AYR-[0-9A-Z]+-[0-9A-Z]{4}$`, plasterID)

		t.Log("Step 3: Configure the session")
		code, body = postJSON(t, backend.router, "/api/v1/therapy/setup", map[string]any{
			"user_id":     userID,
			"body_area":   "knee",
			"condition":   "EXTERNAL_PAIN",
			"mode":        "MILD_PAIN",
			"pain_before": 6,
		})
		require.Equal(t, 200, code)
		assert.Equal(t, "SETUP", body["phase"])

		t.Log("Step 4: Start the live session")
		code, body = postJSON(t, backend.router, "/api/v1/therapy/start", map[string]any{
			"user_id": userID,
		})
		require.Equal(t, 200, code)
		assert.Equal(t, "LIVE_SESSION", body["phase"])
		remaining, _ := body["remaining_seconds"].(float64)
		assert.InDelta(t, 3, remaining, 1, "30 minutes at scale 600 is 3 seconds")

		t.Log("Step 5: Wait past the halfway mark, sensation check becomes due")
		time.Sleep(1700 * time.Millisecond)
		code, body = postJSON(t, backend.router, "/api/v1/therapy/tick", map[string]any{
			"user_id": userID,
		})
		require.Equal(t, 200, code)
		assert.Equal(t, "LIVE_SESSION", body["phase"])
		assert.Equal(t, true, body["sensation_check_due"])

		t.Log("Step 6: Answer the sensation check")
		code, body = postJSON(t, backend.router, "/api/v1/therapy/sensation", map[string]any{
			"user_id": userID,
			"level":   "MILD_WARMTH",
		})
		require.Equal(t, 200, code)
		assert.Equal(t, true, body["sensation_checked"])

		t.Log("Step 7: Let the timer run out")
		time.Sleep(1700 * time.Millisecond)
		code, body = postJSON(t, backend.router, "/api/v1/therapy/tick", map[string]any{
			"user_id": userID,
		})
		require.Equal(t, 200, code)
		assert.Equal(t, "SESSION_END", body["phase"])

		t.Log("Step 8: Acknowledge the end screen")
		code, body = postJSON(t, backend.router, "/api/v1/therapy/acknowledge-end", map[string]any{
			"user_id": userID,
		})
		require.Equal(t, 200, code)
		assert.Equal(t, "PAIN_LOGGING", body["phase"])

		t.Log("Step 9: Log post-session pain")
		code, body = postJSON(t, backend.router, "/api/v1/therapy/pain-log", map[string]any{
			"user_id":    userID,
			"pain_after": 3,
			"notes":      "Felt much better afterwards",
		})
		require.Equal(t, 200, code)
		assert.Equal(t, "COMPLETED", body["status"])
		assert.Equal(t, plasterID, body["plaster_id"])

		t.Log("Step 10: Review compliance")
		code, body = getJSON(t, backend.router, "/api/v1/compliance/"+userID+"/overview")
		require.Equal(t, 200, code)
		metrics, ok := body["metrics"].(map[string]any)
		require.True(t, ok, "Overview should contain metrics")
		assert.Equal(t, float64(1), metrics["total_sessions"])
		assert.Equal(t, float64(1), metrics["completed_sessions"])
		assert.Equal(t, true, body["in_cooldown"], "A just-finished session leaves the mode in cooldown")
	})

	t.Run("Cooldown blocks an immediate repeat session", func(t *testing.T) {
		code, body := postJSON(t, backend.router, "/api/v1/therapy/new-session", map[string]any{
			"user_id": userID,
		})
		require.Equal(t, 200, code)
		assert.Equal(t, "QR_SCAN", body["phase"])

		code, _ = postJSON(t, backend.router, "/api/v1/therapy/scan/complete", map[string]any{
			"user_id": userID,
		})
		require.Equal(t, 200, code)

		code, body = postJSON(t, backend.router, "/api/v1/therapy/setup", map[string]any{
			"user_id":     userID,
			"body_area":   "knee",
			"condition":   "EXTERNAL_PAIN",
			"mode":        "MILD_PAIN",
			"pain_before": 5,
		})
		require.Equal(t, 409, code)
		assert.Equal(t, "COOLDOWN_ACTIVE", body["code"])
		assert.Contains(t, body["message"], "Cooldown period active")
	})
}

// TestTherapyFlowEarlyTermination verifies that reporting strong discomfort
// during the sensation check ends the session immediately.
func TestTherapyFlowEarlyTermination(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := setupTestDatabase(t, ctx)
	defer cleanup()

	backend := buildTestBackend(t, db, testDurationScale)
	userID := uuid.New().String()

	startLiveSession(t, backend, userID, "MODERATE_PAIN", "INTERNAL_PAIN")

	// 45 minutes at scale 600 is 4.5 seconds; halfway is 2.25s
	time.Sleep(2400 * time.Millisecond)
	code, body := postJSON(t, backend.router, "/api/v1/therapy/tick", map[string]any{
		"user_id": userID,
	})
	require.Equal(t, 200, code)
	require.Equal(t, true, body["sensation_check_due"])

	code, body = postJSON(t, backend.router, "/api/v1/therapy/sensation", map[string]any{
		"user_id": userID,
		"level":   "STRONG_DISCOMFORT",
	})
	require.Equal(t, 200, code)
	assert.Equal(t, "SESSION_END", body["phase"], "Strong discomfort ends the session at once")

	code, _ = postJSON(t, backend.router, "/api/v1/therapy/acknowledge-end", map[string]any{
		"user_id": userID,
	})
	require.Equal(t, 200, code)

	code, body = postJSON(t, backend.router, "/api/v1/therapy/pain-log", map[string]any{
		"user_id": userID,
	})
	require.Equal(t, 200, code)
	assert.Equal(t, "TERMINATED_EARLY", body["status"])
	assert.Equal(t, "Strong discomfort reported during sensation check", body["termination_reason"])
}

// TestTherapyFlowUnsupportedCondition verifies the safety refusal
func TestTherapyFlowUnsupportedCondition(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := setupTestDatabase(t, ctx)
	defer cleanup()

	backend := buildTestBackend(t, db, testDurationScale)
	userID := uuid.New().String()

	code, _ := postJSON(t, backend.router, "/api/v1/therapy/scan/begin", map[string]any{
		"user_id": userID,
	})
	require.Equal(t, 200, code)
	code, _ = postJSON(t, backend.router, "/api/v1/therapy/scan/complete", map[string]any{
		"user_id": userID,
	})
	require.Equal(t, 200, code)

	code, body := postJSON(t, backend.router, "/api/v1/therapy/setup", map[string]any{
		"user_id":     userID,
		"body_area":   "lower_back",
		"condition":   "NOT_SUPPORTED",
		"mode":        "MILD_PAIN",
		"pain_before": 7,
	})
	require.Equal(t, 422, code)
	assert.Equal(t, "UNSUPPORTED_CONDITION", body["code"])
	assert.Contains(t, body["message"], "SAFETY NOTICE")

	// The flow stays where it was
	code, body = getJSON(t, backend.router, "/api/v1/therapy/status/"+userID)
	require.Equal(t, 200, code)
	assert.Equal(t, "SETUP", body["phase"])
}

// TestTherapyFlowSurvivesRestart verifies that a live session persisted to
// the database is restored by a freshly built backend.
func TestTherapyFlowSurvivesRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := setupTestDatabase(t, ctx)
	defer cleanup()

	backend := buildTestBackend(t, db, testDurationScale)
	userID := uuid.New().String()

	startLiveSession(t, backend, userID, "MILD_PAIN", "EXTERNAL_PAIN")

	// Simulate a process restart: a new backend over the same database
	restarted := buildTestBackend(t, db, testDurationScale)

	code, body := getJSON(t, restarted.router, "/api/v1/therapy/status/"+userID)
	require.Equal(t, 200, code)
	assert.Equal(t, "LIVE_SESSION", body["phase"], "Live session should be restored from the snapshot")
	remaining, _ := body["remaining_seconds"].(float64)
	assert.Greater(t, remaining, float64(0))
}

// startLiveSession drives a user from idle into a running live session
func startLiveSession(t *testing.T, backend *testBackend, userID, mode, condition string) {
	t.Helper()

	code, _ := postJSON(t, backend.router, "/api/v1/therapy/scan/begin", map[string]any{
		"user_id": userID,
	})
	require.Equal(t, 200, code)

	code, _ = postJSON(t, backend.router, "/api/v1/therapy/scan/complete", map[string]any{
		"user_id": userID,
	})
	require.Equal(t, 200, code)

	code, _ = postJSON(t, backend.router, "/api/v1/therapy/setup", map[string]any{
		"user_id":     userID,
		"body_area":   "shoulder",
		"condition":   condition,
		"mode":        mode,
		"pain_before": 6,
	})
	require.Equal(t, 200, code)

	code, body := postJSON(t, backend.router, "/api/v1/therapy/start", map[string]any{
		"user_id": userID,
	})
	require.Equal(t, 200, code)
	require.Equal(t, "LIVE_SESSION", body["phase"])
}
