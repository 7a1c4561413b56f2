package service

import (
	"context"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saisiddhant-g/ayurnxt-backend/internal/azure"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/pdf"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/protocol"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/security"
	"github.com/saisiddhant-g/ayurnxt-backend/pkg/model"
)

// stubAdvice is a canned AdviceGenerator for report tests.
type stubAdvice struct {
	text string
	err  error

	lastSummary string
	calls       int
}

func (s *stubAdvice) GenerateGuidance(_ context.Context, summary string) (string, error) {
	s.calls++
	s.lastSummary = summary
	return s.text, s.err
}

func newTestReportService(store *memStore, blob azure.BlobStorage, advice AdviceGenerator) *ReportService {
	return NewReportService(
		store,
		protocol.NewCatalog(),
		blob,
		pdf.NewPDFGenerator(zap.NewNop()),
		advice,
		nil,
		zap.NewNop(),
	)
}

func reportWindow() (time.Time, time.Time) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 13)
}

func TestGenerateReportUploadsAndRecords(t *testing.T) {
	ctx := context.Background()
	start, end := reportWindow()
	store := newMemStore()
	store.sessions["user-1"] = []model.TherapySession{
		completedSession("s1", start.Add(24*time.Hour), 6, intPtr(4)),
		completedSession("s2", start.Add(48*time.Hour), 6, intPtr(3)),
	}
	blob := azure.NewMockBlobStorageClient(zap.NewNop())
	advice := &stubAdvice{text: "Keep up the steady schedule."}
	svc := newTestReportService(store, blob, advice)

	reportID, err := svc.GenerateReport(ctx, "user-1", "Asha", start, end)
	require.NoError(t, err)
	assert.NotEmpty(t, reportID)

	// The PDF landed in blob storage
	require.Len(t, blob.ListBlobs(), 1)

	// The record was appended and points at the uploaded blob
	records, err := svc.GetReportsByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, reportID, records[0].ID)
	assert.Equal(t, "user-1", records[0].UserID)
	assert.Equal(t, blob.ListBlobs()[0], records[0].FilePath)

	// The guidance prompt carried the aggregate summary
	assert.Equal(t, 1, advice.calls)
	assert.Contains(t, advice.lastSummary, "2 total")
	assert.Contains(t, advice.lastSummary, "compliance score 100%")
}

func TestGenerateReportFiltersDateRange(t *testing.T) {
	ctx := context.Background()
	start, end := reportWindow()
	store := newMemStore()
	store.sessions["user-1"] = []model.TherapySession{
		completedSession("before", start.Add(-24*time.Hour), 6, intPtr(4)),
		completedSession("inside", start.Add(24*time.Hour), 6, intPtr(4)),
		completedSession("after", end.Add(24*time.Hour), 6, intPtr(4)),
	}
	blob := azure.NewMockBlobStorageClient(zap.NewNop())
	advice := &stubAdvice{text: "ok"}
	svc := newTestReportService(store, blob, advice)

	_, err := svc.GenerateReport(ctx, "user-1", "Asha", start, end)
	require.NoError(t, err)

	// Only the in-range session feeds the summary
	assert.Contains(t, advice.lastSummary, "1 total")
}

func TestGenerateReportWithoutAdviceGenerator(t *testing.T) {
	ctx := context.Background()
	start, end := reportWindow()
	store := newMemStore()
	store.sessions["user-1"] = []model.TherapySession{
		completedSession("s1", start.Add(24*time.Hour), 6, intPtr(4)),
	}
	blob := azure.NewMockBlobStorageClient(zap.NewNop())
	svc := newTestReportService(store, blob, nil)

	reportID, err := svc.GenerateReport(ctx, "user-1", "Asha", start, end)
	require.NoError(t, err)
	assert.NotEmpty(t, reportID)
	assert.Len(t, blob.ListBlobs(), 1)
}

func TestGenerateReportSurvivesAdviceFailure(t *testing.T) {
	ctx := context.Background()
	start, end := reportWindow()
	store := newMemStore()
	store.sessions["user-1"] = []model.TherapySession{
		completedSession("s1", start.Add(24*time.Hour), 6, intPtr(4)),
	}
	blob := azure.NewMockBlobStorageClient(zap.NewNop())
	advice := &stubAdvice{err: errors.New("deployment overloaded")}
	svc := newTestReportService(store, blob, advice)

	reportID, err := svc.GenerateReport(ctx, "user-1", "Asha", start, end)
	require.NoError(t, err)
	assert.NotEmpty(t, reportID)
	assert.Len(t, blob.ListBlobs(), 1)
}

func TestGetReportRoundTrip(t *testing.T) {
	ctx := context.Background()
	start, end := reportWindow()
	store := newMemStore()
	store.sessions["user-1"] = []model.TherapySession{
		completedSession("s1", start.Add(24*time.Hour), 6, intPtr(4)),
	}
	blob := azure.NewMockBlobStorageClient(zap.NewNop())
	svc := newTestReportService(store, blob, nil)

	reportID, err := svc.GenerateReport(ctx, "user-1", "Asha", start, end)
	require.NoError(t, err)

	data, err := svc.GetReport(ctx, "user-1", reportID)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	// gofpdf output always begins with the PDF magic bytes
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestGetReportUnknownID(t *testing.T) {
	ctx := context.Background()
	blob := azure.NewMockBlobStorageClient(zap.NewNop())
	svc := newTestReportService(newMemStore(), blob, nil)

	_, err := svc.GetReport(ctx, "user-1", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report not found")
}

func TestReportEncryptedAtRest(t *testing.T) {
	ctx := context.Background()
	start, end := reportWindow()
	store := newMemStore()
	store.sessions["user-1"] = []model.TherapySession{
		completedSession("s1", start.Add(24*time.Hour), 6, intPtr(4)),
	}
	blob := azure.NewMockBlobStorageClient(zap.NewNop())

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	encryptor, err := security.NewEncryptor(key)
	require.NoError(t, err)

	svc := NewReportService(
		store,
		protocol.NewCatalog(),
		blob,
		pdf.NewPDFGenerator(zap.NewNop()),
		nil,
		encryptor,
		zap.NewNop(),
	)

	reportID, err := svc.GenerateReport(ctx, "user-1", "Asha", start, end)
	require.NoError(t, err)

	// The stored blob must not be a readable PDF
	blobs := blob.ListBlobs()
	require.Len(t, blobs, 1)
	stored := blob.Storage[blobs[0]]
	require.Greater(t, len(stored), 4)
	assert.NotEqual(t, "%PDF", string(stored[:4]))

	// Download transparently decrypts
	data, err := svc.GetReport(ctx, "user-1", reportID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}
