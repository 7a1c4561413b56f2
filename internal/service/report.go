package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saisiddhant-g/ayurnxt-backend/internal/azure"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/pdf"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/protocol"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/repository"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/security"
	"github.com/saisiddhant-g/ayurnxt-backend/pkg/model"
)

// ReportStore is the persistence surface report generation needs.
type ReportStore interface {
	GetSessions(ctx context.Context, userID string) ([]model.TherapySession, error)
	GetReports(ctx context.Context, userID string) ([]model.Report, error)
	AppendReport(ctx context.Context, userID string, record model.Report) error
}

var _ ReportStore = (*repository.SessionRepository)(nil)

// AdviceGenerator produces a short guidance paragraph from an aggregate
// compliance summary. Nil-able: reports render without guidance when no
// generator is configured.
type AdviceGenerator interface {
	GenerateGuidance(ctx context.Context, summary string) (string, error)
}

// ReportService generates compliance report PDFs and stores them in blob
// storage, with the report records kept in the per-user store. When an
// encryptor is configured, PDFs are encrypted before upload and decrypted
// on download, so blobs at rest are unreadable without the key.
type ReportService struct {
	repo       ReportStore
	calculator *protocol.ComplianceCalculator
	blobClient azure.BlobStorage
	pdfGen     *pdf.PDFGenerator
	advice     AdviceGenerator
	encryptor  *security.Encryptor
	logger     *zap.Logger
}

// NewReportService creates a new ReportService. advice and encryptor may
// be nil.
func NewReportService(
	repo ReportStore,
	catalog *protocol.Catalog,
	blobClient azure.BlobStorage,
	pdfGen *pdf.PDFGenerator,
	advice AdviceGenerator,
	encryptor *security.Encryptor,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		repo:       repo,
		calculator: protocol.NewComplianceCalculator(catalog),
		blobClient: blobClient,
		pdfGen:     pdfGen,
		advice:     advice,
		encryptor:  encryptor,
		logger:     logger,
	}
}

// GenerateReport renders a compliance report over [startDate, endDate],
// uploads it and records it. Returns the new report id.
func (s *ReportService) GenerateReport(ctx context.Context, userID, userName string, startDate, endDate time.Time) (string, error) {
	s.logger.Info("generating compliance report",
		zap.String("user_id", userID),
		zap.Time("start_date", startDate),
		zap.Time("end_date", endDate),
	)

	reportID := uuid.New().String()

	all, err := s.repo.GetSessions(ctx, userID)
	if err != nil {
		s.logger.Error("failed to get sessions for report",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return "", fmt.Errorf("failed to get sessions: %w", err)
	}

	var sessions []model.TherapySession
	for _, session := range all {
		if session.EndTime.Before(startDate) || session.EndTime.After(endDate) {
			continue
		}
		sessions = append(sessions, session)
	}

	metrics := s.calculator.CalculateMetrics(sessions)

	adviceText := ""
	if s.advice != nil && len(sessions) > 0 {
		summary := fmt.Sprintf(
			"Sessions: %d total, %d completed, compliance score %d%%, consistency streak %d, pain trend %s.",
			metrics.TotalSessions, metrics.CompletedSessions, metrics.ComplianceScore,
			metrics.ConsistencyStreak, metrics.PainTrend,
		)
		adviceText, err = s.advice.GenerateGuidance(ctx, summary)
		if err != nil {
			s.logger.Warn("failed to generate guidance, continuing without it",
				zap.Error(err),
				zap.String("report_id", reportID),
			)
			adviceText = ""
		}
	}

	dateRange := fmt.Sprintf("%s to %s", startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	pdfBytes, err := s.pdfGen.Generate(&pdf.ReportData{
		UserName:   userName,
		DateRange:  dateRange,
		Sessions:   sessions,
		Metrics:    metrics,
		AdviceText: adviceText,
	})
	if err != nil {
		s.logger.Error("failed to generate PDF",
			zap.Error(err),
			zap.String("report_id", reportID),
		)
		return "", fmt.Errorf("failed to generate PDF: %w", err)
	}

	payload := pdfBytes
	if s.encryptor != nil {
		payload, err = s.encryptor.EncryptBytes(pdfBytes)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt report: %w", err)
		}
	}

	filename := fmt.Sprintf("%s/%s_%s.pdf", userID, reportID, time.Now().Format("20060102"))
	blobPath, err := s.blobClient.UploadPDF(ctx, filename, payload)
	if err != nil {
		s.logger.Error("failed to upload PDF to blob storage",
			zap.Error(err),
			zap.String("report_id", reportID),
		)
		return "", fmt.Errorf("failed to upload PDF: %w", err)
	}

	record := model.Report{
		ID:             reportID,
		UserID:         userID,
		DateRangeStart: startDate,
		DateRangeEnd:   endDate,
		FilePath:       blobPath,
		GeneratedAt:    time.Now(),
		CreatedAt:      time.Now(),
	}
	if err := s.repo.AppendReport(ctx, userID, record); err != nil {
		s.logger.Error("failed to save report record",
			zap.Error(err),
			zap.String("report_id", reportID),
		)
		return "", fmt.Errorf("failed to save report record: %w", err)
	}

	s.logger.Info("compliance report generated successfully",
		zap.String("report_id", reportID),
		zap.String("user_id", userID),
		zap.String("blob_path", blobPath),
	)

	return reportID, nil
}

// GetReport retrieves a report PDF for download.
func (s *ReportService) GetReport(ctx context.Context, userID, reportID string) ([]byte, error) {
	reports, err := s.GetReportsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var record *model.Report
	for i := range reports {
		if reports[i].ID == reportID {
			record = &reports[i]
			break
		}
	}
	if record == nil {
		return nil, fmt.Errorf("report not found: %s", reportID)
	}

	pdfBytes, err := s.blobClient.DownloadPDF(ctx, record.FilePath)
	if err != nil {
		s.logger.Error("failed to download PDF from blob storage",
			zap.Error(err),
			zap.String("report_id", reportID),
			zap.String("blob_path", record.FilePath),
		)
		return nil, fmt.Errorf("failed to download PDF: %w", err)
	}

	if s.encryptor != nil {
		pdfBytes, err = s.encryptor.DecryptBytes(pdfBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt report: %w", err)
		}
	}

	return pdfBytes, nil
}

// GetReportsByUserID retrieves all report records for a user.
func (s *ReportService) GetReportsByUserID(ctx context.Context, userID string) ([]model.Report, error) {
	reports, err := s.repo.GetReports(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reports: %w", err)
	}
	return reports, nil
}
