package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/saisiddhant-g/ayurnxt-backend/pkg/model"
)

// PDFGenerator renders therapy compliance reports
type PDFGenerator struct {
	logger *zap.Logger
}

// NewPDFGenerator creates a new PDFGenerator
func NewPDFGenerator(logger *zap.Logger) *PDFGenerator {
	return &PDFGenerator{
		logger: logger,
	}
}

// ReportData contains all data needed for report generation
type ReportData struct {
	UserName   string
	DateRange  string
	Sessions   []model.TherapySession
	Metrics    model.ComplianceMetrics
	AdviceText string
}

// Generate creates a PDF report from the provided data
func (g *PDFGenerator) Generate(data *ReportData) ([]byte, error) {
	g.logger.Info("generating PDF report",
		zap.String("user_name", data.UserName),
		zap.String("date_range", data.DateRange),
	)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	pdf.AddPage()

	g.addTitle(pdf, "Therapy Compliance Report", data.UserName, data.DateRange)
	g.addComplianceSummary(pdf, data.Metrics)
	g.addPainProgression(pdf, data.Sessions)
	g.addSessionLog(pdf, data.Sessions)
	if data.AdviceText != "" {
		g.addAdvice(pdf, data.AdviceText)
	}
	g.addDisclaimer(pdf)

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		g.logger.Error("failed to generate PDF", zap.Error(err))
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	g.logger.Info("PDF report generated successfully",
		zap.Int("size_bytes", buf.Len()),
	)

	return buf.Bytes(), nil
}

// addTitle adds the report title and header information
func (g *PDFGenerator) addTitle(pdf *gofpdf.Fpdf, title, userName, dateRange string) {
	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("User: %s", userName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Period: %s", dateRange), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(10)
}

// addSectionHeader adds a section header
func (g *PDFGenerator) addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(0, 10, title, "", 1, "L", true, 0, "")
	pdf.Ln(3)
	pdf.SetFont("Arial", "", 10)
}

// addComplianceSummary adds the aggregate metrics section
func (g *PDFGenerator) addComplianceSummary(pdf *gofpdf.Fpdf, metrics model.ComplianceMetrics) {
	g.addSectionHeader(pdf, "Compliance Summary")

	pdf.CellFormat(0, 6, fmt.Sprintf("Total sessions: %d", metrics.TotalSessions), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Completed sessions: %d", metrics.CompletedSessions), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Compliance score: %d%%", metrics.ComplianceScore), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Consistency streak: %d", metrics.ConsistencyStreak), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Pain trend: %s", metrics.PainTrend), "", 1, "L", false, 0, "")

	if metrics.RecommendConsultation {
		pdf.Ln(2)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, "Recommendation: consult a healthcare practitioner before continuing therapy.", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
	}
	pdf.Ln(5)
}

// addPainProgression adds the pain before/after section
func (g *PDFGenerator) addPainProgression(pdf *gofpdf.Fpdf, sessions []model.TherapySession) {
	g.addSectionHeader(pdf, "Pain Progression")

	logged := false
	for _, session := range sessions {
		if session.PainAfter == nil {
			continue
		}
		logged = true
		dateStr := session.EndTime.Format("2006-01-02")
		delta := *session.PainAfter - session.PainBefore
		pdf.CellFormat(0, 5, fmt.Sprintf("%s: before %d/10, after %d/10 (%+d)",
			dateStr, session.PainBefore, *session.PainAfter, delta), "", 1, "L", false, 0, "")
	}
	if !logged {
		pdf.CellFormat(0, 8, "No post-session pain scores recorded during this period.", "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)
}

// addSessionLog adds the per-session detail section
func (g *PDFGenerator) addSessionLog(pdf *gofpdf.Fpdf, sessions []model.TherapySession) {
	g.addSectionHeader(pdf, "Session Log")

	if len(sessions) == 0 {
		pdf.CellFormat(0, 8, "No sessions recorded during this period.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	for _, session := range sessions {
		dateStr := session.StartTime.Format("2006-01-02 15:04")
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s - %s", dateStr, session.Status), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)

		pdf.CellFormat(0, 5, fmt.Sprintf("  Body area: %s", session.BodyArea), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("  Mode: %s", session.Mode), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("  Duration: %d minutes", session.DurationMinutes), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("  Plaster unit: %s", session.PlasterID), "", 1, "L", false, 0, "")
		if session.SensationCheck != nil {
			pdf.CellFormat(0, 5, fmt.Sprintf("  Sensation check: %s", *session.SensationCheck), "", 1, "L", false, 0, "")
		}
		if session.TerminationReason != nil && *session.TerminationReason != "" {
			pdf.CellFormat(0, 5, fmt.Sprintf("  Termination reason: %s", *session.TerminationReason), "", 1, "L", false, 0, "")
		}
		if session.Notes != nil && *session.Notes != "" {
			pdf.CellFormat(0, 5, fmt.Sprintf("  Notes: %s", *session.Notes), "", 1, "L", false, 0, "")
		}
		pdf.Ln(3)
	}
	pdf.Ln(5)
}

// addAdvice adds the generated guidance section
func (g *PDFGenerator) addAdvice(pdf *gofpdf.Fpdf, advice string) {
	g.addSectionHeader(pdf, "Guidance")
	pdf.MultiCell(0, 5, advice, "", "L", false)
	pdf.Ln(5)
}

// addDisclaimer adds the standing safety disclaimer
func (g *PDFGenerator) addDisclaimer(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Arial", "I", 9)
	pdf.MultiCell(0, 5, "This report reflects demonstration protocol defaults and is not medical advice. Consult a healthcare professional for treatment decisions.", "", "L", false)
}
