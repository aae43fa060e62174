package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/trivsel-api/internal/models"
	"github.com/noah-isme/trivsel-api/pkg/export"
	"github.com/noah-isme/trivsel-api/pkg/storage"
)

type exportRowReader interface {
	ExportRows(ctx context.Context, filter models.AnalyticsExportFilter) ([]models.ScoreExportRow, error)
}

type exportStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files. A report
// is either one student's wellbeing history or the program-wide summary for
// one ISO week.
type ExportService struct {
	rows     exportRowReader
	students exportStudentReader
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(
	rows exportRowReader,
	students exportStudentReader,
	store fileStorage,
	signer *storage.SignedURLSigner,
	cfg ExportConfig,
	logger *zap.Logger,
	csv csvRenderer,
	pdf pdfRenderer,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		rows:     rows,
		students: students,
		storage:  store,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate builds the dataset for the job and stores the rendered file.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	signedURL := fmt.Sprintf("%s/reports/%s/download?token=%s", prefix, job.ID, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when
// ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "na"
	switch job.Type {
	case models.ReportTypeStudent:
		if job.Params.StudentID != nil {
			scope = sanitizeFilename(*job.Params.StudentID)
		}
	case models.ReportTypeWeekly:
		if job.Params.WeekNumber != nil && job.Params.Year != nil {
			scope = fmt.Sprintf("%d-W%02d", *job.Params.Year, *job.Params.WeekNumber)
		}
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeStudent:
		return s.buildStudentDataset(ctx, job.Params)
	case models.ReportTypeWeekly:
		return s.buildWeeklyDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

// buildStudentDataset renders one student's full score history, one row per
// recorded score, totals last within each week.
func (s *ExportService) buildStudentDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if params.StudentID == nil || *params.StudentID == "" {
		return export.Dataset{}, "", fmt.Errorf("student report requires studentId")
	}
	student, err := s.students.FindByID(ctx, *params.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return export.Dataset{}, "", fmt.Errorf("student %s not found", *params.StudentID)
		}
		return export.Dataset{}, "", err
	}

	rows, err := s.rows.ExportRows(ctx, models.AnalyticsExportFilter{StudentID: params.StudentID})
	if err != nil {
		return export.Dataset{}, "", err
	}

	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		category := "total"
		if row.Category != nil {
			category = *row.Category
		}
		dataRows = append(dataRows, map[string]string{
			"Week":        fmt.Sprintf("%d", row.WeekNumber),
			"Year":        fmt.Sprintf("%d", row.Year),
			"Category":    category,
			"Score":       fmt.Sprintf("%.2f", row.Value),
			"Color":       row.Color,
			"Recorded At": row.RecordedAt.UTC().Format("2006-01-02"),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Week", "Year", "Category", "Score", "Color", "Recorded At"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Wellbeing Report %s", student.InternalID)
	return dataset, title, nil
}

// buildWeeklyDataset renders the program-wide totals for one ISO week, one
// row per student total, worst scores first.
func (s *ExportService) buildWeeklyDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if params.WeekNumber == nil || params.Year == nil {
		return export.Dataset{}, "", fmt.Errorf("weekly report requires weekNumber and year")
	}

	rows, err := s.rows.ExportRows(ctx, models.AnalyticsExportFilter{WeekNumber: params.WeekNumber, Year: params.Year})
	if err != nil {
		return export.Dataset{}, "", err
	}

	totals := make([]models.ScoreExportRow, 0, len(rows))
	colorCounts := map[string]int{}
	for _, row := range rows {
		if !row.IsTotal {
			continue
		}
		totals = append(totals, row)
		colorCounts[row.Color]++
	}
	sort.SliceStable(totals, func(i, j int) bool { return totals[i].Value < totals[j].Value })

	dataRows := make([]map[string]string, 0, len(totals)+1)
	for _, row := range totals {
		dataRows = append(dataRows, map[string]string{
			"Internal ID": row.InternalID,
			"Phase":       row.Phase,
			"Total Score": fmt.Sprintf("%.2f", row.Value),
			"Color":       row.Color,
		})
	}
	dataRows = append(dataRows, map[string]string{
		"Internal ID": "SUMMARY",
		"Phase":       "",
		"Total Score": fmt.Sprintf("%d responses", len(totals)),
		"Color":       fmt.Sprintf("green=%d yellow=%d red=%d", colorCounts["green"], colorCounts["yellow"], colorCounts["red"]),
	})

	dataset := export.Dataset{
		Headers: []string{"Internal ID", "Phase", "Total Score", "Color"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Weekly Report %d-W%02d", *params.Year, *params.WeekNumber)
	return dataset, title, nil
}
