package dto

import "github.com/noah-isme/trivsel-api/internal/models"

// ReportRequest captures POST /reports payload.
type ReportRequest struct {
	Type       models.ReportType   `json:"type"`
	StudentID  *string             `json:"studentId,omitempty"`
	WeekNumber *int                `json:"weekNumber,omitempty"`
	Year       *int                `json:"year,omitempty"`
	Format     models.ReportFormat `json:"format"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ReportStatus `json:"status"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}

// ReportListEntry is one job row in GET /reports.
type ReportListEntry struct {
	ID        string              `json:"id"`
	Type      models.ReportType   `json:"type"`
	Status    models.ReportStatus `json:"status"`
	CreatedAt string              `json:"created_at"`
	ResultURL *string             `json:"resultUrl,omitempty"`
}
