package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/janseva/work-tracker-api/internal/models"
	appErrors "github.com/janseva/work-tracker-api/pkg/errors"
	"github.com/janseva/work-tracker-api/pkg/export"
)

// ExportFormat selects the export output encoding.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// ExportResult is a rendered export file ready for download.
type ExportResult struct {
	Content     []byte
	Filename    string
	ContentType string
}

type recordLister interface {
	List(ctx context.Context, actorID string, filter models.WorkRecordFilter) ([]models.WorkRecordDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// exportHeaders is the fixed column order of every export.
var exportHeaders = []string{
	"ID",
	"Full Name",
	"Phone Number",
	"Place Address",
	"Village/City",
	"Constituency Origin",
	"Constituency Work",
	"Nature of Work",
	"Status",
	"Work Allocated To",
	"Created Date",
}

// ExportService renders filtered work records as downloadable files.
// Authentication is enforced by the underlying record lister.
type ExportService struct {
	records recordLister
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
	maxRows int
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(records recordLister, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger, maxRows int) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		records: records,
		csv:     csv,
		pdf:     pdf,
		logger:  logger,
		maxRows: maxRows,
		now:     time.Now,
	}
}

// Generate lists records through the store (with the same filter
// semantics as the list endpoint) and renders them in the requested
// format. Exports respect every active filter, so what the caller sees
// listed is exactly what gets exported.
func (s *ExportService) Generate(ctx context.Context, actorID string, filter models.WorkRecordFilter, format ExportFormat) (*ExportResult, error) {
	if format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	records, err := s.records.List(ctx, actorID, filter)
	if err != nil {
		return nil, err
	}
	if s.maxRows > 0 && len(records) > s.maxRows {
		s.logger.Warn("export truncated",
			zap.Int("rows", len(records)),
			zap.Int("max_rows", s.maxRows))
		records = records[:s.maxRows]
	}

	dataset := export.Dataset{Headers: exportHeaders, Rows: make([][]string, 0, len(records))}
	for _, rec := range records {
		dataset.Rows = append(dataset.Rows, exportRow(rec.WorkRecord))
	}

	stamp := s.now().UTC().Format("2006-01-02")
	switch format {
	case FormatPDF:
		content, err := s.pdf.Render(dataset, "Work Records")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render PDF export")
		}
		return &ExportResult{
			Content:     content,
			Filename:    fmt.Sprintf("work-records-%s.pdf", stamp),
			ContentType: "application/pdf",
		}, nil
	default:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render CSV export")
		}
		return &ExportResult{
			Content:     content,
			Filename:    fmt.Sprintf("work-records-%s.csv", stamp),
			ContentType: "text/csv",
		}, nil
	}
}

func exportRow(rec models.WorkRecord) []string {
	status := rec.Status
	if status == "" {
		status = models.StatusInProgress
	}
	allocatedTo := ""
	if rec.WorkAllocatedTo != nil {
		allocatedTo = *rec.WorkAllocatedTo
	}
	return []string{
		rec.ID,
		rec.FullName,
		rec.PhoneNumber,
		rec.PlaceAddress,
		rec.VillageCity,
		rec.ConstituencyOrigin,
		rec.ConstituencyWork,
		string(rec.NatureOfWork),
		string(status),
		allocatedTo,
		rec.CreatedAt.Format("2006-01-02"),
	}
}
