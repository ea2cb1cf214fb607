package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-agenda-api/internal/models"
	appErrors "github.com/noah-isme/sma-agenda-api/pkg/errors"
	"github.com/noah-isme/sma-agenda-api/pkg/export"
	"github.com/noah-isme/sma-agenda-api/pkg/storage"
)

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type exportBookingSource interface {
	ListByClassBetween(ctx context.Context, classID string, from, to time.Time) ([]models.Booking, error)
}

type exportEntrySource interface {
	ListByTermWeek(ctx context.Context, term, week int) ([]models.PlanEntry, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
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
	Format       ExportFormat
	ExpiresAt    time.Time
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders weekly agenda and plan-entry reports and hands
// out signed download links for the stored files.
type ExportService struct {
	bookings exportBookingSource
	entries  exportEntrySource
	calendar *models.AcademicCalendar
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(bookings exportBookingSource, entries exportEntrySource, calendar *models.AcademicCalendar, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
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
		bookings: bookings,
		entries:  entries,
		calendar: calendar,
		storage:  files,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// GenerateWeekAgenda renders the class's bookings for one academic
// week and stores the file.
func (s *ExportService) GenerateWeekAgenda(ctx context.Context, classID string, term, week int, format ExportFormat) (*ExportResult, error) {
	start, end, err := s.calendar.WeekBounds(term, week, time.Now().In(s.calendar.Location))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term or week")
	}
	bookings, err := s.bookings.ListByClassBetween(ctx, classID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week agenda")
	}

	rows := make([]map[string]string, 0, len(bookings))
	for _, b := range bookings {
		rows = append(rows, map[string]string{
			"Date":       b.Date.Format(DateLayout),
			"Period":     fmt.Sprintf("%d", b.Period),
			"Subject ID": b.SubjectID,
			"Kind":       string(b.Kind),
			"Teacher ID": b.TeacherID,
			"Status":     string(b.Status),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Date", "Period", "Subject ID", "Kind", "Teacher ID", "Status"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Week Agenda %s T%d W%d", classID, term, week)
	name := fmt.Sprintf("agenda_%s_t%d_w%d", sanitizeFilename(classID), term, week)
	return s.render(dataset, title, name, format)
}

// GenerateEntryReport renders every entry of one kind in a (term,
// week) scope, the view reviewers work from.
func (s *ExportService) GenerateEntryReport(ctx context.Context, kind models.EntryKind, term, week int, format ExportFormat) (*ExportResult, error) {
	scope, err := s.entries.ListByTermWeek(ctx, term, week)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan entries")
	}
	entries := make([]models.PlanEntry, 0, len(scope))
	for _, e := range scope {
		if e.Kind == kind {
			entries = append(entries, e)
		}
	}

	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		subEvent := ""
		if e.SubEventDate != nil {
			subEvent = e.SubEventDate.Format(DateLayout)
			if e.SubEventPeriod != nil {
				subEvent = fmt.Sprintf("%s P%d", subEvent, *e.SubEventPeriod)
			}
		}
		rows = append(rows, map[string]string{
			"Class ID":   e.ClassID,
			"Subject ID": e.SubjectID,
			"Teacher ID": e.TeacherID,
			"Topic":      e.Topic,
			"Sub-event":  subEvent,
			"Status":     string(e.Status),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Class ID", "Subject ID", "Teacher ID", "Topic", "Sub-event", "Status"},
		Rows:    rows,
	}
	title := fmt.Sprintf("%s Entries T%d W%d", entryKindLabel(kind), term, week)
	name := fmt.Sprintf("entries_%s_t%d_w%d", strings.ToLower(string(kind)), term, week)
	return s.render(dataset, title, name, format)
}

func (s *ExportService) render(dataset export.Dataset, title, name string, format ExportFormat) (*ExportResult, error) {
	var payload []byte
	var err error
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("%s_%s.%s", name, time.Now().UTC().Format("20060102_150405"), format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(uuid.NewString(), relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:       format,
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

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func entryKindLabel(kind models.EntryKind) string {
	switch kind {
	case models.EntryKindSummary:
		return "Summary"
	case models.EntryKindSupport:
		return "Support"
	default:
		return string(kind)
	}
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
