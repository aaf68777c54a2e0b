package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/study-planner/internal/dto"
	appErrors "github.com/noah-isme/study-planner/pkg/errors"
	"github.com/noah-isme/study-planner/pkg/export"
)

// ExportFormat names a rendered plan format.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

var planHeaders = []string{"Date", "Task", "Subject", "Minutes", "Remaining", "Part", "Deadline"}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

type planStorage interface {
	Save(name string, data []byte) (string, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// PlanExportService renders plans as CSV or PDF and optionally archives them.
type PlanExportService struct {
	csv     csvRenderer
	pdf     pdfRenderer
	storage planStorage
	logger  *zap.Logger
}

// NewPlanExportService constructs an export service. storage may be nil when
// plans are only rendered.
func NewPlanExportService(storage planStorage, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *PlanExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter(0)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &PlanExportService{csv: csv, pdf: pdf, storage: storage, logger: logger}
}

// ExportPlan renders plan in the requested format.
func (s *PlanExportService) ExportPlan(plan *dto.SchedulePlan, format ExportFormat) ([]byte, error) {
	if plan == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "plan is required")
	}
	dataset := planDataset(plan)
	switch format {
	case ExportCSV:
		return s.csv.Render(dataset)
	case ExportPDF:
		return s.pdf.Render(export.Document{
			Title:   fmt.Sprintf("Study plan %s to %s", plan.StartDate, plan.EndDate),
			Summary: planSummary(plan),
			Table:   dataset,
			Widths:  []float64{2, 4, 3, 1.5, 1.7, 1, 2},
			Notes:   planNotes(plan),
		})
	default:
		return nil, appErrors.Clone(appErrors.ErrUnsupported, fmt.Sprintf("unsupported export format %q", format))
	}
}

// Archive renders plan and stores it below the owner's directory, returning
// the stored name.
func (s *PlanExportService) Archive(plan *dto.SchedulePlan, format ExportFormat) (string, error) {
	if s.storage == nil {
		return "", appErrors.Clone(appErrors.ErrUnsupported, "plan archive is not configured")
	}
	payload, err := s.ExportPlan(plan, format)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%d/plan_%s_%s_%s.%s", plan.OwnerID, plan.StartDate, plan.EndDate, plan.GeneratedAt.UTC().Format("20060102_150405"), format)
	stored, err := s.storage.Save(name, payload)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive plan")
	}
	s.logger.Info("plan archived", zap.String("plan_id", plan.ID), zap.String("file", stored))
	return stored, nil
}

// Prune removes archived plans older than ttl.
func (s *PlanExportService) Prune(ttl time.Duration) ([]string, error) {
	if s.storage == nil || ttl <= 0 {
		return nil, nil
	}
	return s.storage.CleanupOlderThan(ttl)
}

func planDataset(plan *dto.SchedulePlan) export.Dataset {
	data := export.Dataset{Headers: planHeaders}
	for _, day := range plan.PlannedDays {
		for _, task := range day.Tasks {
			part := ""
			if task.Parts > 0 {
				part = fmt.Sprintf("%d/%d", task.Part, task.Parts)
			}
			deadline := ""
			if task.Deadline != nil {
				deadline = *task.Deadline
			}
			data.Append(map[string]string{
				"Date":      day.Date,
				"Task":      task.TaskName,
				"Subject":   task.SubjectName,
				"Minutes":   strconv.Itoa(task.MinutesToday),
				"Remaining": strconv.Itoa(task.MinutesRemaining),
				"Part":      part,
				"Deadline":  deadline,
			})
		}
	}
	return data
}

func planSummary(plan *dto.SchedulePlan) []string {
	lines := []string{
		plan.Message,
		fmt.Sprintf("Strategy: %s, tasks planned: %d of %d", plan.Strategy, plan.PlannedTaskCount, plan.TotalTasksConsidered),
	}
	if plan.Score != nil {
		lines = append(lines, fmt.Sprintf("Score: %dhard/%dmedium/%dsoft", plan.Score.Hard, plan.Score.Medium, plan.Score.Soft))
	}
	return lines
}

func planNotes(plan *dto.SchedulePlan) []string {
	notes := make([]string, 0, len(plan.Warnings))
	for _, w := range plan.Warnings {
		note := fmt.Sprintf("%s: %s", w.TaskName, w.Message)
		if w.RecommendedDailyMinutes > 0 {
			note += fmt.Sprintf(" (recommended %d min/day)", w.RecommendedDailyMinutes)
		}
		notes = append(notes, strings.TrimSpace(note))
	}
	return notes
}
