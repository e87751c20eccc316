// Package report exports a project's budget into an xlsx workbook.
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"planboard/internal/domain"
	"planboard/internal/engine"
	"planboard/internal/repo"
)

const (
	SheetSummary    = "Summary"
	SheetActivities = "Activities"
	SheetExpenses   = "Expenses"
)

var (
	activityHeader = []any{"ID", "Title", "Type", "Status", "Review", "Assignee", "Start", "End", "Planned budget", "Allocated", "Progress"}
	expenseHeader  = []any{"ID", "Activity", "Label", "Spent on", "Amount", "Review"}
)

// Workbook is the data that goes into one export.
type Workbook struct {
	Project    domain.Project
	Budget     engine.BudgetSummary
	Activities []domain.Activity
	Expenses   []domain.Expense
}

// Collect reads everything an export needs for one project.
func Collect(ctx context.Context, e engine.Engine, projectID string) (Workbook, error) {
	var (
		wb  Workbook
		err error
	)
	if wb.Project, err = e.GetProject(ctx, projectID); err != nil {
		return wb, err
	}
	if wb.Budget, err = e.BudgetSummary(ctx, projectID); err != nil {
		return wb, err
	}
	if wb.Activities, err = e.ListActivities(ctx, repo.ActivityFilters{ProjectID: projectID}); err != nil {
		return wb, err
	}
	if wb.Expenses, err = e.ListExpenses(ctx, repo.ExpenseFilters{ProjectID: projectID}); err != nil {
		return wb, err
	}
	return wb, nil
}

type Exporter struct {
	logger *zap.Logger
}

func NewExporter(logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{logger: logger}
}

// SaveAs writes the workbook to path.
func (x *Exporter) SaveAs(wb Workbook, path string) error {
	f, err := x.build(wb)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	x.logger.Info("budget workbook exported",
		zap.String("project_id", wb.Project.ID),
		zap.String("output_path", path),
		zap.Int("activities", len(wb.Activities)),
		zap.Int("expenses", len(wb.Expenses)))
	return nil
}

// Write streams the workbook to w.
func (x *Exporter) Write(wb Workbook, w io.Writer) error {
	f, err := x.build(wb)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (x *Exporter) build(wb Workbook) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename default sheet: %w", err)
	}
	for _, name := range []string{SheetActivities, SheetExpenses} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}
	steps := []func(*excelize.File, Workbook) error{fillSummary, fillActivities, fillExpenses}
	for _, step := range steps {
		if err := step(f, wb); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func fillSummary(f *excelize.File, wb Workbook) error {
	b := wb.Budget
	rows := [][]any{
		{"Project", wb.Project.ID},
		{"Name", wb.Project.Name},
		{"Currency", b.Currency},
		{"Planned budget", b.Planned},
		{"Committed", b.Committed},
		{"Allocated", b.Allocated},
		{"Remaining", b.Remaining},
		{"Spent", b.Spent},
		{"Approved spend", b.ApprovedSpend},
		{"Activities", b.Activities},
	}
	return setRows(f, SheetSummary, rows)
}

func fillActivities(f *excelize.File, wb Workbook) error {
	rows := [][]any{activityHeader}
	for _, a := range wb.Activities {
		rows = append(rows, []any{
			a.ID, a.Title, string(a.Type), string(a.Status), string(a.ReviewStatus), a.Assignee,
			a.StartDate, a.EndDate, a.PlannedBudget, a.Allocated, engine.EffectiveProgress(a),
		})
	}
	return setRows(f, SheetActivities, rows)
}

func fillExpenses(f *excelize.File, wb Workbook) error {
	rows := [][]any{expenseHeader}
	for _, e := range wb.Expenses {
		rows = append(rows, []any{e.ID, e.ActivityID, e.Label, e.SpentOn, e.Amount, string(e.ReviewStatus)})
	}
	return setRows(f, SheetExpenses, rows)
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("failed to set %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
