package payroll

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/money"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/storage"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
	"github.com/xuri/excelize/v2"
)

const (
	exportSheet       = "Results"
	exportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var exportHeaders = []string{
	"Employee ID", "External ID", "Employee Name",
	"Gross Income", "SSS", "PhilHealth", "Pag-IBIG", "Total Statutory",
	"Taxable Income", "Withholding Tax", "Other Deductions", "Non-taxable Allowances",
	"Total Deductions", "Net Pay",
}

func exportFileName(run payroll.Run) string {
	return fmt.Sprintf("payroll-%s-%s.xlsx", run.PeriodEnd.Format(payroll.DateLayout), run.ID)
}

func archivePath(run payroll.Run) string {
	return "runs/" + run.TenantID + "/" + exportFileName(run)
}

// Export returns the results workbook of a computed run. A finalized run is
// served from the archive when one was stored.
func (s *PayrollServiceImpl) Export(ctx context.Context, scope tenant.Scope, runID string) (payroll.Export, error) {
	run, results, err := s.visibleResults(ctx, scope, runID)
	if err != nil {
		return payroll.Export{}, err
	}

	if run.Status == payroll.StatusFinalized && s.opts.Archive != nil {
		content, err := s.archived(ctx, run)
		if err == nil {
			return payroll.Export{FileName: exportFileName(run), ContentType: exportContentType, Content: content}, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("Archived workbook unavailable, rendering", "tenant_id", scope.TenantID, "run_id", runID, "error", err)
		}
	}

	return renderWorkbook(run, results)
}

func (s *PayrollServiceImpl) archived(ctx context.Context, run payroll.Run) ([]byte, error) {
	r, err := s.opts.Archive.Download(ctx, archivePath(run))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *PayrollServiceImpl) archive(ctx context.Context, scope tenant.Scope, run payroll.Run) error {
	if s.opts.Archive == nil {
		return nil
	}
	results, err := s.resultRepo.ListByRun(ctx, scope, run.ID)
	if err != nil {
		return err
	}
	export, err := renderWorkbook(run, results)
	if err != nil {
		return err
	}
	key, err := s.opts.Archive.Upload(ctx, bytes.NewReader(export.Content), archivePath(run), export.ContentType)
	if err != nil {
		return err
	}
	slog.Info("Finalized run archived", "tenant_id", scope.TenantID, "run_id", run.ID, "key", key)
	return nil
}

// renderWorkbook writes one row per result and a totals row. Amounts are
// written as their two-place strings so the workbook shows exactly what was
// stored.
func renderWorkbook(run payroll.Run, results []payroll.Result) (payroll.Export, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return payroll.Export{}, err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return payroll.Export{}, err
	}

	var totals [11]money.Amount
	for i, r := range results {
		amounts := []money.Amount{
			r.GrossIncome, r.SSS, r.PhilHealth, r.PagIBIG, r.TotalStatutory,
			r.TaxableIncome, r.WithholdingTax, r.OtherDeductions, r.NonTaxableAllowances,
			r.TotalDeductions, r.NetPay,
		}
		row := []interface{}{r.EmployeeID, deref(r.EmployeeExternalID), deref(r.EmployeeName)}
		for j, a := range amounts {
			row = append(row, a.String())
			totals[j] = totals[j].Add(a)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return payroll.Export{}, err
		}
	}

	totalRow := []interface{}{"TOTAL", "", ""}
	for _, t := range totals {
		totalRow = append(totalRow, t.String())
	}
	cell, _ := excelize.CoordinatesToCellName(1, len(results)+2)
	if err := f.SetSheetRow(exportSheet, cell, &totalRow); err != nil {
		return payroll.Export{}, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return payroll.Export{}, fmt.Errorf("failed to render workbook: %w", err)
	}

	return payroll.Export{
		FileName:    exportFileName(run),
		ContentType: exportContentType,
		Content:     buf.Bytes(),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
