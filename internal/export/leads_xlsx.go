// Package export renders lead lists for download.
package export

import (
	"io"

	"github.com/xuri/excelize/v2"

	"loanops/internal/models"
)

const (
	leadsSheet = "Leads"
	XLSXType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var leadHeadings = []string{
	"ID", "First name", "Last name", "Mobile", "Email", "National ID", "Status", "Stage",
	"Requested amount", "Monthly income", "Credit score", "Created", "Last modified",
}

// LeadsXLSX writes the leads table view as a single-sheet workbook.
// stageNames maps stage IDs to names; unknown or missing stages are left blank.
func LeadsXLSX(w io.Writer, leads []models.Lead, stageNames map[int64]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", leadsSheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}

	header := make([]interface{}, len(leadHeadings))
	for i, h := range leadHeadings {
		header[i] = h
	}
	if err := f.SetSheetRow(leadsSheet, "A1", &header); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(leadHeadings), 1)
	if err := f.SetCellStyle(leadsSheet, "A1", last, bold); err != nil {
		return err
	}

	for i, l := range leads {
		stage := ""
		if l.CurrentStageID != nil {
			stage = stageNames[*l.CurrentStageID]
		}
		requested, _ := l.RequestedAmount.Float64()
		income, _ := l.MonthlyIncome.Float64()
		row := []interface{}{
			l.ID, l.FirstName, l.LastName, l.MobileNo, l.EmailAddress, l.NationalID,
			string(l.Status), stage, requested, income, l.CreditScore,
			l.CreatedAt.Format("2006-01-02 15:04"), l.LastModified.Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(leadsSheet, cell, &row); err != nil {
			return err
		}
	}
	if len(leads) > 0 {
		from, _ := excelize.CoordinatesToCellName(9, 2)
		to, _ := excelize.CoordinatesToCellName(10, len(leads)+1)
		if err := f.SetCellStyle(leadsSheet, from, to, money); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(leadsSheet, "A", "A", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(leadsSheet, "B", "H", 16); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}
