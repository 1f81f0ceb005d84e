package pdf

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"loanops/internal/models"
)

// Generator renders the one-page onboarding summary of a lead.
type Generator interface {
	LeadSummary(w io.Writer, data LeadSummaryData) error
}

// DocumentGenerator uses a UTF-8 TTF when FontPath exists, Helvetica otherwise.
type DocumentGenerator struct {
	FontPath string
	Company  string
}

type LeadSummaryData struct {
	Lead        *models.Lead
	StageName   string
	Validation  *models.ValidationReport
	GeneratedAt time.Time
	GeneratedBy string
}

func NewDocumentGenerator(fontPath, company string) *DocumentGenerator {
	if company == "" {
		company = "loanops"
	}
	return &DocumentGenerator{FontPath: fontPath, Company: company}
}

// writer bundles the document with its font choice.
type writer struct {
	pdf  *gofpdf.Fpdf
	font string
	tr   func(string) string
}

func (g *DocumentGenerator) newWriter() *writer {
	p := gofpdf.New("P", "mm", "A4", "")
	w := &writer{pdf: p, font: "Helvetica", tr: p.UnicodeTranslatorFromDescriptor("")}
	if g.FontPath != "" {
		if _, err := os.Stat(g.FontPath); err == nil {
			p.AddUTF8Font("DejaVu", "", g.FontPath)
			p.AddUTF8Font("DejaVu", "B", g.FontPath)
			w.font = "DejaVu"
			w.tr = func(s string) string { return s }
		}
	}
	return w
}

func (g *DocumentGenerator) LeadSummary(out io.Writer, data LeadSummaryData) error {
	if data.Lead == nil {
		return fmt.Errorf("lead summary: lead is required")
	}
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now()
	}
	l := data.Lead
	w := g.newWriter()
	pdf := w.pdf
	pdf.SetTitle(w.tr("Lead "+l.FullName()), false)
	pdf.SetAuthor(g.Company, false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(w.font, "", 9)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(w.font, "B", 18)
	pdf.CellFormat(0, 10, w.tr("Onboarding summary"), "", 1, "C", false, 0, "")
	pdf.SetFont(w.font, "", 11)
	sub := fmt.Sprintf("%s  |  %s", l.ID, data.GeneratedAt.Format("02 Jan 2006 15:04"))
	pdf.CellFormat(0, 7, w.tr(sub), "", 1, "C", false, 0, "")
	w.hr()

	w.sectionTitle("Applicant")
	w.kvLine("Name", l.FullName())
	w.kvLine("Mobile", l.MobileNo)
	w.kvLine("Email", l.EmailAddress)
	if l.DateOfBirth != nil {
		w.kvLine("Date of birth", l.DateOfBirth.Format("2006-01-02"))
	}
	w.kvLine("Gender", l.Gender)
	w.kvLine("National ID", l.NationalID)
	w.hr()

	w.sectionTitle("Application")
	w.kvLine("Status", string(l.Status))
	if data.StageName != "" {
		w.kvLine("Stage", data.StageName)
	}
	w.kvLine("Requested", l.RequestedAmount.StringFixed(2))
	if l.LoanTermMonths > 0 {
		w.kvLine("Term", fmt.Sprintf("%d months", l.LoanTermMonths))
	}
	w.kvLine("Monthly income", l.MonthlyIncome.StringFixed(2))
	w.kvLine("Monthly expenses", l.MonthlyExpenses.StringFixed(2))
	if l.CreditScore > 0 {
		w.kvLine("Credit score", fmt.Sprintf("%d", l.CreditScore))
	}
	if l.ClosedReason != nil {
		w.kvLine("Closed reason", *l.ClosedReason)
	}
	w.hr()

	if len(l.FamilyMembers) > 0 {
		w.sectionTitle("Household")
		w.table([]float64{60, 45, 25, 40}, []string{"Name", "Relationship", "Age", "Dependent"}, familyRows(l.FamilyMembers))
		w.hr()
	}

	if data.Validation != nil {
		s := data.Validation.Summary
		w.sectionTitle(fmt.Sprintf("Validation (%.2f%% passed)", s.PassedPercentage))
		rows := make([][]string, 0, len(data.Validation.Validations))
		for _, c := range data.Validation.Validations {
			rows = append(rows, []string{c.Name, string(c.Status), c.Message})
		}
		w.table([]float64{55, 25, 90}, []string{"Check", "Result", "Note"}, rows)
		verdict := "Can proceed"
		if !s.CanProceed {
			verdict = "Blocked until failed checks are resolved or overridden"
		}
		pdf.Ln(2)
		w.kvLine("Verdict", verdict)
	}

	if data.GeneratedBy != "" {
		pdf.Ln(4)
		pdf.SetFont(w.font, "", 9)
		pdf.CellFormat(0, 5, w.tr("Generated by "+data.GeneratedBy), "", 1, "R", false, 0, "")
	}

	return pdf.Output(out)
}

func familyRows(members []models.FamilyMember) [][]string {
	rows := make([][]string, 0, len(members))
	for _, m := range members {
		dep := "no"
		if m.IsDependent {
			dep = "yes"
		}
		rows = append(rows, []string{
			strings.TrimSpace(m.FirstName + " " + m.LastName),
			m.Relationship,
			fmt.Sprintf("%d", m.Age),
			dep,
		})
	}
	return rows
}

func (w *writer) sectionTitle(s string) {
	w.pdf.SetFont(w.font, "B", 12)
	w.pdf.CellFormat(0, 7, w.tr(s), "", 1, "L", false, 0, "")
	w.pdf.SetFont(w.font, "", 11)
}

func (w *writer) kvLine(key, val string) {
	if val == "" {
		val = "-"
	}
	w.pdf.SetFont(w.font, "B", 11)
	w.pdf.CellFormat(45, 6, w.tr(key+":"), "", 0, "L", false, 0, "")
	w.pdf.SetFont(w.font, "", 11)
	w.pdf.CellFormat(0, 6, w.tr(val), "", 1, "L", false, 0, "")
}

func (w *writer) table(widths []float64, header []string, rows [][]string) {
	w.pdf.SetFont(w.font, "B", 10)
	for i, h := range header {
		w.pdf.CellFormat(widths[i], 7, w.tr(h), "B", 0, "L", false, 0, "")
	}
	w.pdf.Ln(-1)
	w.pdf.SetFont(w.font, "", 10)
	for _, r := range rows {
		for i, cell := range r {
			w.pdf.CellFormat(widths[i], 6, w.tr(cell), "", 0, "L", false, 0, "")
		}
		w.pdf.Ln(-1)
	}
}

func (w *writer) hr() {
	y := w.pdf.GetY() + 1.5
	w.pdf.SetLineWidth(0.2)
	w.pdf.Line(20, y, 190, y)
	w.pdf.SetY(y + 2)
}
