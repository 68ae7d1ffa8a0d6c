// Package export writes merged lead sets to CSV, JSON, or Excel files and
// reads name lists back in for lookup runs.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/leadscout/leadscout/internal/lead"
)

// Supported output formats.
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatExcel = "excel"
)

// Header returns the stable flat column order shared by CSV and Excel output.
func Header() []string {
	return []string{
		"name",
		"headline",
		"current_position",
		"current_company",
		"location",
		"about",
		"profile_url",
		"emails",
		"phones",
		"linkedin",
		"twitter",
		"facebook",
		"github",
		"instagram",
		"contact_page",
		"source_queries",
	}
}

// row flattens one lead into Header() order. Multi-valued sets join on
// ", "; source queries keep their JSON array form for machine consumers.
func row(l lead.Lead) []string {
	about := l.Person.About
	if len(about) > 200 {
		about = about[:200]
	}
	return []string{
		l.Person.Name,
		l.Person.Headline,
		l.Person.CurrentPosition,
		l.Person.CurrentCompany,
		l.Person.Location,
		about,
		l.ProfileURL,
		strings.Join(l.Contact.Emails, ", "),
		strings.Join(l.Contact.Phones, ", "),
		l.Contact.SocialLinks["linkedin"],
		l.Contact.SocialLinks["twitter"],
		l.Contact.SocialLinks["facebook"],
		l.Contact.SocialLinks["github"],
		l.Contact.SocialLinks["instagram"],
		l.Contact.ContactPage,
		jsonArrayOrEmpty(l.SourceQueries),
	}
}

func jsonArrayOrEmpty(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return ""
	}
	return string(b)
}

// WriteCSV writes leads as CSV with a header row.
func WriteCSV(w io.Writer, leads []lead.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, l := range leads {
		if err := cw.Write(row(l)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes leads as an indented JSON array, nested structure intact.
func WriteJSON(w io.Writer, leads []lead.Lead) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if leads == nil {
		leads = []lead.Lead{}
	}
	return enc.Encode(leads)
}

const excelSheet = "Leads"

// WriteExcel writes leads as a single-sheet workbook with columns sized to
// their content.
func WriteExcel(w io.Writer, leads []lead.Lead) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", excelSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := Header()
	widths := make([]int, len(header))
	for i, col := range header {
		widths[i] = len(col)
	}

	writeRow := func(rowIdx int, values []string) error {
		for i, v := range values {
			cell, err := excelize.CoordinatesToCellName(i+1, rowIdx)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(excelSheet, cell, v); err != nil {
				return err
			}
			if len(v) > widths[i] {
				widths[i] = len(v)
			}
		}
		return nil
	}

	if err := writeRow(1, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, l := range leads {
		if err := writeRow(i+2, row(l)); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	for i := range header {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width := widths[i] + 2
		if width > 50 {
			width = 50
		}
		if err := f.SetColWidth(excelSheet, col, col, float64(width)); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Filename builds a timestamped output name like "leads_20260825_143000.csv".
func Filename(base, format string, now time.Time) string {
	ext := format
	if format == FormatExcel {
		ext = "xlsx"
	}
	return fmt.Sprintf("%s_%s.%s", base, now.Format("20060102_150405"), ext)
}

// WriteFile writes leads to dir in the given format and returns the path.
func WriteFile(dir, base, format string, leads []lead.Lead) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, Filename(base, format, time.Now()))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch format {
	case FormatCSV:
		err = WriteCSV(f, leads)
	case FormatJSON:
		err = WriteJSON(f, leads)
	case FormatExcel:
		err = WriteExcel(f, leads)
	default:
		err = fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("flush output file: %w", err)
	}
	return path, nil
}

// Summary aggregates headline counts over a lead set.
type Summary struct {
	TotalLeads       int `json:"total_leads"`
	LeadsWithEmails  int `json:"leads_with_emails"`
	LeadsWithProfile int `json:"leads_with_profile"`
	UniqueCompanies  int `json:"unique_companies"`
	TotalEmails      int `json:"total_emails"`
}

// Summarize computes headline counts for logging and run reports.
func Summarize(leads []lead.Lead) Summary {
	s := Summary{TotalLeads: len(leads)}
	companies := map[string]struct{}{}
	for _, l := range leads {
		if len(l.Contact.Emails) > 0 {
			s.LeadsWithEmails++
		}
		if l.ProfileURL != "" {
			s.LeadsWithProfile++
		}
		s.TotalEmails += len(l.Contact.Emails)
		if c := strings.ToLower(strings.TrimSpace(l.Person.CurrentCompany)); c != "" {
			companies[c] = struct{}{}
		}
	}
	s.UniqueCompanies = len(companies)
	return s
}

// ReadNamesCSV reads the values of the "name" column. Column match is
// case-insensitive; other columns are ignored.
func ReadNamesCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	nameIdx := -1
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), "name") {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("missing required column %q", "name")
	}

	var names []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if nameIdx >= len(rec) {
			return nil, fmt.Errorf("row has %d columns, want at least %d", len(rec), nameIdx+1)
		}
		if name := strings.TrimSpace(rec[nameIdx]); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}
