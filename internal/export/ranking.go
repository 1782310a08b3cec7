package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"scholarship-exam-service/internal/domain"
)

const sheet = "Ranking"

// Header is the column row written under the title.
var Header = []string{"UID", "Rank", "Name", "Score", "Father Name", "Mother Name", "Contact Number"}

// Filename is the attachment name of a ranking export.
func Filename(stream string, year int) string {
	return fmt.Sprintf("test-ranking-%s-%d", stream, year)
}

// Workbook builds the ranking spreadsheet: a title row with the session name,
// the header row, then one row per ranked entry.
func Workbook(r domain.Ranking) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, err
	}

	lastCol, err := excelize.ColumnNumberToName(len(Header))
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetCellValue(sheet, "A1", r.Session.CommonName); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.MergeCell(sheet, "A1", lastCol+"1"); err != nil {
		f.Close()
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	_ = f.SetCellStyle(sheet, "A1", lastCol+"2", bold)

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A2", &header); err != nil {
		f.Close()
		return nil, err
	}

	for i, e := range r.Entries {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := []interface{}{e.UID, e.Rank, e.Name, e.Score, e.FatherName, e.MotherName, e.PhoneNumber}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// Write streams the ranking workbook to w.
func Write(w io.Writer, r domain.Ranking) error {
	f, err := Workbook(r)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
