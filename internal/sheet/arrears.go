package sheet

import (
	"fmt"
	"io"
	"time"

	"github.com/septivank/meter-field-ops/internal/db"
	"github.com/xuri/excelize/v2"
)

// ArrearsSheet is the sheet name of the arrears export
const ArrearsSheet = "TUNGGAKAN"

var arrearsColumns = []struct {
	header string
	width  float64
}{
	{"PETUGAS", 15},
	{"IDPEL", 20},
	{"HARI", 6},
	{"NAMA PELANGGAN", 25},
	{"ALAMAT", 40},
	{"TARIF", 8},
	{"DAYA", 10},
	{"GARDU", 12},
	{"NO_TIANG", 12},
	{"RPTAG", 15},
}

// ArrearsFilename returns the download name of an export made by username at t
func ArrearsFilename(username string, t time.Time) string {
	return fmt.Sprintf("DATA_TUNGGAKAN_%s_%s.xlsx", username, t.Format("02-01-2006"))
}

// EncodeArrears writes arrears as an XLSX workbook. IDPEL cells are text so
// spreadsheet software keeps every digit; RPTAG is numeric with a thousands
// separator.
func EncodeArrears(w io.Writer, arrears []db.Arrear) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ArrearsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	textStyle, err := f.NewStyle(&excelize.Style{NumFmt: 49})
	if err != nil {
		return fmt.Errorf("failed to create text style: %w", err)
	}
	amountFormat := "#,##0"
	amountStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &amountFormat})
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}

	for i, col := range arrearsColumns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(ArrearsSheet, name, name, col.width); err != nil {
			return fmt.Errorf("failed to set width of %s: %w", col.header, err)
		}
		if err := f.SetCellStr(ArrearsSheet, name+"1", col.header); err != nil {
			return fmt.Errorf("failed to write header %s: %w", col.header, err)
		}
	}

	for i, a := range arrears {
		row := i + 2
		values := []any{a.Officer, a.ID, a.Day, a.Name, a.Address, a.Tariff, a.Power, a.Substation, a.Pole, a.Amount}
		for c, v := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, row)
			if err != nil {
				return err
			}
			if s, ok := v.(string); ok {
				err = f.SetCellStr(ArrearsSheet, cell, s)
			} else {
				err = f.SetCellValue(ArrearsSheet, cell, v)
			}
			if err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	if len(arrears) > 0 {
		last := len(arrears) + 1
		if err := f.SetCellStyle(ArrearsSheet, "B2", fmt.Sprintf("B%d", last), textStyle); err != nil {
			return fmt.Errorf("failed to style IDPEL column: %w", err)
		}
		if err := f.SetCellStyle(ArrearsSheet, "J2", fmt.Sprintf("J%d", last), amountStyle); err != nil {
			return fmt.Errorf("failed to style RPTAG column: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
