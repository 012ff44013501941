package reports

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

type ExcelExporter interface {
	GetCellValues() []interface{}
}

func writeExcel(w io.Writer, headings []string, rows []ExcelExporter) error {

	f := excelize.NewFile()
	sheetName := "Sheet1"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	col := 'A'
	for _, h := range headings {
		f.SetCellValue(sheetName, string(col)+"1", h)
		col++
	}

	rowNo := 2
	for _, row := range rows {
		col := 'A'
		for _, value := range row.GetCellValues() {
			f.SetCellValue(sheetName, string(col)+fmt.Sprint(rowNo), value)
			col++
		}
		rowNo++
	}

	return f.Write(w)
}

// ExportInvoiceRegisterXlsx streams the register as a spreadsheet.
func ExportInvoiceRegisterXlsx(w io.Writer, rows []*InvoiceRegisterRow) error {

	exporters := make([]ExcelExporter, 0, len(rows))
	for _, r := range rows {
		exporters = append(exporters, r)
	}
	return writeExcel(w, []string{
		"Invoice Number", "Invoice Date", "Client", "Status", "Subtotal", "GST", "Total",
	}, exporters)
}
