package export

import (
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"tanktrace/internal/errs"
	"tanktrace/internal/usecase/traceability"
)

const (
	SheetGenealogy = "Genealogy"
	SheetEvents    = "Events"
)

var genealogyHeaders = []string{
	"Key", "Parent", "Relation", "Slot", "Current", "Serial", "Kind", "Tank Size",
	"Heat", "Coil", "Lot", "Part Number", "Product", "Mill", "Processor", "Head Vendor",
	"Quantity", "Location", "Replaced", "Defects", "Annotations", "Created",
}

var eventHeaders = []string{
	"Time", "Serial", "Action", "Result", "Work Center", "Operator", "Welders", "Notes",
}

// XLSXRenderer writes a lookup as a two-sheet workbook.
type XLSXRenderer struct{}

var _ traceability.LookupRenderer = XLSXRenderer{}

func (XLSXRenderer) RenderLookup(w io.Writer, lookup traceability.Lookup) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetGenealogy); err != nil {
		return errs.Wrap(err, "rename genealogy sheet")
	}
	if _, err := f.NewSheet(SheetEvents); err != nil {
		return errs.Wrap(err, "create events sheet")
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return errs.Wrap(err, "create header style")
	}

	rows := make([][]any, 0, len(lookup.Nodes))
	for _, n := range lookup.Nodes {
		rows = append(rows, []any{
			n.Key, n.ParentKey, n.Relation, n.Slot, yesNo(n.Current), n.Serial, n.Kind, n.TankSize,
			n.HeatNumber, n.CoilNumber, n.LotNumber, n.PartNumber, n.Product, n.MillVendor, n.ProcessorVendor, n.HeadVendor,
			n.Quantity.String(), n.Location, yesNo(n.Replaced), n.Defects, n.Annotations, n.CreatedAt.Format(time.RFC3339),
		})
	}
	if err := writeSheet(f, SheetGenealogy, headerStyle, genealogyHeaders, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, ev := range lookup.Events {
		rows = append(rows, []any{
			ev.CreatedAt.Format(time.RFC3339), ev.Serial, ev.Action, ev.Result, ev.WorkCenter, ev.Operator,
			strings.Join(ev.Welders, ", "), ev.Notes,
		})
	}
	if err := writeSheet(f, SheetEvents, headerStyle, eventHeaders, rows); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return errs.Wrap(err, "write workbook")
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, headers []string, rows [][]any) error {
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errs.Wrapf(err, "write %s header", sheet)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return errs.Wrap(err, "header range")
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return errs.Wrapf(err, "style %s header", sheet)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errs.Wrap(err, "row cell")
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errs.Wrapf(err, "write %s row %d", sheet, i+1)
		}
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return errs.Wrap(err, "column name")
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 15); err != nil {
		return errs.Wrapf(err, "size %s columns", sheet)
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
