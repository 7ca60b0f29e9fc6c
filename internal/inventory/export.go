package inventory

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

var exportHeaders = []string{
	"inventory_id", "centre_id", "blood_group_id", "blood_group_name",
	"component", "units_available", "last_updated",
}

// ExportFilename builds inventory_export_<centre|all>_<YYYY-MM-DD>.<ext>.
func ExportFilename(centreLabel string, now time.Time, ext string) string {
	return fmt.Sprintf("inventory_export_%s_%s.%s", centreLabel, now.UTC().Format("2006-01-02"), ext)
}

func exportRecord(r Row) []string {
	updated := ""
	if r.LastUpdated != nil {
		updated = r.LastUpdated.UTC().Format(time.RFC3339)
	}
	return []string{
		strconv.FormatUint(uint64(r.InventoryID), 10),
		r.CentreID,
		strconv.FormatUint(uint64(r.BloodGroupID), 10),
		r.BloodGroupName,
		string(r.Component),
		strconv.Itoa(r.UnitsAvailable),
		updated,
	}
}

func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeaders); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(exportRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const xlsxSheet = "Inventory"

func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return err
	}

	header := make([]interface{}, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(xlsxSheet, 1, 1, bold); err != nil {
		return err
	}

	for i, r := range rows {
		updated := ""
		if r.LastUpdated != nil {
			updated = r.LastUpdated.UTC().Format(time.RFC3339)
		}
		cells := []interface{}{
			r.InventoryID, r.CentreID, r.BloodGroupID, r.BloodGroupName,
			string(r.Component), r.UnitsAvailable, updated,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &cells); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(xlsxSheet, "A", "G", 18); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}
