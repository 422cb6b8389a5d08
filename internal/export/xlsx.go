// Package export writes report series to spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"survey-dashboard-service/internal/domain"
)

const sheet = "Report"

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// WriteMonthlySeries writes a twelve-month series as Month | Value | Responses rows.
func WriteMonthlySeries(w io.Writer, title string, year int, series domain.MonthlySeries) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	rows := [][]any{
		{title, year},
		{"Month", "Value", "Responses"},
	}
	for i, p := range series {
		rows = append(rows, []any{monthNames[i], p.Y, p.TotalQuantity})
	}
	if err := writeRows(f, rows); err != nil {
		return err
	}
	return writeTo(f, w)
}

// WriteSeries writes per-bucket NPS points for a resolved period.
func WriteSeries(w io.Writer, title string, points []domain.SeriesPoint) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	rows := [][]any{
		{title},
		{"From", "To", "NPS", "Responses"},
	}
	for _, p := range points {
		rows = append(rows, []any{p.Start.Format(time.DateTime), p.End.Format(time.DateTime), p.Score, p.Total})
	}
	if err := writeRows(f, rows); err != nil {
		return err
	}
	return writeTo(f, w)
}

func writeRows(f *excelize.File, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return nil
}

func writeTo(f *excelize.File, w io.Writer) error {
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
