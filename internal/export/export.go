// Package export renders a venue's month of slots into a spreadsheet.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"djbooking/internal/models"
	"djbooking/internal/schedule"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Schedule"

var headers = []string{"Date", "Day", "Week", "Slot", "DJ", "Status"}

// Row is one open slot on a concrete date.
type Row struct {
	Date    time.Time
	Week    int
	Slot    string
	Booking *models.Booking
}

// MonthRows lists every open (date, slot) of the month in calendar order.
// Slots after midnight of an overnight schedule stay on the date the night started.
func MonthRows(venue *models.Venue, bookings []*models.Booking, gen *schedule.Generator, year int, month time.Month, loc *time.Location) []Row {
	if loc == nil {
		loc = time.UTC
	}
	if gen == nil {
		gen = schedule.NewGenerator(nil)
	}

	held := make(map[models.SlotKey]*models.Booking, len(bookings))
	for _, b := range bookings {
		if b.IsActive() {
			held[b.Key()] = b
		}
	}

	var rows []Row
	for d := time.Date(year, month, 1, 0, 0, 0, 0, loc); d.Month() == month; d = d.AddDate(0, 0, 1) {
		week := schedule.WeekOfMonth(d)
		if !venue.IsOpenOn(d.Weekday(), week) {
			continue
		}
		for _, slot := range gen.AvailableSlots(venue, d.Weekday()) {
			key := models.SlotKey{VenueID: venue.ID, DayOfWeek: d.Weekday(), WeekNumber: week, TimeSlot: slot}
			rows = append(rows, Row{Date: d, Week: week, Slot: slot, Booking: held[key]})
		}
	}
	return rows
}

// MonthSchedule builds the workbook for one venue and month. The caller closes the file.
func MonthSchedule(venue *models.Venue, bookings []*models.Booking, gen *schedule.Generator, year int, month time.Month, loc *time.Location) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	title := fmt.Sprintf("%s: %s %d", venue.Name, month, year)
	_ = f.SetCellValue(sheetName, "A1", title)
	_ = f.MergeCell(sheetName, "A1", "F1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	styles, err := statusStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	for i, r := range MonthRows(venue, bookings, gen, year, month, loc) {
		row := i + 3
		dj, status := "", "free"
		if r.Booking != nil {
			dj, status = r.Booking.DJUsername, r.Booking.Status
		}
		values := []interface{}{r.Date.Format("2006-01-02"), r.Date.Weekday().String(), r.Week, r.Slot, dj, status}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}

		first, _ := excelize.CoordinatesToCellName(1, row)
		last, _ := excelize.CoordinatesToCellName(len(headers), row)
		_ = f.SetCellStyle(sheetName, first, last, styles[status])
	}

	_ = f.SetColWidth(sheetName, "A", "A", 14)
	_ = f.SetColWidth(sheetName, "B", "B", 12)
	_ = f.SetColWidth(sheetName, "C", "D", 8)
	_ = f.SetColWidth(sheetName, "E", "F", 20)
	_ = f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 2, TopLeftCell: "A3", ActivePane: "bottomLeft"})

	return f, nil
}

// SaveMonthSchedule writes the workbook under dir and returns the file path.
func SaveMonthSchedule(dir string, venue *models.Venue, bookings []*models.Booking, gen *schedule.Generator, year int, month time.Month, loc *time.Location) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := MonthSchedule(venue, bookings, gen, year, month, loc)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, FileName(venue, year, month))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save export: %w", err)
	}
	return path, nil
}

func FileName(venue *models.Venue, year int, month time.Month) string {
	return fmt.Sprintf("venue_%d_%04d-%02d.xlsx", venue.ID, year, int(month))
}

func statusStyles(f *excelize.File) (map[string]int, error) {
	colors := map[string]string{
		"free":                 "#FFFFFF",
		models.StatusPending:   "#FFEB9C",
		models.StatusConfirmed: "#E2EFDA",
		models.StatusCompleted: "#D9D9D9",
		models.StatusCancelled: "#FFC7CE",
	}
	styles := make(map[string]int, len(colors))
	for status, color := range colors {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		})
		if err != nil {
			return nil, fmt.Errorf("create %s style: %w", status, err)
		}
		styles[status] = id
	}
	return styles, nil
}
