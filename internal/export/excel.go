package export

import (
	"fmt"
	"time"

	"flexiseat/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	bookingsSheet  = "Bookings"
	occupancySheet = "Occupancy"
	dateLayout     = "2006-01-02"
)

// Workbook builds an xlsx snapshot of the ledger: a flat list of
// bookings plus a desk x date occupancy grid for the given range.
// The caller owns the returned file and must Close it.
func Workbook(bookings []*models.Booking, desks []models.Desk, start, end time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := writeBookingsSheet(f, bookings); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeOccupancyGrid(f, bookings, desks, start, end); err != nil {
		f.Close()
		return nil, err
	}

	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

func writeBookingsSheet(f *excelize.File, bookings []*models.Booking) error {
	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"ID", "Member", "Role", "Desk", "Zone", "Level", "Date", "Status", "Requested"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(bookingsSheet, cell, h)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(bookingsSheet, "A1", last, headerStyle)

	for i, b := range bookings {
		row := i + 2
		values := []interface{}{
			b.ID, b.MemberName, b.MemberRole, b.DeskID, b.Zone, b.Level,
			b.BookingDate.Format(dateLayout), b.Status, b.CreatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(bookingsSheet, cell, v)
		}
	}

	_ = f.SetColWidth(bookingsSheet, "B", "B", 25)
	_ = f.SetColWidth(bookingsSheet, "G", "I", 20)
	return nil
}

func writeOccupancyGrid(f *excelize.File, bookings []*models.Booking, desks []models.Desk, start, end time.Time) error {
	if _, err := f.NewSheet(occupancySheet); err != nil {
		return fmt.Errorf("error creating sheet: %v", err)
	}

	// Date columns
	dateCols := make(map[string]int)
	col := 2
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 1)
		_ = f.SetCellValue(occupancySheet, cell, d.Format("02.01"))
		dateCols[d.Format(dateLayout)] = col
		col++
	}

	// Desk rows
	deskRows := make(map[string]int)
	row := 2
	for _, desk := range desks {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(occupancySheet, cell, fmt.Sprintf("%s (L%d)", desk.ID, desk.Level))
		deskRows[desk.ID] = row
		row++
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	lastDate, _ := excelize.CoordinatesToCellName(col-1, 1)
	_ = f.SetCellStyle(occupancySheet, "A1", lastDate, headerStyle)
	lastDesk, _ := excelize.CoordinatesToCellName(1, row-1)
	_ = f.SetCellStyle(occupancySheet, "A2", lastDesk, headerStyle)

	for _, b := range bookings {
		if b.Status != models.StatusAccepted {
			continue
		}
		c, okCol := dateCols[b.BookingDate.Format(dateLayout)]
		r, okRow := deskRows[b.DeskID]
		if !okCol || !okRow {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(c, r)
		_ = f.SetCellValue(occupancySheet, cell, b.MemberName)
	}

	_ = f.SetColWidth(occupancySheet, "A", "A", 18)
	return nil
}
