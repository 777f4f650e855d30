// Package export renders reservation history as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"pcbooking/internal/domain"
	"pcbooking/internal/interval"
	"pcbooking/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	ListSheet      = "Reservations"
	OccupancySheet = "Occupancy"

	// MaxDays bounds the occupancy grid width.
	MaxDays = 366
)

var listHeader = []interface{}{"ID", "Resource", "Booked by", "Start", "End", "Days", "Status", "Created at", "Cancelled at"}

// FileName is the attachment name used for a [from, to] export.
func FileName(from, to time.Time) string {
	return fmt.Sprintf("reservations_%s_to_%s.xlsx", interval.FormatDate(from), interval.FormatDate(to))
}

// Write builds the workbook for reservations overlapping [from, to] and
// streams it to w. Roster fixes the occupancy row order; resources only found
// in the history are appended after it.
func Write(w io.Writer, roster []string, from, to time.Time, list []*models.Reservation) error {
	from, to = interval.Truncate(from), interval.Truncate(to)
	if to.Before(from) {
		return domain.NewValidationError("to", "must not be before from")
	}
	days := int(to.Sub(from).Hours()/24) + 1
	if days > MaxDays {
		return domain.NewValidationError("to", "range must not exceed %d days", MaxDays)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ListSheet); err != nil {
		return fmt.Errorf("error renaming sheet: %w", err)
	}
	if err := writeList(f, from, to, list); err != nil {
		return err
	}
	if _, err := f.NewSheet(OccupancySheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	if err := writeOccupancy(f, mergeRoster(roster, list), from, days, list); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func writeList(f *excelize.File, from, to time.Time, list []*models.Reservation) error {
	if err := f.SetSheetRow(ListSheet, "A1", &listHeader); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}
	_ = f.SetCellStyle(ListSheet, "A1", "I1", headerStyle)

	cancelledStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#808080", Strike: true},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}

	row := 2
	for _, r := range list {
		status := "active"
		cancelledAt := ""
		if !r.Active {
			status = "cancelled"
		}
		if r.CancelledAt != nil {
			cancelledAt = r.CancelledAt.UTC().Format(time.RFC3339)
		}
		values := []interface{}{
			r.ID,
			r.Resource,
			r.BookedBy,
			interval.FormatDisplay(r.StartDate),
			interval.FormatDisplay(r.EndDate()),
			r.DurationDays,
			status,
			r.CreatedAt.UTC().Format(time.RFC3339),
			cancelledAt,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(ListSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing reservation %d: %w", r.ID, err)
		}
		if !r.Active {
			end, _ := excelize.CoordinatesToCellName(len(values), row)
			_ = f.SetCellStyle(ListSheet, cell, end, cancelledStyle)
		}
		row++
	}

	_ = f.SetColWidth(ListSheet, "A", "A", 8)
	_ = f.SetColWidth(ListSheet, "B", "C", 20)
	_ = f.SetColWidth(ListSheet, "D", "G", 12)
	_ = f.SetColWidth(ListSheet, "H", "I", 24)

	last, _ := excelize.CoordinatesToCellName(len(listHeader), row-1)
	if err := f.AutoFilter(ListSheet, "A1:"+last, nil); err != nil {
		return fmt.Errorf("error setting filter: %w", err)
	}

	title := fmt.Sprintf("Period: %s - %s", interval.FormatDisplay(from), interval.FormatDisplay(to))
	return f.SetDocProps(&excelize.DocProperties{Title: title, Creator: "pcbooking"})
}

func writeOccupancy(f *excelize.File, roster []string, from time.Time, days int, list []*models.Reservation) error {
	busyStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#F8CBAD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", WrapText: true},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}

	_ = f.SetCellValue(OccupancySheet, "A1", "Resource")
	for i := 0; i < days; i++ {
		cell, _ := excelize.CoordinatesToCellName(i+2, 1)
		_ = f.SetCellValue(OccupancySheet, cell, from.AddDate(0, 0, i).Format("02/01"))
		_ = f.SetCellStyle(OccupancySheet, cell, cell, dateStyle)
	}

	rows := make(map[string]int, len(roster))
	for i, resource := range roster {
		rows[resource] = i + 2
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetCellValue(OccupancySheet, cell, resource)
	}

	to := from.AddDate(0, 0, days-1)
	for _, r := range list {
		if !r.Active {
			continue
		}
		row := rows[r.Resource]
		for d := r.StartDate; !d.After(r.EndDate()); d = d.AddDate(0, 0, 1) {
			if d.Before(from) || d.After(to) {
				continue
			}
			col := int(d.Sub(from).Hours()/24) + 2
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(OccupancySheet, cell, r.BookedBy)
			_ = f.SetCellStyle(OccupancySheet, cell, cell, busyStyle)
		}
	}

	_ = f.SetColWidth(OccupancySheet, "A", "A", 14)
	lastCol, _ := excelize.ColumnNumberToName(days + 1)
	_ = f.SetColWidth(OccupancySheet, "B", lastCol, 12)
	return f.SetPanes(OccupancySheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	})
}

func mergeRoster(roster []string, list []*models.Reservation) []string {
	out := append([]string(nil), roster...)
	seen := make(map[string]bool, len(roster))
	for _, r := range roster {
		seen[r] = true
	}
	for _, r := range list {
		if !seen[r.Resource] {
			seen[r.Resource] = true
			out = append(out, r.Resource)
		}
	}
	return out
}
