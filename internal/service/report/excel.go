package report

import (
	"context"
	"fmt"
	"github.com/xuri/excelize/v2"
	"laser-planning/internal/storage"
	"time"
)

type Storage interface {
	GetWorkLines(ctx context.Context) ([]*storage.WorkLine, error)
	GetPlannableOrders(ctx context.Context, start, end time.Time) ([]*storage.Order, error)
	GetCellsRange(ctx context.Context, start, end time.Time) ([]*storage.PlanningCell, error)
}

type Service struct {
	storage Storage
}

func NewService(storage Storage) *Service {
	return &Service{storage: storage}
}

// WeeklyPlanning renders the planning grid for a date range as an xlsx
// workbook: one row per work line per day, one column per hour, cell
// values are the summed worker counts.
func (g *Service) WeeklyPlanning(ctx context.Context, start, end time.Time) ([]byte, error) {
	const op = "service.report.WeeklyPlanning"

	lines, err := g.storage.GetWorkLines(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	orders, err := g.storage.GetPlannableOrders(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cells, err := g.storage.GetCellsRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Planning"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})

	headers := []string{"Date", "Line"}
	for h := 0; h < 24; h++ {
		headers = append(headers, fmt.Sprintf("%02d:00", h))
	}
	for i, name := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, name)
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(headers), 1)
	f.SetCellStyle(sheet, "A1", lastCol, headerStyle)

	// Sum workers per (date, line, hour); quarter cells fold into their hour.
	type rowKey struct {
		date string
		line string
	}
	workers := map[rowKey][24]int{}
	for _, c := range cells {
		k := rowKey{date: c.Date.Format("2006-01-02"), line: c.WorkLineUUID}
		row := workers[k]
		row[c.Hour] += c.Workers
		workers[k] = row
	}

	lineNames := map[string]string{}
	for _, l := range lines {
		lineNames[l.UUID] = l.Code
	}

	rowNum := 2
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		for _, line := range lines {
			k := rowKey{date: day.Format("2006-01-02"), line: line.UUID}
			row, ok := workers[k]
			if !ok {
				continue
			}

			f.SetCellValue(sheet, cellName(1, rowNum), day.Format("2006-01-02"))
			f.SetCellValue(sheet, cellName(2, rowNum), lineNames[line.UUID])
			for h := 0; h < 24; h++ {
				if row[h] > 0 {
					f.SetCellValue(sheet, cellName(h+3, rowNum), row[h])
				}
			}
			rowNum++
		}
	}

	// Orders legend on a second sheet.
	legend := "Orders"
	f.NewSheet(legend)
	f.SetCellValue(legend, "A1", "Order")
	f.SetCellValue(legend, "B1", "Quantity")
	f.SetCellValue(legend, "C1", "Worked")
	f.SetCellValue(legend, "D1", "Status")
	f.SetCellStyle(legend, "A1", "D1", headerStyle)
	for i, o := range orders {
		r := i + 2
		f.SetCellValue(legend, cellName(1, r), o.Number)
		f.SetCellValue(legend, cellName(2, r), o.Quantity)
		f.SetCellValue(legend, cellName(3, r), o.WorkedQuantity)
		f.SetCellValue(legend, cellName(4, r), o.Status)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buf.Bytes(), nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
