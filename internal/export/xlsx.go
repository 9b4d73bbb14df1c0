package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet   = "Summary"
	maxSheetName   = 31
	dateTimeLayout = "2006-01-02 15:04"
)

// XLSXRenderer writes a workbook with a summary sheet and, when round detail
// is requested, one sheet per session.
type XLSXRenderer struct{}

func NewXLSXRenderer() *XLSXRenderer {
	return &XLSXRenderer{}
}

func (r *XLSXRenderer) Extension() string {
	return "xlsx"
}

func (r *XLSXRenderer) Render(w io.Writer, doc Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := writeSummary(f, doc, bold); err != nil {
		return err
	}

	if doc.IncludeRounds {
		for i, snap := range doc.Sessions {
			if err := writeRounds(f, i, snap, bold); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, doc Document, bold int) error {
	rows := [][]any{
		{doc.Title},
		{"Exported " + doc.GeneratedAt.Format(dateTimeLayout)},
		{},
		{"Game", "Started", "Ended", "Rounds", "Players", "Scores"},
	}

	for _, snap := range doc.Sessions {
		pseudos := make([]string, len(snap.Players))
		scores := make([]string, len(snap.Players))
		for i, p := range snap.Players {
			pseudos[i] = p.Pseudo
			scores[i] = fmt.Sprintf("%s=%d", p.Pseudo, p.Total)
		}
		rounds := ""
		if snap.Rounds != nil {
			rounds = fmt.Sprint(len(snap.Rounds))
		}
		rows = append(rows, []any{
			snap.Title(),
			formatCellTime(&snap.StartedAt),
			formatCellTime(snap.EndedAt),
			rounds,
			strings.Join(pseudos, ", "),
			strings.Join(scores, "  •  "),
		})
	}

	if err := setRows(f, summarySheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "A1", bold); err != nil {
		return fmt.Errorf("failed to style title: %w", err)
	}
	if err := f.SetCellStyle(summarySheet, "A4", "F4", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	return nil
}

func writeRounds(f *excelize.File, idx int, snap Snapshot, bold int) error {
	name := sheetName(idx, snap)
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", name, err)
	}

	header := []any{"Round", "Time"}
	totals := []any{"Total", ""}
	for _, p := range snap.Players {
		header = append(header, p.Pseudo)
		totals = append(totals, p.Total)
	}

	rows := [][]any{{snap.Title()}, header}
	for _, r := range snap.Rounds {
		row := []any{r.Number, r.Ts.Format(dateTimeLayout)}
		for _, score := range r.Scores {
			row = append(row, score)
		}
		rows = append(rows, row)
	}
	rows = append(rows, totals)

	if err := setRows(f, name, rows); err != nil {
		return err
	}

	lastCol, err := excelize.CoordinatesToCellName(len(header), 2)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A2", lastCol, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	return nil
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		cells := row
		if err := f.SetSheetRow(sheet, axis, &cells); err != nil {
			return fmt.Errorf("failed to write row %d of %q: %w", i+1, sheet, err)
		}
	}
	return nil
}

func formatCellTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(dateTimeLayout)
}

// sheetName builds a unique, Excel-safe sheet name for the idx-th session.
func sheetName(idx int, snap Snapshot) string {
	name := fmt.Sprintf("%d %s", idx+1, snap.Title())
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)

	runes := []rune(name)
	if len(runes) > maxSheetName {
		runes = runes[:maxSheetName]
	}
	return strings.TrimRight(string(runes), " '")
}
