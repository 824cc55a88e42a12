package bot

import (
	"bytes"
	"fmt"

	"standupbot/internal/db/models"
	"standupbot/internal/standup"

	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	responseColumns = []string{"User", "User ID", "No update", "Yesterday", "Today", "Blockers", "Mood", "Submitted at", "Edited at"}
	missingColumns  = []string{"User", "User ID", "State", "Answered"}
)

// sheetWriter appends rows to the sheets of one workbook.
type sheetWriter struct {
	file  *excelize.File
	sheet string
	row   int
	bold  int
}

func newSheetWriter() (*sheetWriter, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	return &sheetWriter{file: f, bold: bold}, nil
}

func (w *sheetWriter) addSheet(name string) error {
	// Truncate sheet name to 31 chars (Excel limit)
	if len(name) > 31 {
		name = name[:31]
	}
	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.sheet = name
	w.row = 1
	return nil
}

func (w *sheetWriter) writeRow(values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", w.row, err)
	}
	w.row++
	return nil
}

func (w *sheetWriter) writeHeader(columns []string) error {
	values := make([]interface{}, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	if err := w.writeRow(values); err != nil {
		return err
	}
	start, _ := excelize.CoordinatesToCellName(1, w.row-1)
	end, _ := excelize.CoordinatesToCellName(len(columns), w.row-1)
	return w.file.SetCellStyle(w.sheet, start, end, w.bold)
}

// buildExport renders a day's responses and non-finishers as an XLSX workbook.
func buildExport(dayKey string, responses []models.Response, missing []standup.Missing) (*bytes.Buffer, error) {
	w, err := newSheetWriter()
	if err != nil {
		return nil, err
	}
	defer w.file.Close()

	if err := w.addSheet("Responses " + dayKey); err != nil {
		return nil, err
	}
	if err := w.writeHeader(responseColumns); err != nil {
		return nil, err
	}
	for _, r := range responses {
		mood := ""
		if r.Answers.Mood != nil {
			mood = fmt.Sprint(*r.Answers.Mood)
		}
		edited := ""
		if r.EditedAt != nil {
			edited = r.EditedAt.UTC().Format("2006-01-02 15:04:05")
		}
		if err := w.writeRow([]interface{}{
			r.Username,
			r.UserID,
			r.NoUpdate,
			r.Answers.Yesterday,
			r.Answers.Today,
			r.Answers.Blockers,
			mood,
			r.SubmittedAt.UTC().Format("2006-01-02 15:04:05"),
			edited,
		}); err != nil {
			return nil, err
		}
	}

	if err := w.addSheet("Missing " + dayKey); err != nil {
		return nil, err
	}
	if err := w.writeHeader(missingColumns); err != nil {
		return nil, err
	}
	for _, m := range missing {
		if err := w.writeRow([]interface{}{m.Username, m.UserID, m.State.String(), m.Answered}); err != nil {
			return nil, err
		}
	}

	buf, err := w.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}
