// Package importer loads multiple-choice questions from spreadsheets.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
	"github.com/xuri/excelize/v2"
)

const defaultDifficulty = 3

// Columns are matched by header name, case-insensitively, in any order.
var columnAliases = map[string]string{
	"subject":        "subject",
	"chapter":        "chapter",
	"topic":          "topic",
	"question":       "question",
	"question_text":  "question",
	"option_a":       "option_a",
	"a":              "option_a",
	"option_b":       "option_b",
	"b":              "option_b",
	"option_c":       "option_c",
	"c":              "option_c",
	"option_d":       "option_d",
	"d":              "option_d",
	"correct_option": "correct_option",
	"answer":         "correct_option",
	"solution":       "solution",
	"hint_1":         "hint_1",
	"hint_2":         "hint_2",
	"hint_3":         "hint_3",
	"difficulty":     "difficulty",
	"source":         "source",
}

var requiredColumns = []string{"subject", "question", "option_a", "option_b", "option_c", "option_d", "correct_option"}

// Result holds the result of an import operation
type Result struct {
	Rows     int      `json:"rows"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

type Importer struct {
	store  repository.Store
	source string
	now    func() time.Time
}

func New(store repository.Store, source string) *Importer {
	return &Importer{store: store, source: source, now: time.Now}
}

// ImportFile picks the format by extension: .csv or an Excel workbook.
func (im *Importer) ImportFile(ctx context.Context, path, sheet string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return im.ImportCSV(ctx, f)
	}
	return im.ImportXLSX(ctx, f, sheet)
}

// ImportXLSX reads sheet, or the first sheet when sheet is empty.
func (im *Importer) ImportXLSX(ctx context.Context, r io.Reader, sheet string) (*Result, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer book.Close()

	if sheet == "" {
		sheet = book.GetSheetName(0)
	}
	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return im.importRows(ctx, rows)
}

func (im *Importer) ImportCSV(ctx context.Context, r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return im.importRows(ctx, rows)
}

// importRows validates every row and inserts the valid ones in one transaction.
// Invalid rows and repeats of an earlier row are reported and skipped.
func (im *Importer) importRows(ctx context.Context, rows [][]string) (*Result, error) {
	log := logger.FromContext(ctx).WithPrefix("importer")
	if len(rows) == 0 {
		return nil, fmt.Errorf("no header row")
	}
	header, err := ParseHeader(rows[0])
	if err != nil {
		return nil, err
	}

	res := &Result{}
	seen := map[string]bool{}
	var valid []models.Question
	for i, row := range rows[1:] {
		line := i + 2
		if blank(row) {
			continue
		}
		res.Rows++
		q, err := ParseRow(header, row)
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", line, err))
			continue
		}
		key := strings.ToLower(q.Subject + "\x00" + q.Text)
		if seen[key] {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: duplicate question", line))
			continue
		}
		seen[key] = true
		if q.Source == "" {
			q.Source = im.source
		}
		q.CreatedAt = im.now().UTC()
		valid = append(valid, q)
	}

	err = im.store.WithinTx(ctx, func(r repository.Repos) error {
		for _, q := range valid {
			if _, err := r.Questions.Insert(ctx, q); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to store questions: %v", err)
		return nil, err
	}
	res.Imported = len(valid)
	log.Info("imported %d questions (%d rows, %d skipped)", res.Imported, res.Rows, res.Skipped)
	return res, nil
}

// ParseHeader maps known column names to their index.
func ParseHeader(row []string) (map[string]int, error) {
	header := map[string]int{}
	for i, cell := range row {
		name := strings.ToLower(strings.TrimSpace(cell))
		name = strings.ReplaceAll(name, " ", "_")
		if col, ok := columnAliases[name]; ok {
			if _, dup := header[col]; !dup {
				header[col] = i
			}
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := header[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return header, nil
}

// ParseRow builds a validated question from one data row.
func ParseRow(header map[string]int, row []string) (models.Question, error) {
	get := func(col string) string {
		i, ok := header[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	q := models.Question{
		Subject:       get("subject"),
		Chapter:       get("chapter"),
		Topic:         get("topic"),
		Text:          get("question"),
		OptionA:       get("option_a"),
		OptionB:       get("option_b"),
		OptionC:       get("option_c"),
		OptionD:       get("option_d"),
		CorrectOption: normalizeOption(get("correct_option")),
		Solution:      get("solution"),
		Hint1:         get("hint_1"),
		Hint2:         get("hint_2"),
		Hint3:         get("hint_3"),
		Difficulty:    defaultDifficulty,
		Source:        get("source"),
	}
	if d := get("difficulty"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			return q, fmt.Errorf("difficulty %q is not a number", d)
		}
		q.Difficulty = n
	}
	return q, q.Validate()
}

// normalizeOption accepts "b", "(B)", "B)" and "option b".
func normalizeOption(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "OPTION")
	s = strings.Trim(s, " ().")
	return s
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
