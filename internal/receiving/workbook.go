package receiving

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Sheet is one tabular sheet of an uploaded workbook.
type Sheet struct {
	Name      string
	Rows      [][]string
	DataStart int
}

// Workbook is an uploaded receipt file held in memory until the import is
// confirmed or abandoned.
type Workbook struct {
	FileName string
	Sheets   []Sheet
}

// StructuralError makes an import attempt fail as a whole.
type StructuralError struct {
	Err     error
	Sheet   string
	Missing []Field
	cause   error
}

func (e *StructuralError) Error() string {
	msg := e.Err.Error()
	if e.Sheet != "" {
		msg = fmt.Sprintf("%s (sheet %q)", msg, e.Sheet)
	}
	if len(e.Missing) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, joinLabels(e.Missing))
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *StructuralError) Unwrap() error { return e.Err }

// UserMessage is the blocking message shown for the error.
func (e *StructuralError) UserMessage() string {
	switch {
	case errors.Is(e.Err, ErrFileTooLarge):
		return "Tệp quá lớn, vui lòng chọn tệp nhỏ hơn"
	case errors.Is(e.Err, ErrUnsupportedFile):
		return "Chỉ hỗ trợ tệp Excel (.xlsx) hoặc CSV"
	case errors.Is(e.Err, ErrMissingColumns):
		return "Thiếu cột bắt buộc: " + joinLabels(e.Missing)
	case errors.Is(e.Err, ErrSheetNotFound):
		return fmt.Sprintf("Không tìm thấy sheet %q", e.Sheet)
	default:
		return "Không có dòng dữ liệu nào trong tệp"
	}
}

func joinLabels(fields []Field) string {
	labels := make([]string, 0, len(fields))
	for _, f := range fields {
		labels = append(labels, f.Label())
	}
	return strings.Join(labels, ", ")
}

// ReadWorkbook parses an uploaded CSV or XLSX file and locates the data rows
// of every non-empty sheet.
func ReadWorkbook(fileName string, data []byte, maxBytes int64) (*Workbook, error) {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, &StructuralError{Err: ErrFileTooLarge}
	}
	var (
		sheets []Sheet
		err    error
	)
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		sheets, err = readXLSX(data)
	case ".csv":
		sheets, err = readCSV(fileName, data)
	default:
		return nil, &StructuralError{Err: ErrUnsupportedFile}
	}
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, &StructuralError{Err: ErrNoDataRows}
	}
	return &Workbook{FileName: fileName, Sheets: sheets}, nil
}

func readXLSX(data []byte) ([]Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &StructuralError{Err: ErrUnsupportedFile, cause: err}
	}
	defer func() {
		_ = f.Close()
	}()
	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("receiving: read sheet %q: %w", name, err)
		}
		if isBlankSheet(rows) {
			continue
		}
		sheets = append(sheets, Sheet{Name: name, Rows: rows, DataStart: DetectDataStart(rows)})
	}
	return sheets, nil
}

func readCSV(fileName string, data []byte) ([]Sheet, error) {
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return nil, &StructuralError{Err: ErrUnsupportedFile, cause: err}
	}
	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.Comma = sniffDelimiter(decoded)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &StructuralError{Err: ErrUnsupportedFile, cause: err}
	}
	if isBlankSheet(rows) {
		return nil, nil
	}
	name := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	return []Sheet{{Name: name, Rows: rows, DataStart: DetectDataStart(rows)}}, nil
}

// sniffDelimiter picks ';' for exports from locales where ',' is the
// decimal separator.
func sniffDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}
	return ','
}

func isBlankSheet(rows [][]string) bool {
	for _, row := range rows {
		if !isBlankRow(row) {
			return false
		}
	}
	return true
}

// SheetNames lists the candidate sheets in workbook order.
func (w *Workbook) SheetNames() []string {
	if w == nil {
		return nil
	}
	names := make([]string, 0, len(w.Sheets))
	for _, s := range w.Sheets {
		names = append(names, s.Name)
	}
	return names
}

// Sheet finds a sheet by name.
func (w *Workbook) Sheet(name string) (Sheet, error) {
	if w != nil {
		for _, s := range w.Sheets {
			if s.Name == name {
				return s, nil
			}
		}
	}
	return Sheet{}, &StructuralError{Err: ErrSheetNotFound, Sheet: name}
}

// Extract resolves the header columns and reads the data rows.
func (s Sheet) Extract() (ColumnMap, []ImportRow, error) {
	headerIdx := s.DataStart - 1
	if headerIdx < 0 || headerIdx >= len(s.Rows) {
		return nil, nil, &StructuralError{Err: ErrNoDataRows, Sheet: s.Name}
	}
	cols := ResolveColumns(s.Rows[headerIdx])
	if missing := cols.Missing(); len(missing) > 0 {
		return nil, nil, &StructuralError{Err: ErrMissingColumns, Sheet: s.Name, Missing: missing}
	}
	rows := ExtractRows(s.Rows, s.DataStart, cols)
	if len(rows) == 0 {
		return nil, nil, &StructuralError{Err: ErrNoDataRows, Sheet: s.Name}
	}
	return cols, rows, nil
}
