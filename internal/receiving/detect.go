package receiving

import "strings"

const (
	titleScanRows     = 10
	headerScanRows    = 30
	minHeaderKeywords = 4
	previewRows       = 5
)

// Printed receipt forms put the table under a title and a metadata block.
var titleMarkers = []string{
	"phiếu nhập kho",
	"phiếu nhập hàng",
	"biên bản giao nhận",
	"biên bản nhận hàng",
	"goods receipt",
}

type keywordGroup int

const (
	groupOther keywordGroup = iota
	groupSequence
	groupName
	groupQuantity
)

var headerKeywords = []struct {
	text  string
	group keywordGroup
}{
	{"stt", groupSequence},
	{"số thứ tự", groupSequence},
	{"no.", groupSequence},
	{"tên sản phẩm", groupName},
	{"sản phẩm", groupName},
	{"product", groupName},
	{"màu", groupOther},
	{"color", groupOther},
	{"size", groupOther},
	{"kích cỡ", groupOther},
	{"đơn vị", groupOther},
	{"đvt", groupOther},
	{"số lượng đặt", groupQuantity},
	{"số lượng nhận", groupQuantity},
	{"số lượng", groupQuantity},
	{"quantity", groupQuantity},
	{"đơn giá", groupOther},
	{"price", groupOther},
	{"thành tiền", groupOther},
}

// DetectDataStart returns the index of the first data row of a sheet. It
// looks for a document title in the first rows, then for a header row below
// it. Without a recognisable header, row 0 is assumed to be the header.
func DetectDataStart(rows [][]string) int {
	start := 0
	for i := 0; i < len(rows) && i < titleScanRows; i++ {
		if hasTitleMarker(rows[i]) {
			start = i + 1
			break
		}
	}
	for i := start; i < len(rows) && i < start+headerScanRows; i++ {
		if isHeaderRow(rows[i]) {
			return i + 1
		}
	}
	return 1
}

func hasTitleMarker(row []string) bool {
	for _, cell := range row {
		text := normalizeText(cell)
		if text == "" {
			continue
		}
		for _, marker := range titleMarkers {
			if strings.Contains(text, marker) {
				return true
			}
		}
	}
	return false
}

func isHeaderRow(row []string) bool {
	matched := 0
	groups := make(map[keywordGroup]bool, 4)
	for _, cell := range row {
		group, ok := cellKeywordGroup(normalizeText(cell))
		if !ok {
			continue
		}
		matched++
		groups[group] = true
	}
	return matched >= minHeaderKeywords && groups[groupSequence] && groups[groupName] && groups[groupQuantity]
}

// cellKeywordGroup classifies one header cell. A cell counts once even when
// several overlapping keywords occur in it.
func cellKeywordGroup(text string) (keywordGroup, bool) {
	if text == "" {
		return groupOther, false
	}
	for _, kw := range headerKeywords {
		if strings.Contains(text, kw.text) {
			return kw.group, true
		}
	}
	return groupOther, false
}

// ImportRow is one data row read from a sheet through the resolved columns.
type ImportRow struct {
	// SheetRow is the 1-based row number in the sheet.
	SheetRow    int       `json:"sheetRow"`
	Sequence    string    `json:"sequence"`
	ProductName string    `json:"productName"`
	ColorName   string    `json:"colorName"`
	SizeName    string    `json:"sizeName"`
	Unit        string    `json:"unit"`
	OrderedQty  int64     `json:"orderedQuantity"`
	ReceivedQty int64     `json:"receivedQuantity"`
	UnitPrice   int64     `json:"unitPrice"`
	Condition   Condition `json:"condition"`
	Notes       string    `json:"notes"`
}

// ExtractRows reads the data rows starting at dataStart. Fully blank rows
// are skipped and reading stops at the totals footer.
func ExtractRows(rows [][]string, dataStart int, cols ColumnMap) []ImportRow {
	var out []ImportRow
	for i := dataStart; i < len(rows); i++ {
		row := rows[i]
		if isBlankRow(row) {
			continue
		}
		if isFooterRow(row, cols) {
			break
		}
		cond, ok := ParseCondition(cols.Cell(row, FieldCondition))
		if !ok {
			cond = ConditionGood
		}
		out = append(out, ImportRow{
			SheetRow:    i + 1,
			Sequence:    cols.Cell(row, FieldSequence),
			ProductName: cols.Cell(row, FieldProductName),
			ColorName:   cols.Cell(row, FieldColor),
			SizeName:    cols.Cell(row, FieldSize),
			Unit:        cols.Cell(row, FieldUnit),
			OrderedQty:  ParseAmount(cols.Cell(row, FieldOrderedQty)),
			ReceivedQty: ParseAmount(cols.Cell(row, FieldReceivedQty)),
			UnitPrice:   ParseAmount(cols.Cell(row, FieldUnitPrice)),
			Condition:   cond,
			Notes:       cols.Cell(row, FieldNotes),
		})
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func isFooterRow(row []string, cols ColumnMap) bool {
	if cols.Cell(row, FieldProductName) != "" {
		return false
	}
	for _, cell := range row {
		text := normalizeText(cell)
		if strings.HasPrefix(text, "tổng cộng") || text == "cộng" || text == "total" {
			return true
		}
	}
	return false
}
