package receiving

import (
	"fmt"
	"strings"
)

// lineIndex looks up PO lines by product/color/size, falling back to the
// product name alone.
type lineIndex struct {
	byKey  map[string]int
	byName map[string]int
}

func newLineIndex(lines []PurchaseOrderLine) lineIndex {
	ix := lineIndex{
		byKey:  make(map[string]int, len(lines)),
		byName: make(map[string]int, len(lines)),
	}
	for i, line := range lines {
		key := matchKey(line.ProductName, line.ColorName, line.SizeName)
		if _, ok := ix.byKey[key]; !ok {
			ix.byKey[key] = i
		}
		name := normalizeText(line.ProductName)
		if _, ok := ix.byName[name]; !ok {
			ix.byName[name] = i
		}
	}
	return ix
}

func (ix lineIndex) match(name, color, size string) int {
	if i, ok := ix.byKey[matchKey(name, color, size)]; ok {
		return i
	}
	if i, ok := ix.byName[normalizeText(name)]; ok {
		return i
	}
	return -1
}

func matchKey(name, color, size string) string {
	return normalizeText(name) + "|" + normalizeText(color) + "|" + normalizeText(size)
}

// matchRows resolves each row to an index into lines, -1 when unmatched.
func matchRows(rows []ImportRow, lines []PurchaseOrderLine) []int {
	ix := newLineIndex(lines)
	matched := make([]int, len(rows))
	for i, row := range rows {
		matched[i] = -1
		if strings.TrimSpace(row.ProductName) == "" {
			continue
		}
		matched[i] = ix.match(row.ProductName, row.ColorName, row.SizeName)
	}
	return matched
}

// ValidationRow numbers rows the way users see them: index 0 sits right
// under the header row.
func ValidationRow(index int) int {
	return index + 2
}

// Validate cross-checks imported rows against the purchase order lines and
// the remaining receivable quantities. It is pure and must be re-run over
// all rows whenever any row or the selected PO changes.
func Validate(rows []ImportRow, lines []PurchaseOrderLine, remaining RemainingState) []ValidationError {
	matched := matchRows(rows, lines)
	claimed := make(map[int]int64, len(lines))
	for i, row := range rows {
		if matched[i] >= 0 {
			claimed[matched[i]] += row.ReceivedQty
		}
	}

	var errs []ValidationError
	add := func(row int, field Field, format string, args ...any) {
		errs = append(errs, ValidationError{Row: row, Field: field, Message: fmt.Sprintf(format, args...)})
	}
	for i, row := range rows {
		rowNum := ValidationRow(i)
		if strings.TrimSpace(row.ProductName) == "" {
			add(rowNum, FieldProductName, "Tên sản phẩm không được để trống")
			continue
		}
		if row.OrderedQty <= 0 {
			add(rowNum, FieldOrderedQty, "Số lượng đặt phải là số dương")
		}
		if row.ReceivedQty <= 0 {
			add(rowNum, FieldReceivedQty, "Số lượng nhận phải là số dương")
		}
		if row.UnitPrice <= 0 {
			add(rowNum, FieldUnitPrice, "Đơn giá phải lớn hơn 0")
		}

		li := matched[i]
		if li < 0 {
			add(rowNum, FieldProductName, "Sản phẩm %q (màu %q, size %q) không có trong đơn đặt hàng", row.ProductName, row.ColorName, row.SizeName)
			continue
		}
		line := lines[li]
		if row.OrderedQty > 0 && row.OrderedQty != line.OrderedQty {
			add(rowNum, FieldOrderedQty, "Số lượng đặt (%d) không khớp với đơn đặt hàng (%d)", row.OrderedQty, line.OrderedQty)
		}
		if row.UnitPrice > 0 && !PricesMatch(row.UnitPrice, line.UnitPrice) {
			add(rowNum, FieldUnitPrice, "Đơn giá (%d) không khớp với đơn đặt hàng (%d)", row.UnitPrice, line.UnitPrice)
		}
		if row.ReceivedQty <= 0 {
			continue
		}
		if row.OrderedQty > 0 && row.ReceivedQty > row.OrderedQty {
			add(rowNum, FieldReceivedQty, "Số lượng nhận (%d) vượt quá số lượng đặt (%d)", row.ReceivedQty, row.OrderedQty)
			continue
		}
		if state, ok := remaining.Lookup(line.ID); ok && state >= 0 {
			left := RemainingReceivable(state, claimed[li]-row.ReceivedQty)
			if row.ReceivedQty > left {
				add(rowNum, FieldReceivedQty, "Số lượng nhận (%d) vượt quá số lượng còn cần nhập (%d)", row.ReceivedQty, max(left, 0))
			}
		}
	}
	return errs
}

// RowsWithErrors returns the set of validation row numbers carrying at least
// one error.
func RowsWithErrors(errs []ValidationError) map[int]bool {
	rows := make(map[int]bool, len(errs))
	for _, e := range errs {
		rows[e.Row] = true
	}
	return rows
}
